package render

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/memos/internal/pattern"
)

// embedImages appends an <img> after every image URL found in the text of
// rendered HTML. Attribute values and reference labels are left alone.
func embedImages(src string) string {
	if !pattern.ImageURLRe.MatchString(src) {
		return src
	}

	var b strings.Builder
	b.Grow(len(src) + 64)
	z := html.NewTokenizer(strings.NewReader(src))
	inRef := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			raw := string(z.Raw())
			if name, hasAttr := z.TagName(); string(name) == "span" && hasAttr && isReference(z) {
				inRef++
			}
			b.WriteString(raw)
			continue
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "span" && inRef > 0 {
				inRef--
			}
		case html.TextToken:
			if inRef == 0 {
				text := string(z.Text())
				if urls := pattern.ImageURLRe.FindAllStringIndex(text, -1); len(urls) > 0 {
					writeWithImages(&b, text, urls)
					continue
				}
			}
		}
		b.Write(z.Raw())
	}
}

func isReference(z *html.Tokenizer) bool {
	for {
		key, _, more := z.TagAttr()
		if string(key) == "data-kind" {
			return true
		}
		if !more {
			return false
		}
	}
}

func writeWithImages(b *strings.Builder, text string, urls [][]int) {
	last := 0
	for _, m := range urls {
		url := text[m[0]:m[1]]
		b.WriteString(html.EscapeString(text[last:m[1]]))
		b.WriteString(`<img class="memo-img" src="`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`" decoding="async">`)
		last = m[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
}
