package render

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// blockTags end a line of plain text.
var blockTags = map[string]bool{
	"p": true, "li": true, "ul": true, "ol": true, "div": true, "br": true,
}

// PlainText strips the markup from rendered HTML. Text keeps its reading
// order; block ends and line breaks become newlines, other whitespace runs
// collapse to one space and blank lines are dropped. Embedded images are
// not text: their URL is already present next to them.
func PlainText(rendered string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(rendered))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidy(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] && (tt != html.StartTagToken || string(name) == "br") {
				b.WriteByte('\n')
			}
		}
	}
}

// tidy collapses whitespace inside lines and drops empty lines.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.FieldsFunc(line, unicode.IsSpace), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Preview returns the plain text of a storage string on one line, cut to
// at most limit runes. A limit of zero or less means no cut.
func Preview(storage string, limit int) string {
	return PreviewText(PlainText(defaultRenderer.Render(storage)), limit)
}

// PreviewText folds plain text onto one line and cuts it to limit runes.
func PreviewText(plain string, limit int) string {
	text := strings.ReplaceAll(plain, "\n", " ")
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace) + "…"
}

// Title returns the first line of plain text of a storage string, used as
// the display label of a memo.
func Title(storage string) string {
	return FirstLine(PlainText(defaultRenderer.Render(storage)))
}

// FirstLine returns plain text up to its first newline.
func FirstLine(plain string) string {
	if i := strings.IndexByte(plain, '\n'); i >= 0 {
		return plain[:i]
	}
	return plain
}
