// Package pattern holds the token patterns shared by the content serializer,
// the renderer, and the link resolver: image URLs, memo links, and tags.
package pattern

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	// URLRe matches a bare http(s) URL.
	URLRe = regexp.MustCompile(`https?://[^\s<>\\*'"]+`)

	// ImageURLRe matches a bare http(s) URL ending in an image extension.
	ImageURLRe = regexp.MustCompile(`https?://[^\s<>\\*'"]+\.(?i:jpeg|jpg|gif|png|svg|webp)`)

	// MemoLinkRe matches @[label](id). Group 1 is the escaped label, group 2 the id.
	MemoLinkRe = regexp.MustCompile(`@\[((?:\\.|[^\]\\\n])*)\]\((\d+)\)`)

	// TagRe matches #label and #[label]. Group 1 is the bracketed (escaped)
	// label, group 2 the bare label.
	TagRe = regexp.MustCompile(`#(?:\[((?:\\.|[^\]\\\n])+)\]|([\p{L}\p{Nd}_/-]+))`)

	memoLinkPrefixRe = regexp.MustCompile(`^` + MemoLinkRe.String())
	tagPrefixRe      = regexp.MustCompile(`^` + TagRe.String())
)

// MemoLink is one memo-link token found in a storage string.
type MemoLink struct {
	ID    int64
	Label string
	Start int
	End   int
}

// Tag is one tag token found in a storage string.
type Tag struct {
	Label string
	Start int
	End   int
}

// IsTagRune reports whether r may appear in a bare #label.
func IsTagRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '/'
}

// IsBareTagLabel reports whether label can be written without brackets.
func IsBareTagLabel(label string) bool {
	if label == "" {
		return false
	}
	for _, r := range label {
		if !IsTagRune(r) {
			return false
		}
	}
	return true
}

// ParseMemoID parses a decimal memo id. Ids must be positive.
func ParseMemoID(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Unescape drops the backslash from every backslash pair in s.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

// EscapeLabel escapes a reference label for use inside [...].
func EscapeLabel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', ']':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// escapedAt reports whether the byte at i is preceded by an odd run of backslashes.
func escapedAt(s string, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// MemoLinks returns every memo-link token in s in document order. Escaped
// tokens and tokens with an unusable id are skipped.
func MemoLinks(s string) []MemoLink {
	matches := MemoLinkRe.FindAllStringSubmatchIndex(s, -1)
	out := make([]MemoLink, 0, len(matches))
	for _, m := range matches {
		if escapedAt(s, m[0]) {
			continue
		}
		id, ok := ParseMemoID(s[m[4]:m[5]])
		if !ok {
			continue
		}
		out = append(out, MemoLink{
			ID:    id,
			Label: Unescape(s[m[2]:m[3]]),
			Start: m[0],
			End:   m[1],
		})
	}
	return out
}

// Tags returns every tag token in s in document order, skipping escaped ones.
// Tags inside memo-link labels are not reported.
func Tags(s string) []Tag {
	links := MemoLinkRe.FindAllStringIndex(s, -1)
	inLink := func(i int) bool {
		for _, l := range links {
			if i > l[0] && i < l[1] {
				return true
			}
		}
		return false
	}
	var out []Tag
	for _, m := range TagRe.FindAllStringSubmatchIndex(s, -1) {
		if escapedAt(s, m[0]) || inLink(m[0]) {
			continue
		}
		var label string
		if m[2] >= 0 {
			label = Unescape(s[m[2]:m[3]])
		} else {
			label = s[m[4]:m[5]]
		}
		out = append(out, Tag{Label: label, Start: m[0], End: m[1]})
	}
	return out
}

// MatchMemoLinkAt tries to read a memo-link token at the start of s.
// It returns the unescaped label, the raw id text and the token length.
func MatchMemoLinkAt(s string) (label, id string, n int, ok bool) {
	m := memoLinkPrefixRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", "", 0, false
	}
	return Unescape(s[m[2]:m[3]]), s[m[4]:m[5]], m[1], true
}

// MatchTagAt tries to read a tag token at the start of s.
func MatchTagAt(s string) (label string, n int, ok bool) {
	m := tagPrefixRe.FindStringSubmatchIndex(s)
	if m == nil {
		return "", 0, false
	}
	if m[2] >= 0 {
		return Unescape(s[m[2]:m[3]]), m[1], true
	}
	return s[m[4]:m[5]], m[1], true
}

// HasURL reports whether plain text contains a web URL.
func HasURL(s string) bool {
	return URLRe.MatchString(s)
}

// ImageURLs returns the image URLs found in plain text, in order.
func ImageURLs(s string) []string {
	return ImageURLRe.FindAllString(s, -1)
}
