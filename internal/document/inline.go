package document

import (
	"strings"
	"unicode/utf8"
)

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Width returns the number of positions the content occupies.
// Text counts one per rune and a Reference counts one.
func (in Inline) Width() int {
	n := 0
	for _, s := range in {
		n += s.width()
	}
	return n
}

// IsEmpty reports whether the content has no spans.
func (in Inline) IsEmpty() bool {
	return len(in) == 0
}

// PlainText returns the text of the content with references shown by label.
func (in Inline) PlainText() string {
	var b strings.Builder
	for _, s := range in {
		switch v := s.(type) {
		case Text:
			b.WriteString(v.Value)
		case Reference:
			if v.Kind == RefTag {
				b.WriteByte('#')
			}
			b.WriteString(v.Label)
		default:
			panic("document: unknown span type")
		}
	}
	return b.String()
}

func (in Inline) clone() Inline {
	if len(in) == 0 {
		return nil
	}
	out := make(Inline, len(in))
	copy(out, in)
	return out
}

// normalize drops empty text and merges adjacent text spans with equal marks.
func normalize(in Inline) Inline {
	var out Inline
	for _, s := range in {
		switch v := s.(type) {
		case Text:
			if v.Value == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Text); ok && prev.Bold == v.Bold {
					out[n-1] = Text{Value: prev.Value + v.Value, Bold: v.Bold}
					continue
				}
			}
			out = append(out, v)
		case Reference:
			out = append(out, v)
		default:
			panic("document: unknown span type")
		}
	}
	return out
}

// splitAt cuts the content at offset off. off must be within [0, Width()].
func splitAt(in Inline, off int) (Inline, Inline) {
	var left, right Inline
	pos := 0
	for _, s := range in {
		w := s.width()
		switch {
		case pos+w <= off:
			left = append(left, s)
		case pos >= off:
			right = append(right, s)
		default:
			// off falls strictly inside a text span.
			t := s.(Text)
			runes := []rune(t.Value)
			cut := off - pos
			left = append(left, Text{Value: string(runes[:cut]), Bold: t.Bold})
			right = append(right, Text{Value: string(runes[cut:]), Bold: t.Bold})
		}
		pos += w
	}
	return left, right
}

// split3 cuts the content into [0,from), [from,to) and [to,end).
func split3(in Inline, from, to int) (Inline, Inline, Inline) {
	left, rest := splitAt(in, from)
	mid, right := splitAt(rest, to-from)
	return left, mid, right
}

func concat(parts ...Inline) Inline {
	var out Inline
	for _, p := range parts {
		out = append(out, p...)
	}
	return normalize(out)
}

// boldAt returns the mark inherited by text typed at off: the mark of the
// text before it, or of the text after it at the start of the content.
func boldAt(in Inline, off int) bool {
	left, right := splitAt(in, off)
	if n := len(left); n > 0 {
		if t, ok := left[n-1].(Text); ok {
			return t.Bold
		}
		return false
	}
	if len(right) > 0 {
		if t, ok := right[0].(Text); ok {
			return t.Bold
		}
	}
	return false
}

// setBold rewrites the marks of every text span.
func setBold(in Inline, bold bool) Inline {
	out := make(Inline, len(in))
	for i, s := range in {
		if t, ok := s.(Text); ok {
			t.Bold = bold
			out[i] = t
			continue
		}
		out[i] = s
	}
	return out
}

// allBold reports whether the content has text and all of it is bold.
func allBold(in Inline) (hasText, bold bool) {
	bold = true
	for _, s := range in {
		if t, ok := s.(Text); ok {
			hasText = true
			if !t.Bold {
				bold = false
			}
		}
	}
	return hasText, bold
}
