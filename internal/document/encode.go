package document

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/starford/memos/internal/pattern"
)

// EmptyParagraph marks an empty paragraph that is not the whole document.
const EmptyParagraph = "&nbsp;"

// ToStorageString encodes the document in the persisted storage grammar.
// The output has no trailing newline and parses back to an equal document.
func (d *Document) ToStorageString() string {
	var b strings.Builder
	ordinal := 0
	for i, l := range d.leaves {
		if i > 0 {
			if prev := d.leaves[i-1]; prev.kind.IsList() && prev.kind == l.kind {
				b.WriteByte('\n')
			} else {
				b.WriteString("\n\n")
			}
		}
		if l.kind == OrderedList && (i == 0 || d.leaves[i-1].kind != OrderedList) {
			ordinal = 0
		}

		switch l.kind {
		case Paragraph:
			if l.content.IsEmpty() {
				if len(d.leaves) > 1 {
					b.WriteString(EmptyParagraph)
				}
				continue
			}
		case UnorderedList:
			b.WriteString("- ")
		case OrderedList:
			ordinal++
			b.WriteString(strconv.Itoa(ordinal))
			b.WriteString(". ")
		case TaskList:
			if l.checked {
				b.WriteString("- [x] ")
			} else {
				b.WriteString("- [ ] ")
			}
		}
		writeInline(&b, l.content)
	}
	return b.String()
}

// Encode returns the storage string of a block tree.
func Encode(blocks []Block) string {
	return FromBlocks(blocks).ToStorageString()
}

func writeInline(b *strings.Builder, in Inline) {
	for i, s := range in {
		switch v := s.(type) {
		case Text:
			esc := escapeText(v.Value, i == 0)
			if v.Bold {
				b.WriteString("**")
				b.WriteString(esc)
				b.WriteString("**")
			} else {
				b.WriteString(esc)
			}
		case Reference:
			writeReference(b, v, nextRune(in, i+1))
		default:
			panic("document: unknown span type")
		}
	}
}

// nextRune returns the first rune the span at i will write, or -1.
// Bold text starts with a delimiter and never extends a bare tag.
func nextRune(in Inline, i int) rune {
	if i >= len(in) {
		return -1
	}
	t, ok := in[i].(Text)
	if !ok || t.Bold {
		return -1
	}
	r, _ := utf8.DecodeRuneInString(t.Value)
	return r
}

func writeReference(b *strings.Builder, r Reference, next rune) {
	switch r.Kind {
	case RefMemo:
		b.WriteString("@[")
		b.WriteString(pattern.EscapeLabel(r.Label))
		b.WriteString("](")
		b.WriteString(r.Target)
		b.WriteByte(')')
	case RefTag:
		b.WriteByte('#')
		if pattern.IsBareTagLabel(r.Target) && (next < 0 || !pattern.IsTagRune(next)) {
			b.WriteString(r.Target)
			return
		}
		b.WriteByte('[')
		b.WriteString(pattern.EscapeLabel(r.Target))
		b.WriteByte(']')
	default:
		panic("document: unknown reference kind")
	}
}

// escapeText escapes s so that it parses back as literal text. leafStart is
// set when s opens its leaf, where list prefixes must not be recognised.
func escapeText(s string, leafStart bool) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	runes := []rune(s)

	digits := 0
	if leafStart {
		for digits < len(runes) && runes[digits] >= '0' && runes[digits] <= '9' {
			digits++
		}
	}

	for i, r := range runes {
		switch {
		case r == '\n':
			b.WriteString("\\\n")
			continue
		case r == '\\', r == '*', r == '#', r == '&':
			b.WriteByte('\\')
		case r == '@' && i+1 < len(runes) && runes[i+1] == '[':
			b.WriteByte('\\')
		case leafStart && i == 0 && (r == '-' || r == '['):
			b.WriteByte('\\')
		case leafStart && digits > 0 && i == digits && r == '.':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
