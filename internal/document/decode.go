package document

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/starford/memos/internal/pattern"
)

// FromStorageString parses a storage string. Parsing never fails: tokens
// that do not match the grammar are kept as literal text.
func FromStorageString(s string, opts ...Option) *Document {
	d := New(opts...)
	if leaves := parseLeaves(s); len(leaves) > 0 {
		d.leaves = leaves
	}
	return d
}

// Parse returns the block tree of a storage string.
func Parse(s string) []Block {
	return FromStorageString(s).Blocks()
}

func parseLeaves(s string) []leaf {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return nil
	}

	var (
		leaves []leaf
		para   []string
	)
	flush := func() {
		if len(para) == 0 {
			return
		}
		raw := strings.Join(para, "\n")
		para = nil
		if raw == EmptyParagraph {
			leaves = append(leaves, leaf{kind: Paragraph})
			return
		}
		leaves = append(leaves, leaf{kind: Paragraph, content: parseInline(raw)})
	}

	for _, line := range logicalLines(s) {
		if line == "" {
			flush()
			continue
		}
		if kind, checked, rest, ok := listPrefix(line); ok {
			flush()
			leaves = append(leaves, leaf{kind: kind, content: parseInline(rest), checked: checked})
			continue
		}
		para = append(para, line)
	}
	flush()
	return leaves
}

// logicalLines splits s into lines, joining a line that ends in an odd
// number of backslashes with the line after it.
func logicalLines(s string) []string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		cur := lines[i]
		for trailingBackslashes(cur)%2 == 1 && i+1 < len(lines) {
			i++
			cur += "\n" + lines[i]
		}
		out = append(out, cur)
	}
	return out
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

// listPrefix recognises a list item line and returns its content.
func listPrefix(line string) (kind BlockKind, checked bool, rest string, ok bool) {
	if line == "-" || line == "*" {
		return UnorderedList, false, "", true
	}
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
		body := line[2:]
		switch {
		case body == "[ ]" || strings.HasPrefix(body, "[ ] "):
			return TaskList, false, strings.TrimPrefix(body[3:], " "), true
		case body == "[x]" || body == "[X]" ||
			strings.HasPrefix(body, "[x] ") || strings.HasPrefix(body, "[X] "):
			return TaskList, true, strings.TrimPrefix(body[3:], " "), true
		}
		return UnorderedList, false, body, true
	}

	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits >= len(line) || line[digits] != '.' {
		return "", false, "", false
	}
	switch tail := line[digits+1:]; {
	case tail == "":
		return OrderedList, false, "", true
	case tail[0] == ' ':
		return OrderedList, false, tail[1:], true
	}
	return "", false, "", false
}

func isASCIIPunct(r rune) bool {
	return r < utf8.RuneSelf && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r)
}

// inlineScanner turns the raw text of one leaf into spans.
type inlineScanner struct {
	out  Inline
	text strings.Builder
	bold bool
}

func (p *inlineScanner) flushText() {
	if p.text.Len() == 0 {
		return
	}
	p.out = append(p.out, Text{Value: p.text.String(), Bold: p.bold})
	p.text.Reset()
}

func parseInline(raw string) Inline {
	var p inlineScanner
	p.scan(raw, true)
	p.flushText()
	return normalize(p.out)
}

// scan reads raw into p. Bold runs are only opened at the top level.
func (p *inlineScanner) scan(raw string, top bool) {
	for i := 0; i < len(raw); {
		if n := tokenLen(raw[i:]); n > 0 {
			p.flushText()
			p.out = append(p.out, readToken(raw[i:i+n]))
			i += n
			continue
		}

		c := raw[i]
		switch {
		case c == '\\':
			r, size := utf8.DecodeRuneInString(raw[i+1:])
			switch {
			case size > 0 && isASCIIPunct(r):
				p.text.WriteRune(r)
				i += 1 + size
			case r == '\n':
				p.text.WriteByte('\n')
				i += 2
			default:
				p.text.WriteByte('\\')
				i++
			}
			continue
		case top && strings.HasPrefix(raw[i:], "**"):
			if end := closingBold(raw, i+2); end > i+2 {
				p.flushText()
				p.bold = true
				p.scan(raw[i+2:end], false)
				p.flushText()
				p.bold = false
				i = end + 2
				continue
			}
			p.text.WriteString("**")
			i += 2
			continue
		}

		r, size := utf8.DecodeRuneInString(raw[i:])
		p.text.WriteRune(r)
		i += size
	}
}

// closingBold returns the index of the delimiter closing a bold run whose
// content starts at from, skipping escapes and reference tokens, or -1.
func closingBold(raw string, from int) int {
	for i := from; i < len(raw); {
		if n := tokenLen(raw[i:]); n > 0 {
			i += n
			continue
		}
		switch {
		case raw[i] == '\\' && i+1 < len(raw):
			_, size := utf8.DecodeRuneInString(raw[i+1:])
			i += 1 + size
		case strings.HasPrefix(raw[i:], "**"):
			return i
		default:
			i++
		}
	}
	return -1
}

// tokenLen returns the length of the reference token at the start of s.
func tokenLen(s string) int {
	if s == "" {
		return 0
	}
	switch s[0] {
	case '@':
		if _, id, n, ok := pattern.MatchMemoLinkAt(s); ok {
			if _, valid := pattern.ParseMemoID(id); valid {
				return n
			}
		}
	case '#':
		if _, n, ok := pattern.MatchTagAt(s); ok {
			return n
		}
	}
	return 0
}

func readToken(tok string) Reference {
	if tok[0] == '@' {
		label, id, _, _ := pattern.MatchMemoLinkAt(tok)
		n, _ := pattern.ParseMemoID(id)
		return Reference{Kind: RefMemo, Target: strconv.FormatInt(n, 10), Label: label}
	}
	label, _, _ := pattern.MatchTagAt(tok)
	return Reference{Kind: RefTag, Target: label, Label: label}
}
