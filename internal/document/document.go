package document

import "fmt"

// leaf is a paragraph or a list item: the unit that owns inline content.
// The block structure is derived from the leaf sequence, since adjacent
// lists of the same kind are always one list.
type leaf struct {
	kind    BlockKind
	content Inline
	checked bool
}

// Range is a half-open span of positions [From, To).
type Range struct {
	From int
	To   int
}

// At returns the empty range at pos.
func At(pos int) Range {
	return Range{From: pos, To: pos}
}

// Len returns the width of the range.
func (r Range) Len() int {
	return r.To - r.From
}

// Document is the editable content of one memo.
//
// Positions are flat: each leaf contributes its inline width and
// consecutive leaves are separated by one position. A Document is owned by
// a single editing session and is not safe for concurrent use.
type Document struct {
	leaves  []leaf
	caret   int
	session *Session

	triggers       map[rune][]ReferenceKind
	source         CandidateSource
	candidateLimit int
}

// Option configures a Document.
type Option func(*Document)

// WithTrigger registers r as a suggestion trigger offering the given
// reference kinds. Without any WithTrigger option, '@' offers memos and tags.
func WithTrigger(r rune, kinds ...ReferenceKind) Option {
	return func(d *Document) {
		if d.triggers == nil {
			d.triggers = make(map[rune][]ReferenceKind)
		}
		d.triggers[r] = kinds
	}
}

// WithCandidateSource sets the snapshot used to compute suggestion candidates.
func WithCandidateSource(src CandidateSource) Option {
	return func(d *Document) {
		d.source = src
	}
}

// WithCandidateLimit caps the number of candidates a session offers.
func WithCandidateLimit(n int) Option {
	return func(d *Document) {
		if n > 0 {
			d.candidateLimit = n
		}
	}
}

// DefaultTrigger opens a suggestion session when no trigger is configured.
const DefaultTrigger = '@'

// DefaultCandidateLimit is the default cap on suggestion candidates.
const DefaultCandidateLimit = 10

// New returns a document holding one empty paragraph.
func New(opts ...Option) *Document {
	d := &Document{
		leaves:         []leaf{{kind: Paragraph}},
		candidateLimit: DefaultCandidateLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.triggers) == 0 {
		d.triggers = map[rune][]ReferenceKind{DefaultTrigger: {RefMemo, RefTag}}
	}
	return d
}

// FromBlocks builds a document from a block tree. Inline content is
// normalized and adjacent lists of the same kind are merged.
func FromBlocks(blocks []Block, opts ...Option) *Document {
	d := New(opts...)
	var leaves []leaf
	for _, b := range blocks {
		switch {
		case b.Kind == Paragraph:
			leaves = append(leaves, leaf{kind: Paragraph, content: normalize(b.Content)})
		case b.Kind.IsList():
			for _, it := range b.Items {
				leaves = append(leaves, leaf{
					kind:    b.Kind,
					content: normalize(it.Content),
					checked: it.Checked && b.Kind == TaskList,
				})
			}
		}
	}
	if len(leaves) > 0 {
		d.leaves = leaves
	}
	return d
}

// Blocks returns a copy of the block tree.
func (d *Document) Blocks() []Block {
	var out []Block
	for _, l := range d.leaves {
		c := l.content.clone()
		if l.kind == Paragraph {
			out = append(out, Block{Kind: Paragraph, Content: c})
			continue
		}
		if n := len(out); n > 0 && out[n-1].Kind == l.kind {
			out[n-1].Items = append(out[n-1].Items, Item{Content: c, Checked: l.checked})
			continue
		}
		out = append(out, Block{Kind: l.kind, Items: []Item{{Content: c, Checked: l.checked}}})
	}
	return out
}

// Len returns the highest valid position.
func (d *Document) Len() int {
	n := len(d.leaves) - 1
	for _, l := range d.leaves {
		n += l.content.Width()
	}
	return n
}

// IsEmpty reports whether the document is a single empty paragraph.
// Saving an empty document is not allowed.
func (d *Document) IsEmpty() bool {
	return len(d.leaves) == 1 && d.leaves[0].kind == Paragraph && d.leaves[0].content.IsEmpty()
}

// Caret returns the current caret position.
func (d *Document) Caret() int {
	return d.caret
}

// SetCaret moves the caret. Moving it outside an open session's query
// cancels the session.
func (d *Document) SetCaret(pos int) error {
	if err := d.checkPos(pos); err != nil {
		return err
	}
	d.caret = pos
	if d.session != nil && !d.session.covers(pos) {
		d.session = nil
	}
	return nil
}

// Blur signals that the editor lost focus. Any open session is cancelled.
func (d *Document) Blur() {
	d.session = nil
}

func (d *Document) checkPos(pos int) error {
	if pos < 0 || pos > d.Len() {
		return fmt.Errorf("%w: position %d not in [0, %d]", ErrOutOfRange, pos, d.Len())
	}
	return nil
}

func (d *Document) checkRange(r Range) error {
	if r.From < 0 || r.To < r.From || r.To > d.Len() {
		return fmt.Errorf("%w: range [%d, %d) not in [0, %d]", ErrOutOfRange, r.From, r.To, d.Len())
	}
	return nil
}

// locate maps a position to a leaf index and an offset inside that leaf.
// The position between two leaves belongs to the end of the first one.
func (d *Document) locate(pos int) (int, int) {
	start := 0
	for i, l := range d.leaves {
		w := l.content.Width()
		if pos <= start+w {
			return i, pos - start
		}
		start += w + 1
	}
	last := len(d.leaves) - 1
	return last, d.leaves[last].content.Width()
}

// leafStart returns the position of the first offset of leaf i.
func (d *Document) leafStart(i int) int {
	start := 0
	for j := 0; j < i; j++ {
		start += d.leaves[j].content.Width() + 1
	}
	return start
}

func cloneLeaves(ls []leaf) []leaf {
	out := make([]leaf, len(ls))
	for i, l := range ls {
		out[i] = leaf{kind: l.kind, content: l.content.clone(), checked: l.checked}
	}
	return out
}

// TextBetween returns the plain text in r with leaf boundaries shown as newlines.
func (d *Document) TextBetween(r Range) (string, error) {
	if err := d.checkRange(r); err != nil {
		return "", err
	}
	ia, oa := d.locate(r.From)
	ib, ob := d.locate(r.To)
	var out string
	for i := ia; i <= ib; i++ {
		c := d.leaves[i].content
		lo, hi := 0, c.Width()
		if i == ia {
			lo = oa
		}
		if i == ib {
			hi = ob
		}
		_, mid, _ := split3(c, lo, hi)
		if i > ia {
			out += "\n"
		}
		out += mid.PlainText()
	}
	return out, nil
}
