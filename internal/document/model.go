// Package document implements the in-memory memo content model, the
// mutation engine that edits it, the reference suggestion session, and the
// conversion to and from the persisted storage string.
package document

import "fmt"

// BlockKind identifies the kind of a top-level block.
type BlockKind string

// Block kinds.
const (
	Paragraph     BlockKind = "paragraph"
	OrderedList   BlockKind = "ordered_list"
	UnorderedList BlockKind = "unordered_list"
	TaskList      BlockKind = "task_list"
)

// IsList reports whether k is one of the list kinds.
func (k BlockKind) IsList() bool {
	switch k {
	case OrderedList, UnorderedList, TaskList:
		return true
	}
	return false
}

func (k BlockKind) valid() bool {
	return k == Paragraph || k.IsList()
}

// ReferenceKind identifies what a Reference points at.
type ReferenceKind string

// Reference kinds.
const (
	RefMemo ReferenceKind = "memo"
	RefTag  ReferenceKind = "tag"
)

// Mark is an inline text mark. Bold is the only one.
type Mark string

// MarkBold makes text bold.
const MarkBold Mark = "bold"

// Block is one top-level node. Paragraphs use Content, lists use Items.
type Block struct {
	Kind    BlockKind
	Content Inline
	Items   []Item
}

// Item is one list entry. Checked is only meaningful inside a TaskList.
type Item struct {
	Content Inline
	Checked bool
}

// Inline is a normalized run of spans: no empty text spans and no two
// adjacent text spans with the same marks.
type Inline []Span

// Span is either a Text or a Reference.
type Span interface {
	width() int
	span()
}

// Text is a run of characters sharing the same marks.
type Text struct {
	Value string
	Bold  bool
}

// Reference is an atomic link to a memo (Target is its id) or a tag
// (Target and Label are the tag label).
type Reference struct {
	Kind   ReferenceKind
	Target string
	Label  string
}

func (t Text) width() int      { return runeLen(t.Value) }
func (Text) span()             {}
func (Reference) width() int   { return 1 }
func (Reference) span()        {}
func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Target)
}
