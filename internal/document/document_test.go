package document

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustInsert(t *testing.T, d *Document, at int, text string) {
	t.Helper()
	if err := d.InsertText(at, text); err != nil {
		t.Fatalf("InsertText(%d, %q): %v", at, text, err)
	}
}

// roundTrip checks that the storage string parses back to the same blocks
// and that re-encoding is stable.
func roundTrip(t *testing.T, d *Document) string {
	t.Helper()
	s := d.ToStorageString()
	back := FromStorageString(s)
	if diff := cmp.Diff(d.Blocks(), back.Blocks()); diff != "" {
		t.Fatalf("round trip of %q (-want +got):\n%s", s, diff)
	}
	if again := back.ToStorageString(); again != s {
		t.Fatalf("re-encode = %q, want %q", again, s)
	}
	return s
}

func TestNew_IsEmpty(t *testing.T) {
	d := New()
	if !d.IsEmpty() {
		t.Fatal("new document should be empty")
	}
	if d.Len() != 0 {
		t.Errorf("Len = %d, want 0", d.Len())
	}
	if got := d.ToStorageString(); got != "" {
		t.Errorf("storage = %q, want empty", got)
	}
	mustInsert(t, d, 0, "x")
	if d.IsEmpty() {
		t.Error("document with text should not be empty")
	}
}

func TestIsEmpty_EmptyListIsNotEmpty(t *testing.T) {
	d := New()
	if err := d.SetBlockKind(Range{}, TaskList); err != nil {
		t.Fatal(err)
	}
	if d.IsEmpty() {
		t.Error("an empty task item is content")
	}
}

func TestBoldToggle(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "hello")
	if err := d.ToggleMark(Range{From: 0, To: 5}, MarkBold); err != nil {
		t.Fatal(err)
	}
	s := d.ToStorageString()
	if s != "**hello**" {
		t.Fatalf("storage = %q, want %q", s, "**hello**")
	}
	want := []Block{{Kind: Paragraph, Content: Inline{Text{Value: "hello", Bold: true}}}}
	if diff := cmp.Diff(want, FromStorageString(s).Blocks()); diff != "" {
		t.Errorf("parsed blocks (-want +got):\n%s", diff)
	}

	// Toggling again removes the mark.
	if err := d.ToggleMark(Range{From: 0, To: 5}, MarkBold); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "hello" {
		t.Errorf("storage after second toggle = %q", got)
	}
}

func TestToggleMark_PartialRangeNormalizes(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "hello world")
	if err := d.ToggleMark(Range{From: 0, To: 5}, MarkBold); err != nil {
		t.Fatal(err)
	}
	// Mixed range: bold wins, and the spans merge back into one.
	if err := d.ToggleMark(Range{From: 3, To: 11}, MarkBold); err != nil {
		t.Fatal(err)
	}
	want := []Block{{Kind: Paragraph, Content: Inline{Text{Value: "hello world", Bold: true}}}}
	if diff := cmp.Diff(want, d.Blocks()); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}
}

func TestInsertText_InheritsBold(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "ab")
	if err := d.ToggleMark(Range{From: 0, To: 2}, MarkBold); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, d, 2, "c")
	mustInsert(t, d, 0, "z")
	want := Inline{Text{Value: "zabc", Bold: true}}
	if diff := cmp.Diff(want, d.Blocks()[0].Content); diff != "" {
		t.Errorf("content (-want +got):\n%s", diff)
	}
}

func TestOutOfRange_LeavesDocumentUnchanged(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "abc")
	before := d.ToStorageString()

	checks := []struct {
		name string
		err  error
	}{
		{"insert", d.InsertText(4, "x")},
		{"insert negative", d.InsertText(-1, "x")},
		{"delete", d.DeleteRange(Range{From: 1, To: 9})},
		{"inverted", d.DeleteRange(Range{From: 2, To: 1})},
		{"toggle", d.ToggleMark(Range{From: 0, To: 4}, MarkBold)},
		{"block kind", d.SetBlockKind(Range{From: 0, To: 4}, TaskList)},
		{"reference", d.InsertReference(7, RefTag, "go", "")},
		{"caret", d.SetCaret(5)},
	}
	for _, c := range checks {
		if !errors.Is(c.err, ErrOutOfRange) {
			t.Errorf("%s: err = %v, want ErrOutOfRange", c.name, c.err)
		}
	}
	if got := d.ToStorageString(); got != before {
		t.Errorf("document changed: %q -> %q", before, got)
	}
}

func TestDeleteRange_AcrossLeaves(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "first")
	if err := d.SplitBlock(5); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, d, 6, "second")
	if got := d.ToStorageString(); got != "first\n\nsecond" {
		t.Fatalf("storage = %q", got)
	}
	if err := d.DeleteRange(Range{From: 3, To: 9}); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "firond" {
		t.Errorf("storage = %q, want %q", got, "firond")
	}
	if d.Caret() != 3 {
		t.Errorf("caret = %d, want 3", d.Caret())
	}
}

func TestDeleteRange_ReferenceIsAtomic(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "a ")
	if err := d.InsertReference(2, RefMemo, "7", "Seven"); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, d, 3, " b")
	if err := d.DeleteRange(Range{From: 2, To: 3}); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "a  b" {
		t.Errorf("storage = %q, want %q", got, "a  b")
	}
}

func TestTaskList(t *testing.T) {
	d := New()
	if err := d.SetBlockKind(Range{From: 0, To: 0}, TaskList); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, d, 0, "buy milk")
	unchecked := d.ToStorageString()
	if unchecked != "- [ ] buy milk" {
		t.Fatalf("storage = %q", unchecked)
	}
	if err := d.SetChecked(0, true); err != nil {
		t.Fatal(err)
	}
	checked := d.ToStorageString()
	if checked != "- [x] buy milk" {
		t.Fatalf("storage = %q", checked)
	}
	// Only the checkbox token differs.
	if unchecked[:3] != checked[:3] || unchecked[4:] != checked[4:] {
		t.Errorf("more than the checkbox changed: %q vs %q", unchecked, checked)
	}
	roundTrip(t, d)
}

func TestSetChecked_NotTask(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "plain")
	if err := d.SetChecked(0, true); !errors.Is(err, ErrNotTaskItem) {
		t.Errorf("err = %v, want ErrNotTaskItem", err)
	}
}

func TestSetBlockKind_ListToParagraph(t *testing.T) {
	d := FromStorageString("- [x] one\n- [ ] two\n\nafter")
	if err := d.SetBlockKind(Range{From: 0, To: 5}, Paragraph); err != nil {
		t.Fatal(err)
	}
	want := []Block{
		{Kind: Paragraph, Content: Inline{Text{Value: "one\ntwo"}}},
		{Kind: Paragraph, Content: Inline{Text{Value: "after"}}},
	}
	if diff := cmp.Diff(want, d.Blocks()); diff != "" {
		t.Errorf("blocks (-want +got):\n%s", diff)
	}
	if got := d.Len(); got != 13 {
		t.Errorf("Len = %d, want 13", got)
	}
	roundTrip(t, d)
}

func TestSetBlockKind_PreservesChecked(t *testing.T) {
	d := FromStorageString("- [x] one\n- [ ] two")
	if err := d.SetBlockKind(Range{From: 0, To: 0}, TaskList); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "- [x] one\n- [ ] two" {
		t.Errorf("storage = %q", got)
	}
	if err := d.SetBlockKind(Range{From: 0, To: 7}, OrderedList); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "1. one\n2. two" {
		t.Errorf("storage = %q", got)
	}
	if err := d.SetBlockKind(Range{From: 0, To: 7}, TaskList); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "- [ ] one\n- [ ] two" {
		t.Errorf("storage = %q, want new items unchecked", got)
	}
}

func TestSetBlockKind_InvalidKind(t *testing.T) {
	d := New()
	if err := d.SetBlockKind(Range{}, BlockKind("heading")); !errors.Is(err, ErrInvalidKind) {
		t.Errorf("err = %v, want ErrInvalidKind", err)
	}
}

func TestSplitBlock_ListItems(t *testing.T) {
	d := New()
	if err := d.SetBlockKind(Range{}, UnorderedList); err != nil {
		t.Fatal(err)
	}
	mustInsert(t, d, 0, "ab")
	if err := d.SplitBlock(1); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "- a\n- b" {
		t.Fatalf("storage = %q", got)
	}
	// Enter on a fresh empty item leaves the list.
	if err := d.SplitBlock(3); err != nil {
		t.Fatal(err)
	}
	if err := d.SplitBlock(4); err != nil {
		t.Fatal(err)
	}
	if got := d.ToStorageString(); got != "- a\n- b\n\n&nbsp;" {
		t.Errorf("storage = %q", got)
	}
	roundTrip(t, d)
}

func TestInsertReference_Validation(t *testing.T) {
	d := New()
	cases := []struct {
		kind   ReferenceKind
		target string
		label  string
	}{
		{RefMemo, "abc", "x"},
		{RefMemo, "0", "x"},
		{RefMemo, "-3", "x"},
		{RefMemo, "5", "two\nlines"},
		{RefTag, "", ""},
		{ReferenceKind("user"), "x", "x"},
	}
	for _, c := range cases {
		if err := d.InsertReference(0, c.kind, c.target, c.label); !errors.Is(err, ErrInvalidReference) {
			t.Errorf("InsertReference(%s, %q, %q) err = %v", c.kind, c.target, c.label, err)
		}
	}
	if !d.IsEmpty() {
		t.Error("failed inserts changed the document")
	}
}

func TestInsertReference_CanonicalID(t *testing.T) {
	d := New()
	if err := d.InsertReference(0, RefMemo, "042", "Answer"); err != nil {
		t.Fatal(err)
	}
	want := Inline{Reference{Kind: RefMemo, Target: "42", Label: "Answer"}}
	if diff := cmp.Diff(want, d.Blocks()[0].Content); diff != "" {
		t.Errorf("content (-want +got):\n%s", diff)
	}
	if got := d.ToStorageString(); got != "@[Answer](42)" {
		t.Errorf("storage = %q", got)
	}
}

func TestInsertText_HardBreakAndCarriageReturn(t *testing.T) {
	d := New()
	mustInsert(t, d, 0, "a\r\nb")
	if got := d.Len(); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
	if got := d.ToStorageString(); got != "a\\\nb" {
		t.Errorf("storage = %q", got)
	}
	roundTrip(t, d)
}

func TestTextBetween(t *testing.T) {
	d := FromStorageString("ab #go\n\n- cd")
	got, err := d.TextBetween(Range{From: 1, To: 7})
	if err != nil {
		t.Fatal(err)
	}
	if got != "b #go\ncd" {
		t.Errorf("TextBetween = %q", got)
	}
}

func TestFromBlocks_MergesAdjacentLists(t *testing.T) {
	d := FromBlocks([]Block{
		{Kind: UnorderedList, Items: []Item{{Content: Inline{Text{Value: "a"}}}}},
		{Kind: UnorderedList, Items: []Item{{Content: Inline{Text{Value: "b"}}}}},
		{Kind: TaskList, Items: []Item{{Content: Inline{Text{Value: "c"}}, Checked: true}}},
	})
	if got := d.ToStorageString(); got != "- a\n- b\n\n- [x] c" {
		t.Errorf("storage = %q", got)
	}
	if n := len(d.Blocks()); n != 2 {
		t.Errorf("len(Blocks) = %d, want 2", n)
	}
}
