package document

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/starford/memos/internal/pattern"
)

// InsertText inserts text at position at. A newline becomes a hard line
// break inside the current leaf and carriage returns are dropped. The new
// text inherits the bold mark of its neighbour.
func (d *Document) InsertText(at int, text string) error {
	if err := d.checkPos(at); err != nil {
		return err
	}
	text = strings.ReplaceAll(text, "\r", "")
	if text == "" {
		return nil
	}

	i, off := d.locate(at)
	c := d.leaves[i].content
	left, right := splitAt(c, off)
	d.leaves[i].content = concat(left, Inline{Text{Value: text, Bold: boldAt(c, off)}}, right)
	d.caret = at + runeLen(text)

	d.afterInsert(at, text)
	return nil
}

// DeleteRange removes the content in r. A range spanning several leaves
// joins the head of the first leaf with the tail of the last one; the
// joined leaf keeps the first leaf's kind.
func (d *Document) DeleteRange(r Range) error {
	if err := d.checkRange(r); err != nil {
		return err
	}
	if r.Len() == 0 {
		return nil
	}
	d.cut(r)
	d.caret = r.From
	d.afterDelete(r)
	return nil
}

// ToggleMark bolds every text rune in r, or removes bold when all of them
// already are. Ranges holding no text are left alone.
func (d *Document) ToggleMark(r Range, m Mark) error {
	if m != MarkBold {
		return fmt.Errorf("%w: mark %q", ErrInvalidKind, m)
	}
	if err := d.checkRange(r); err != nil {
		return err
	}
	if r.Len() == 0 {
		return nil
	}

	ia, oa := d.locate(r.From)
	ib, ob := d.locate(r.To)
	bounds := func(i int) (int, int) {
		lo, hi := 0, d.leaves[i].content.Width()
		if i == ia {
			lo = oa
		}
		if i == ib {
			hi = ob
		}
		return lo, hi
	}

	hasText, all := false, true
	for i := ia; i <= ib; i++ {
		lo, hi := bounds(i)
		_, mid, _ := split3(d.leaves[i].content, lo, hi)
		h, b := allBold(mid)
		if h {
			hasText = true
			all = all && b
		}
	}
	if !hasText {
		return nil
	}

	for i := ia; i <= ib; i++ {
		lo, hi := bounds(i)
		left, mid, right := split3(d.leaves[i].content, lo, hi)
		d.leaves[i].content = concat(left, setBold(mid, !all), right)
	}
	return nil
}

// SplitBlock breaks the leaf at position at in two, as the Enter key does.
// Splitting a list item starts a new unchecked item of the same list;
// pressing it on an empty item turns that item into a paragraph instead.
func (d *Document) SplitBlock(at int) error {
	if err := d.checkPos(at); err != nil {
		return err
	}
	d.session = nil

	i, off := d.locate(at)
	l := d.leaves[i]
	if l.kind.IsList() && l.content.IsEmpty() {
		d.leaves[i] = leaf{kind: Paragraph}
		d.caret = at
		return nil
	}

	left, right := splitAt(l.content, off)
	d.leaves[i] = leaf{kind: l.kind, content: left, checked: l.checked}
	d.leaves = slices.Insert(d.leaves, i+1, leaf{kind: l.kind, content: right})
	d.caret = at + 1
	return nil
}

// SetChecked sets the checkbox of the task item holding position at.
func (d *Document) SetChecked(at int, checked bool) error {
	if err := d.checkPos(at); err != nil {
		return err
	}
	i, _ := d.locate(at)
	if d.leaves[i].kind != TaskList {
		return fmt.Errorf("%w: %s at %d", ErrNotTaskItem, d.leaves[i].kind, at)
	}
	d.leaves[i].checked = checked
	return nil
}

// Checked reports the checkbox of the task item holding position at.
func (d *Document) Checked(at int) (bool, error) {
	if err := d.checkPos(at); err != nil {
		return false, err
	}
	i, _ := d.locate(at)
	if d.leaves[i].kind != TaskList {
		return false, fmt.Errorf("%w: %s at %d", ErrNotTaskItem, d.leaves[i].kind, at)
	}
	return d.leaves[i].checked, nil
}

// InsertReference inserts one Reference span at position at and ends any
// suggestion session. While a session is open the reference replaces the
// session's anchor (the trigger and its query) and at is ignored.
//
// Memo targets must be positive decimal ids. Tags are identified by their
// label, so for tags target is the label and label is ignored.
func (d *Document) InsertReference(at int, kind ReferenceKind, target, label string) error {
	ref, err := newReference(kind, target, label)
	if err != nil {
		return err
	}
	r := At(at)
	if d.session != nil {
		r = d.session.anchor
	}
	if err := d.checkRange(r); err != nil {
		return err
	}

	d.session = nil
	d.cut(r)
	i, off := d.locate(r.From)
	left, right := splitAt(d.leaves[i].content, off)
	d.leaves[i].content = concat(left, Inline{ref}, right)
	d.caret = r.From + 1
	return nil
}

func newReference(kind ReferenceKind, target, label string) (Reference, error) {
	switch kind {
	case RefMemo:
		id, ok := pattern.ParseMemoID(target)
		if !ok {
			return Reference{}, fmt.Errorf("%w: memo id %q", ErrInvalidReference, target)
		}
		if strings.ContainsAny(label, "\r\n") {
			return Reference{}, fmt.Errorf("%w: label spans lines", ErrInvalidReference)
		}
		return Reference{Kind: RefMemo, Target: strconv.FormatInt(id, 10), Label: label}, nil
	case RefTag:
		if target == "" || strings.ContainsAny(target, "\r\n") {
			return Reference{}, fmt.Errorf("%w: tag %q", ErrInvalidReference, target)
		}
		return Reference{Kind: RefTag, Target: target, Label: target}, nil
	default:
		return Reference{}, fmt.Errorf("%w: reference kind %q", ErrInvalidReference, kind)
	}
}

// cut removes r without touching the caret or the session. r must be valid.
func (d *Document) cut(r Range) {
	if r.Len() == 0 {
		return
	}
	ia, oa := d.locate(r.From)
	ib, ob := d.locate(r.To)
	left, _ := splitAt(d.leaves[ia].content, oa)
	_, right := splitAt(d.leaves[ib].content, ob)

	first := d.leaves[ia]
	first.content = concat(left, right)

	leaves := make([]leaf, 0, len(d.leaves)-(ib-ia))
	leaves = append(leaves, d.leaves[:ia]...)
	leaves = append(leaves, first)
	leaves = append(leaves, d.leaves[ib+1:]...)
	d.leaves = leaves
}
