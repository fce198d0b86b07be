package document

import "fmt"

// SetBlockKind converts every leaf touched by r to kind.
//
// Converting into a list makes each touched leaf one item; checkboxes
// survive only task to task. Converting into paragraphs turns each run of
// items from the same list into one paragraph, items separated by a line
// break. Positions do not move, so the caret and any open suggestion
// session are kept.
func (d *Document) SetBlockKind(r Range, kind BlockKind) error {
	if !kind.valid() {
		return fmt.Errorf("%w: block kind %q", ErrInvalidKind, kind)
	}
	if err := d.checkRange(r); err != nil {
		return err
	}

	ia, _ := d.locate(r.From)
	ib, _ := d.locate(r.To)

	out := make([]leaf, 0, len(d.leaves))
	out = append(out, d.leaves[:ia]...)
	if kind.IsList() {
		for _, l := range d.leaves[ia : ib+1] {
			out = append(out, leaf{
				kind:    kind,
				content: l.content,
				checked: l.checked && l.kind == TaskList && kind == TaskList,
			})
		}
	} else {
		var prev BlockKind
		for _, l := range d.leaves[ia : ib+1] {
			if l.kind.IsList() && l.kind == prev {
				p := &out[len(out)-1]
				p.content = concat(p.content, Inline{Text{Value: "\n"}}, l.content)
				continue
			}
			prev = l.kind
			out = append(out, leaf{kind: Paragraph, content: l.content})
		}
	}
	out = append(out, d.leaves[ib+1:]...)
	d.leaves = out
	return nil
}

// BlockKindAt returns the kind of the leaf holding position at.
func (d *Document) BlockKindAt(at int) (BlockKind, error) {
	if err := d.checkPos(at); err != nil {
		return "", err
	}
	i, _ := d.locate(at)
	return d.leaves[i].kind, nil
}
