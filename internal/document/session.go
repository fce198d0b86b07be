package document

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNoSession is returned by session operations when no session is open.
var ErrNoSession = errors.New("document: no suggestion session")

// Session is an open suggestion session. It lives on the Document that
// opened it and is dropped when it is committed or cancelled.
type Session struct {
	trigger    rune
	kinds      []ReferenceKind
	anchor     Range
	query      string
	candidates []Candidate
	selected   int
}

// Trigger returns the rune that opened the session.
func (s *Session) Trigger() rune { return s.trigger }

// Query returns the text typed after the trigger.
func (s *Session) Query() string { return s.query }

// Anchor returns the range holding the trigger and the query.
func (s *Session) Anchor() Range { return s.anchor }

// Selected returns the index of the highlighted candidate.
func (s *Session) Selected() int { return s.selected }

// Candidates returns a copy of the ranked candidates.
func (s *Session) Candidates() []Candidate {
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// covers reports whether an edit or caret at pos stays inside the session.
func (s *Session) covers(pos int) bool {
	return pos > s.anchor.From && pos <= s.anchor.To
}

// Session returns the open suggestion session, or nil.
func (d *Document) Session() *Session {
	return d.session
}

// NextCandidate moves the selection forward, wrapping around.
func (d *Document) NextCandidate() {
	d.moveSelection(1)
}

// PrevCandidate moves the selection backward, wrapping around.
func (d *Document) PrevCandidate() {
	d.moveSelection(-1)
}

func (d *Document) moveSelection(step int) {
	s := d.session
	if s == nil || len(s.candidates) == 0 {
		return
	}
	n := len(s.candidates)
	s.selected = ((s.selected+step)%n + n) % n
}

// SelectCandidate highlights candidate i.
func (d *Document) SelectCandidate(i int) error {
	s := d.session
	if s == nil {
		return ErrNoSession
	}
	if i < 0 || i >= len(s.candidates) {
		return ErrOutOfRange
	}
	s.selected = i
	return nil
}

// CommitSuggestion replaces the anchor with the highlighted candidate.
// With no candidates the session is cancelled and false is returned.
func (d *Document) CommitSuggestion() (bool, error) {
	s := d.session
	if s == nil {
		return false, ErrNoSession
	}
	if len(s.candidates) == 0 {
		d.session = nil
		return false, nil
	}
	c := s.candidates[s.selected]
	if err := d.InsertReference(s.anchor.From, c.Kind, c.Target, c.Label); err != nil {
		return false, err
	}
	return true, nil
}

// CommitCandidate replaces the anchor with c, which need not be one of the
// ranked candidates.
func (d *Document) CommitCandidate(c Candidate) error {
	if d.session == nil {
		return ErrNoSession
	}
	return d.InsertReference(d.session.anchor.From, c.Kind, c.Target, c.Label)
}

// CancelSuggestion drops the open session, if any. The typed text stays.
func (d *Document) CancelSuggestion() {
	d.session = nil
}

func (d *Document) afterInsert(at int, text string) {
	if s := d.session; s != nil {
		if s.covers(at) && !strings.ContainsFunc(text, unicode.IsSpace) {
			s.anchor.To += runeLen(text)
			d.refreshSession()
			return
		}
		d.session = nil
	}

	r, size := utf8.DecodeRuneInString(text)
	if size != len(text) {
		return
	}
	kinds, ok := d.triggers[r]
	if !ok {
		return
	}
	d.session = &Session{trigger: r, kinds: kinds, anchor: Range{From: at, To: at + 1}}
	d.refreshSession()
}

func (d *Document) afterDelete(r Range) {
	s := d.session
	if s == nil {
		return
	}
	if r.From > s.anchor.From && r.To <= s.anchor.To {
		s.anchor.To -= r.Len()
		d.refreshSession()
		return
	}
	d.session = nil
}

func (d *Document) refreshSession() {
	s := d.session
	q, err := d.TextBetween(Range{From: s.anchor.From + 1, To: s.anchor.To})
	if err != nil {
		d.session = nil
		return
	}
	s.query = q
	s.selected = 0
	s.candidates = nil
	if d.source != nil {
		s.candidates = rank(d.source.Candidates(), q, s.kinds, d.candidateLimit)
	}
}
