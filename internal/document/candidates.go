package document

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// Candidate is one suggestion offered by a session. Memo candidates carry
// the memo id in Target, a display label and the memo's plain text; tag
// candidates carry the tag label in both Target and Label.
type Candidate struct {
	Kind    ReferenceKind
	Target  string
	Label   string
	Text    string
	Recency time.Time
}

// CandidateSource is an in-memory snapshot of memos and tags. Sessions
// query it synchronously on every keystroke, so it must not do I/O.
type CandidateSource interface {
	Candidates() []Candidate
}

// StaticCandidates is a fixed CandidateSource.
type StaticCandidates []Candidate

// Candidates implements CandidateSource.
func (s StaticCandidates) Candidates() []Candidate {
	return s
}

type hit struct {
	c       Candidate
	pos     int
	inLabel bool
}

// rank keeps the candidates of the given kinds whose label or text contains
// query caselessly, then orders earlier matches first, recent first, label
// matches before text matches, and finally by kind and target.
func rank(all []Candidate, query string, kinds []ReferenceKind, limit int) []Candidate {
	fold := cases.Fold()
	q := fold.String(query)

	var hits []hit
	for _, c := range all {
		if !slices.Contains(kinds, c.Kind) {
			continue
		}
		h := hit{c: c, pos: -1}
		if pos, ok := foldIndex(fold, c.Label, q); ok {
			h.pos, h.inLabel = pos, true
		}
		if c.Text != "" {
			if pos, ok := foldIndex(fold, c.Text, q); ok && (h.pos < 0 || pos < h.pos) {
				h.pos, h.inLabel = pos, false
			}
		}
		if h.pos >= 0 {
			hits = append(hits, h)
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if n := cmp.Compare(a.pos, b.pos); n != 0 {
			return n
		}
		if n := b.c.Recency.Compare(a.c.Recency); n != 0 {
			return n
		}
		if a.inLabel != b.inLabel {
			if a.inLabel {
				return -1
			}
			return 1
		}
		if n := cmp.Compare(a.c.Kind, b.c.Kind); n != 0 {
			return n
		}
		return compareTargets(a.c, b.c)
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.c
	}
	return out
}

// foldIndex returns the rune offset of q in the folded form of s.
func foldIndex(fold cases.Caser, s, q string) (int, bool) {
	f := fold.String(s)
	i := strings.Index(f, q)
	if i < 0 {
		return 0, false
	}
	return utf8.RuneCountInString(f[:i]), true
}

// compareTargets orders memo ids numerically and everything else bytewise.
func compareTargets(a, b Candidate) int {
	if a.Kind == RefMemo && b.Kind == RefMemo {
		if n := cmp.Compare(len(a.Target), len(b.Target)); n != 0 {
			return n
		}
	}
	return strings.Compare(a.Target, b.Target)
}
