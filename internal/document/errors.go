package document

import "errors"

var (
	// ErrOutOfRange is returned when a position or range lies outside the document.
	ErrOutOfRange = errors.New("document: out of range")
	// ErrInvalidReference is returned for references that cannot be encoded.
	ErrInvalidReference = errors.New("document: invalid reference")
	// ErrNotTaskItem is returned when a checkbox is set on a non-task leaf.
	ErrNotTaskItem = errors.New("document: not a task item")
	// ErrInvalidKind is returned for unknown block kinds or marks.
	ErrInvalidKind = errors.New("document: invalid kind")
)
