package store

import "errors"

var (
	// ErrIndexOutOfRange is returned when an index does not address a cell.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrDuplicateIndex is returned when an index appears more than once.
	ErrDuplicateIndex = errors.New("duplicate index")
	// ErrLengthMismatch is returned when indices and cells differ in length.
	ErrLengthMismatch = errors.New("indices and cells differ in length")
	// ErrStaleView is returned when an edit targets an outdated view.
	ErrStaleView = errors.New("view is out of date, reload and try again")
	// ErrNotInView is returned when an edited row points outside its view.
	ErrNotInView = errors.New("index is not part of the edited view")
)
