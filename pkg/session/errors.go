package session

import "errors"

var (
	// ErrInvalidControls is returned when a control value is out of range.
	ErrInvalidControls = errors.New("invalid controls")
	// ErrEmptyImport is returned when an uploaded file holds no cells.
	ErrEmptyImport = errors.New("file contains no cells")
)
