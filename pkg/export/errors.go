package export

import "errors"

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrNoHeader      = errors.New("csv file has no header row")
	ErrMissingColumn = errors.New("missing column")
)
