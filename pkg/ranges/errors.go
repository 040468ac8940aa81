package ranges

import "errors"

var (
	ErrNotFinite        = errors.New("bound is not a finite number")
	ErrInverted         = errors.New("low bound is greater than high bound")
	ErrOutOfLimits      = errors.New("bounds outside of the allowed range")
	ErrUnknownAttribute = errors.New("unknown attribute")
	ErrPrecision        = errors.New("precision must be between 0 and 4")
)
