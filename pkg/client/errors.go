package client

import (
	"errors"

	"github.com/charlie0129/cellsim/internal/client"
)

var (
	// ErrServerNotRunning is returned when the server is not running
	ErrServerNotRunning = client.ErrServerNotRunning

	// ErrNotFound is returned when 404 is returned from the server
	ErrNotFound = client.ErrNotFound

	// ErrNothingToExport is returned when the filtered view is empty
	ErrNothingToExport = errors.New("nothing to export, generate cells or adjust filters")
)

// StatusError is returned for non-2xx responses.
type StatusError = client.StatusError
