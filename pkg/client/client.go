// Package client talks to a running cellsim server over HTTP.
package client

import (
	"github.com/charlie0129/cellsim/internal/client"
)

// Client calls the cellsim HTTP API. It keeps the session cookie, so calls
// made through one Client act on the same cell store.
type Client struct {
	*client.Client
}

// NewClient returns a client for the server at addr. session resumes an
// existing session; pass "" to start a new one.
func NewClient(addr string, session string) (*Client, error) {
	c, err := client.NewClient(addr, session)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c}, nil
}
