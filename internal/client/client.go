package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SessionCookie is the cookie the server identifies sessions by.
const SessionCookie = "cellsim_session"

var (
	// ErrServerNotRunning is returned when nothing listens on the server address
	ErrServerNotRunning = errors.New("server not running")

	// ErrNotFound is returned when 404 is returned from the server
	ErrNotFound = errors.New("404 not found")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("got %d: %s", e.Code, e.Message)
}

// Response is a successful response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a struct for communicating with the cellsim server
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// NewClient is a constructor for creating a new Client. A non-empty session
// resumes that server-side session instead of starting a new one.
func NewClient(server string, session string) (*Client, error) {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid server address %s", server)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if session != "" {
		jar.SetCookies(u, []*http.Cookie{{Name: SessionCookie, Value: session, Path: "/"}})
	}

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Session returns the session id the server assigned, if any.
func (c *Client) Session() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.baseURL) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// Do is a method for sending a request to the cellsim server
func (c *Client) Do(method string, path string, contentType string, body io.Reader) (*Response, error) {
	u := c.baseURL.JoinPath(path)
	if i := strings.IndexByte(path, '?'); i >= 0 {
		u = c.baseURL.JoinPath(path[:i])
		u.RawQuery = path[i+1:]
	}

	logrus.WithFields(logrus.Fields{
		"method": method,
		"url":    u.String(),
	}).Debug("sending request")

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, ErrServerNotRunning
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.Errorf("failed to close response body: %v", err)
		}
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, pkgerrors.Wrap(ErrNotFound, errorMessage(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: errorMessage(b)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

// errorMessage unquotes the JSON string the server sends with errors.
func errorMessage(b []byte) string {
	var msg string
	if err := json.Unmarshal(b, &msg); err == nil {
		return msg
	}
	return strings.TrimSpace(string(b))
}

// Send is a method for sending a request with a JSON body. A nil data sends
// no body.
func (c *Client) Send(method string, path string, data []byte) ([]byte, error) {
	var body io.Reader
	contentType := ""
	if data != nil {
		body = strings.NewReader(string(data))
		contentType = "application/json"
	}
	resp, err := c.Do(method, path, contentType, body)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Get is a method for sending a GET request to the cellsim server
func (c *Client) Get(path string) ([]byte, error) {
	return c.Send(http.MethodGet, path, nil)
}

// Put is a method for sending a PUT request to the cellsim server
func (c *Client) Put(path string, data []byte) ([]byte, error) {
	return c.Send(http.MethodPut, path, data)
}

// Post is a method for sending a POST request to the cellsim server
func (c *Client) Post(path string, data []byte) ([]byte, error) {
	return c.Send(http.MethodPost, path, data)
}

// Delete is a method for sending a DELETE request to the cellsim server
func (c *Client) Delete(path string) ([]byte, error) {
	return c.Send(http.MethodDelete, path, nil)
}
