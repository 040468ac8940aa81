package client

import (
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/chart"
	"github.com/charlie0129/cellsim/pkg/config"
	"github.com/charlie0129/cellsim/pkg/export"
	"github.com/charlie0129/cellsim/pkg/server"
	"github.com/charlie0129/cellsim/pkg/session"
	"github.com/charlie0129/cellsim/pkg/store"
)

func getJSON[T any](c *Client, path string, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	var v T
	if err := json.Unmarshal(ret, &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func sendJSON[T any](c *Client, method, path string, in any, what string) (*T, error) {
	var data []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		data = b
	}
	ret, err := c.Send(method, path, data)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to %s", what)
	}
	var v T
	if err := json.Unmarshal(ret, &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal response to %s", what)
	}
	return &v, nil
}

func (c *Client) GetControls() (*session.Controls, error) {
	return getJSON[session.Controls](c, "/api/controls", "controls")
}

func (c *Client) SetControls(ctl session.Controls) (*server.ControlsResponse, error) {
	return sendJSON[server.ControlsResponse](c, http.MethodPut, "/api/controls", ctl, "set controls")
}

func (c *Client) Reseed() (*server.ControlsResponse, error) {
	return sendJSON[server.ControlsResponse](c, http.MethodPost, "/api/controls/reseed", nil, "reseed")
}

func (c *Client) Generate() (*server.GenerateResponse, error) {
	return sendJSON[server.GenerateResponse](c, http.MethodPost, "/api/cells/generate", nil, "generate cells")
}

func (c *Client) AddRandom() (*cell.Cell, error) {
	return sendJSON[cell.Cell](c, http.MethodPost, "/api/cells/random", nil, "add a random cell")
}

func (c *Client) Clear() error {
	_, err := c.Delete("/api/cells")
	return pkgerrors.Wrap(err, "failed to clear cells")
}

func (c *Client) GetView() (*session.View, error) {
	return getJSON[session.View](c, "/api/view", "view")
}

func (c *Client) ApplyEdit(e store.Edit) (*store.EditResult, error) {
	return sendJSON[store.EditResult](c, http.MethodPut, "/api/view", e, "apply edit")
}

// EndSession drops the session and its cells on the server.
func (c *Client) EndSession() error {
	_, err := c.Delete("/api/session")
	return pkgerrors.Wrap(err, "failed to end session")
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[config.RawFileConfig](c, "/api/config", "config")
}

func (c *Client) setConfigInt(name string, v int) (string, error) {
	msg, err := sendJSON[string](c, http.MethodPut, "/api/config/"+name, v, "set "+name)
	if err != nil {
		return "", err
	}
	return *msg, nil
}

func (c *Client) SetMaxCount(v int) (string, error) {
	return c.setConfigInt("max-count", v)
}

func (c *Client) SetDefaultCount(v int) (string, error) {
	return c.setConfigInt("default-count", v)
}

func (c *Client) SetDefaultPrecision(v int) (string, error) {
	return c.setConfigInt("default-precision", v)
}

func (c *Client) SetSessionTTL(minutes int) (string, error) {
	return c.setConfigInt("session-ttl", minutes)
}

func (c *Client) GetStats() (*server.StatsResponse, error) {
	return getJSON[server.StatsResponse](c, "/api/stats", "stats")
}

func (c *Client) GetVersion() (*server.VersionResponse, error) {
	return getJSON[server.VersionResponse](c, "/version", "version")
}

// GetChart fetches a rendered chart. It returns chart.ErrNoData when the
// filtered view is empty.
func (c *Client) GetChart(name string, format chart.Format) ([]byte, error) {
	resp, err := c.Do(http.MethodGet, "/api/charts/"+name+"?format="+string(format), "", nil)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s chart", name)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, chart.ErrNoData
	}
	return resp.Body, nil
}

// Export downloads the filtered view and returns the file content together
// with the file name the server suggests.
func (c *Client) Export(format export.Format) ([]byte, string, error) {
	resp, err := c.Do(http.MethodGet, "/api/export/"+string(format), "", nil)
	if err != nil {
		return nil, "", pkgerrors.Wrapf(err, "failed to export %s", format)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, "", ErrNothingToExport
	}

	name := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = params["filename"]
	}
	return resp.Body, name, nil
}

// Import uploads a CSV or JSON file and appends its cells.
func (c *Client) Import(format export.Format, filename string, data []byte) (*server.GenerateResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("format", string(format)); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.Do(http.MethodPost, "/api/import", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to import %s", filename)
	}
	var ret server.GenerateResponse
	if err := json.Unmarshal(resp.Body, &ret); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal import response")
	}
	return &ret, nil
}
