package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/config"
	"github.com/charlie0129/cellsim/pkg/session"
	"github.com/charlie0129/cellsim/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	conf := config.NewFileFromConfig(&config.RawFileConfig{}, filepath.Join(t.TempDir(), "cellsim.json"))
	return New(conf)
}

// browser replays the session cookie like a real browser would.
type browser struct {
	t      *testing.T
	h      http.Handler
	cookie *http.Cookie
}

func (b *browser) do(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	b.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	w := httptest.NewRecorder()
	b.h.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			b.cookie = c
		}
	}
	return w
}

func (b *browser) json(method, path string, in any) *httptest.ResponseRecorder {
	b.t.Helper()
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			b.t.Fatal(err)
		}
		body = bytes.NewReader(raw)
	}
	return b.do(method, path, body, "application/json")
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d, want %d, body %s", w.Code, code, w.Body.String())
	}
}

func TestSessionCookie(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}

	expectStatus(t, b.json(http.MethodGet, "/api/view", nil), http.StatusOK)
	if b.cookie == nil {
		t.Fatalf("first request should set %s", sessionCookie)
	}
	first := b.cookie.Value

	expectStatus(t, b.json(http.MethodPost, "/api/cells/random", nil), http.StatusCreated)
	if b.cookie.Value != first || s.sessions.Len() != 1 {
		t.Fatalf("session should be reused")
	}

	other := &browser{t: t, h: s.Handler()}
	v := decode[session.View](t, other.json(http.MethodGet, "/api/view", nil))
	if v.Total != 0 {
		t.Fatalf("a new browser should start with an empty store, total %d", v.Total)
	}

	unknown := &browser{t: t, h: s.Handler(), cookie: &http.Cookie{Name: sessionCookie, Value: "gone"}}
	expectStatus(t, unknown.json(http.MethodGet, "/api/view", nil), http.StatusOK)
	if unknown.cookie.Value == "gone" {
		t.Fatalf("unknown session id should be replaced")
	}
}

func TestGenerateSeeded(t *testing.T) {
	s := newTestServer(t)

	run := func() session.View {
		b := &browser{t: t, h: s.Handler()}
		ctl := decode[session.Controls](t, b.json(http.MethodGet, "/api/controls", nil))
		ctl.Seed = "42"
		ctl.Count = 25
		w := b.json(http.MethodPut, "/api/controls", ctl)
		expectStatus(t, w, http.StatusOK)
		if !decode[ControlsResponse](t, w).Reseeded {
			t.Fatalf("setting a new seed should reseed")
		}

		w = b.json(http.MethodPost, "/api/cells/generate", nil)
		expectStatus(t, w, http.StatusCreated)
		if got := decode[GenerateResponse](t, w); got.Added != 25 || got.Total != 25 {
			t.Fatalf("generate = %+v", got)
		}
		return decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	}

	a, b := run(), run()
	if len(a.Rows) == 0 || len(a.Rows) != len(b.Rows) {
		t.Fatalf("row counts differ: %d vs %d", len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i] != b.Rows[i] {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Rows[i], b.Rows[i])
		}
	}
}

func TestGenerateValidation(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}

	ctl := decode[session.Controls](t, b.json(http.MethodGet, "/api/controls", nil))
	bad := ctl
	bad.Count = session.MaxCount + 1
	expectStatus(t, b.json(http.MethodPut, "/api/controls", bad), http.StatusBadRequest)

	expectStatus(t, b.do(http.MethodPut, "/api/controls", strings.NewReader(`{"mix":["LiPo"]}`), "application/json"), http.StatusBadRequest)

	ctl.Mix = []cell.Chemistry{}
	expectStatus(t, b.json(http.MethodPut, "/api/controls", ctl), http.StatusOK)

	w := b.json(http.MethodPost, "/api/cells/generate", nil)
	expectStatus(t, w, http.StatusUnprocessableEntity)
	if !strings.Contains(w.Body.String(), "select at least one cell type") {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	// Adding one random cell still works with an empty mix.
	w = b.json(http.MethodPost, "/api/cells/random", nil)
	expectStatus(t, w, http.StatusCreated)
	if x := decode[cell.Cell](t, w); !x.Type.Valid() {
		t.Fatalf("random cell has type %q", x.Type)
	}
}

func TestEditAndStaleView(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}
	expectStatus(t, b.json(http.MethodPost, "/api/cells/generate", nil), http.StatusCreated)

	v := decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	if len(v.Rows) != session.DefaultCount {
		t.Fatalf("view has %d rows, want %d", len(v.Rows), session.DefaultCount)
	}

	indices := make([]int, 0, len(v.Rows))
	rows := make([]store.EditedRow, 0, len(v.Rows))
	for i := range v.Rows {
		indices = append(indices, v.Rows[i].Index)
		if i == 0 {
			// Dropped from the grid.
			continue
		}
		rows = append(rows, store.EditedRow{Index: &v.Rows[i].Index, Cell: v.Rows[i].Cell})
	}
	rows = append(rows, store.EditedRow{Cell: v.Rows[0].Cell})
	edit := store.Edit{Version: v.Version, ViewIndices: indices, Rows: rows}

	w := b.json(http.MethodPut, "/api/view", edit)
	expectStatus(t, w, http.StatusOK)
	res := decode[store.EditResult](t, w)
	if res.Removed != 1 || res.Appended != 1 || res.Replaced != len(v.Rows)-1 {
		t.Fatalf("edit result %+v", res)
	}

	// Same edit again is based on an outdated view.
	expectStatus(t, b.json(http.MethodPut, "/api/view", edit), http.StatusConflict)

	after := decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	if after.Total != session.DefaultCount {
		t.Fatalf("total = %d, want %d", after.Total, session.DefaultCount)
	}

	shown := make([]int, 0, len(after.Rows))
	for _, r := range after.Rows {
		shown = append(shown, r.Index)
	}
	invalid := store.Edit{
		Version:     after.Version,
		ViewIndices: shown,
		Rows:        []store.EditedRow{{Cell: cell.Cell{Type: "LiPo"}}},
	}
	expectStatus(t, b.json(http.MethodPut, "/api/view", invalid), http.StatusBadRequest)

	// A blanked grid cell arrives as null.
	rawShown, err := json.Marshal(shown)
	if err != nil {
		t.Fatal(err)
	}
	blank := fmt.Sprintf(`{"version":%d,"viewIndices":%s,"rows":[{"cell":{"type":"LFP","nominal_voltage":null,"min_voltage":2.5,"max_voltage":3.6,"capacitance_F":40,"current_A":2,"temperature_C":30}}]}`, after.Version, rawShown)
	w = b.do(http.MethodPut, "/api/view", strings.NewReader(blank), "application/json")
	expectStatus(t, w, http.StatusBadRequest)
	if !strings.Contains(w.Body.String(), "nominal_voltage") {
		t.Fatalf("error should name the attribute, body %s", w.Body.String())
	}

	// Only the rows of the current view may be removed.
	partial := store.Edit{Version: after.Version, ViewIndices: shown[:1]}
	expectStatus(t, b.json(http.MethodPut, "/api/view", partial), http.StatusConflict)

	unchanged := decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	if unchanged.Total != after.Total || unchanged.Version != after.Version {
		t.Fatalf("rejected edits changed the store: total %d, version %d", unchanged.Total, unchanged.Version)
	}
}

func TestChartsAndExport(t *testing.T) {
	s := newTestServer(t)
	s.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	b := &browser{t: t, h: s.Handler()}

	for _, path := range []string{"/api/charts/scatter", "/api/charts/temperature", "/api/export/csv", "/api/export/json"} {
		expectStatus(t, b.json(http.MethodGet, path, nil), http.StatusNoContent)
	}
	v := decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	if v.Exportable || v.Placeholder == "" {
		t.Fatalf("empty view should not be exportable: %+v", v)
	}

	expectStatus(t, b.json(http.MethodPost, "/api/cells/generate", nil), http.StatusCreated)

	w := b.json(http.MethodGet, "/api/charts/scatter", nil)
	expectStatus(t, w, http.StatusOK)
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("scatter is not a PNG")
	}
	w = b.json(http.MethodGet, "/api/charts/temperature?format=svg", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Header().Get("Content-Type") != "image/svg+xml" || !strings.Contains(w.Body.String(), "<svg") {
		t.Fatalf("temperature chart is not an SVG: %s", w.Header().Get("Content-Type"))
	}
	expectStatus(t, b.json(http.MethodGet, "/api/charts/pie", nil), http.StatusNotFound)
	expectStatus(t, b.json(http.MethodGet, "/api/charts/scatter?format=gif", nil), http.StatusBadRequest)

	w = b.json(http.MethodGet, "/api/export/csv", nil)
	expectStatus(t, w, http.StatusOK)
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="cells_20240102_030405.csv"` {
		t.Fatalf("Content-Disposition = %s", got)
	}
	if lines := strings.Count(w.Body.String(), "\n"); lines != session.DefaultCount+1 {
		t.Fatalf("csv has %d lines, want %d", lines, session.DefaultCount+1)
	}
	expectStatus(t, b.json(http.MethodGet, "/api/export/xml", nil), http.StatusBadRequest)

	w = b.json(http.MethodGet, "/api/stats", nil)
	expectStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), `"avg_nominal_V"`) {
		t.Fatalf("stats body %s", w.Body.String())
	}

	expectStatus(t, b.json(http.MethodDelete, "/api/cells", nil), http.StatusOK)
	expectStatus(t, b.json(http.MethodGet, "/api/export/json", nil), http.StatusNoContent)
}

func multipartFile(t *testing.T, name string, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestImport(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}

	csv := "type,nominal_voltage,min_voltage,max_voltage,capacitance_F,current_A,temperature_C\n" +
		"LFP,3.25,2.61,3.6,42.5,3,35\n" +
		"NMC,3.7,3.1,4.2,88.01,9.99,45\n"
	body, ct := multipartFile(t, "cells.csv", csv)
	w := b.do(http.MethodPost, "/api/import", body, ct)
	expectStatus(t, w, http.StatusCreated)
	if got := decode[GenerateResponse](t, w); got.Added != 2 || got.Total != 2 {
		t.Fatalf("import = %+v", got)
	}

	body, ct = multipartFile(t, "cells.json", `[]`)
	expectStatus(t, b.do(http.MethodPost, "/api/import", body, ct), http.StatusBadRequest)

	body, ct = multipartFile(t, "cells.txt", csv)
	expectStatus(t, b.do(http.MethodPost, "/api/import", body, ct), http.StatusBadRequest)

	body, ct = multipartFile(t, "cells.csv", "type,nominal_voltage\nLFP,3.2\n")
	expectStatus(t, b.do(http.MethodPost, "/api/import", body, ct), http.StatusBadRequest)
}

func TestIndexAndVersion(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}

	w := b.do(http.MethodGet, "/", nil, "")
	expectStatus(t, w, http.StatusOK)
	for _, want := range []string{"Battery Cell Data Generator", `value="LFP" checked`, "temperature_C", "/static/app.js"} {
		if !strings.Contains(w.Body.String(), want) {
			t.Fatalf("index page does not contain %q", want)
		}
	}

	expectStatus(t, b.do(http.MethodGet, "/static/app.js", nil, ""), http.StatusOK)

	w = b.do(http.MethodGet, "/version", nil, "")
	expectStatus(t, w, http.StatusOK)
	if decode[VersionResponse](t, w).Version == "" {
		t.Fatalf("empty version")
	}
}

func TestReload(t *testing.T) {
	p := t.TempDir() + "/cellsim.json"
	conf, err := config.NewFile(p)
	if err != nil {
		t.Fatal(err)
	}
	s := New(conf)

	conf.SetMaxCount(5)
	if err := conf.Save(); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}

	b := &browser{t: t, h: s.Handler()}
	ctl := decode[session.Controls](t, b.json(http.MethodGet, "/api/controls", nil))
	if ctl.Count != 5 {
		t.Fatalf("new sessions should start capped at the reloaded maxCount, count %d", ctl.Count)
	}
	ctl.Count = 6
	expectStatus(t, b.json(http.MethodPut, "/api/controls", ctl), http.StatusBadRequest)
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	hc := &http.Client{Jar: jar}

	resp, err := hc.Get(srv.URL + "/api/view")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	u, _ := url.Parse(srv.URL)
	cookies := jar.Cookies(u)
	if len(cookies) != 1 {
		t.Fatalf("expected one session cookie, got %v", cookies)
	}
	sess, ok := s.sessions.Get(cookies[0].Value)
	if !ok {
		t.Fatalf("session not found")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lines := make(chan string)
	go func() {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
		resp, err := hc.Do(req)
		if err != nil {
			return
		}
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for sess.Events().Subscribers() == 0 {
		select {
		case <-ctx.Done():
			t.Fatalf("event stream never subscribed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	resp, err = hc.Post(srv.URL+"/api/cells/random", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	for {
		select {
		case line := <-lines:
			if line == "event:cells.changed" {
				return
			}
		case <-ctx.Done():
			t.Fatalf("no cells.changed event received")
		}
	}
}

func TestConfigAPI(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}

	conf := decode[config.RawFileConfig](t, b.json(http.MethodGet, "/api/config", nil))
	if *conf.MaxCount != session.MaxCount || *conf.DefaultCount != session.DefaultCount {
		t.Fatalf("unexpected config %+v", conf)
	}

	tests := []struct {
		path string
		in   int
		code int
	}{
		{path: "/api/config/max-count", in: 0, code: http.StatusBadRequest},
		{path: "/api/config/max-count", in: session.MaxCount + 1, code: http.StatusBadRequest},
		{path: "/api/config/max-count", in: session.DefaultCount - 1, code: http.StatusBadRequest},
		{path: "/api/config/max-count", in: 50, code: http.StatusCreated},
		{path: "/api/config/default-count", in: 51, code: http.StatusBadRequest},
		{path: "/api/config/default-count", in: 20, code: http.StatusCreated},
		{path: "/api/config/default-precision", in: 9, code: http.StatusBadRequest},
		{path: "/api/config/default-precision", in: 3, code: http.StatusCreated},
		{path: "/api/config/session-ttl", in: -1, code: http.StatusBadRequest},
		{path: "/api/config/session-ttl", in: 0, code: http.StatusCreated},
	}
	for _, tt := range tests {
		expectStatus(t, b.json(http.MethodPut, tt.path, tt.in), tt.code)
	}

	conf = decode[config.RawFileConfig](t, b.json(http.MethodGet, "/api/config", nil))
	if *conf.MaxCount != 50 || *conf.DefaultCount != 20 || *conf.DefaultPrecision != 3 || *conf.SessionTTLMinutes != 0 {
		t.Fatalf("config not applied: %s", b.json(http.MethodGet, "/api/config", nil).Body.String())
	}

	// The changes were saved and new sessions start with them.
	if err := s.Reload(); err != nil {
		t.Fatal(err)
	}
	fresh := &browser{t: t, h: s.Handler()}
	ctl := decode[session.Controls](t, fresh.json(http.MethodGet, "/api/controls", nil))
	if ctl.Count != 20 || ctl.Precision != 3 {
		t.Fatalf("new session controls %+v", ctl)
	}
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t)
	b := &browser{t: t, h: s.Handler()}
	expectStatus(t, b.json(http.MethodPost, "/api/cells/generate", nil), http.StatusCreated)
	first := b.cookie.Value

	w := b.json(http.MethodDelete, "/api/session", nil)
	expectStatus(t, w, http.StatusOK)
	if b.cookie.MaxAge >= 0 {
		t.Fatalf("session cookie should be expired, got %+v", b.cookie)
	}
	if _, ok := s.sessions.Get(first); ok {
		t.Fatalf("session %s is still live", first)
	}

	// The old id no longer resolves to the old cells.
	b.cookie = &http.Cookie{Name: sessionCookie, Value: first}
	v := decode[session.View](t, b.json(http.MethodGet, "/api/view", nil))
	if v.Total != 0 || b.cookie.Value == first {
		t.Fatalf("ended session was resumed: total %d", v.Total)
	}
}
