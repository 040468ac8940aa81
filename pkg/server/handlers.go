package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/chart"
	"github.com/charlie0129/cellsim/pkg/export"
	"github.com/charlie0129/cellsim/pkg/filter"
	"github.com/charlie0129/cellsim/pkg/ranges"
	"github.com/charlie0129/cellsim/pkg/sampler"
	"github.com/charlie0129/cellsim/pkg/session"
	"github.com/charlie0129/cellsim/pkg/stats"
	"github.com/charlie0129/cellsim/pkg/store"
	"github.com/charlie0129/cellsim/pkg/version"
)

// maxImportSize caps uploaded files.
const maxImportSize = 8 << 20

// GenerateResponse is returned after cells were added.
type GenerateResponse struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// ControlsResponse is returned after the controls were replaced or reseeded.
type ControlsResponse struct {
	Reseeded bool             `json:"reseeded"`
	Controls session.Controls `json:"controls"`
}

// StatsResponse holds the statistics of the filtered view.
type StatsResponse struct {
	Summary stats.Summary                    `json:"summary"`
	ByType  map[cell.Chemistry]stats.Summary `json:"byType"`
	Total   int                              `json:"total"`
}

// VersionResponse is returned by /version.
type VersionResponse struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, VersionResponse{
		Version:   version.Version,
		GitCommit: version.GitCommit,
	})
}

func (s *Server) getIndex(c *gin.Context) {
	sess := sessionFrom(c)
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Version":      version.Version,
		"Chemistries":  cell.Chemistries,
		"Attributes":   cell.Attributes,
		"Limits":       ranges.Limits(),
		"Controls":     sess.Controls(),
		"MaxCount":     s.conf.MaxCount(),
		"MaxPrecision": ranges.MaxPrecision,
		"FilterLimits": gin.H{
			"temperature":    filter.TemperatureLimit,
			"nominalVoltage": filter.NominalVoltageLimit,
			"capacitance":    filter.CapacitanceLimit,
		},
	})
}

func (s *Server) getControls(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, sessionFrom(c).Controls())
}

func (s *Server) setControls(c *gin.Context) {
	var ctl session.Controls
	if err := c.ShouldBindJSON(&ctl); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	sess := sessionFrom(c)
	reseeded, err := sess.SetControls(ctl, s.conf.MaxCount())
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusOK, ControlsResponse{Reseeded: reseeded, Controls: sess.Controls()})
}

func (s *Server) reseed(c *gin.Context) {
	sess := sessionFrom(c)
	reseeded := sess.Reseed()
	c.IndentedJSON(http.StatusOK, ControlsResponse{Reseeded: reseeded, Controls: sess.Controls()})
}

func (s *Server) generate(c *gin.Context) {
	sess := sessionFrom(c)
	n, err := sess.Generate()
	if err != nil {
		if errors.Is(err, sampler.ErrNoChemistry) {
			abort(c, http.StatusUnprocessableEntity, err)
			return
		}
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, GenerateResponse{Added: n, Total: sess.Render().Total})
}

func (s *Server) addRandom(c *gin.Context) {
	c.IndentedJSON(http.StatusCreated, sessionFrom(c).AddRandom())
}

func (s *Server) clearCells(c *gin.Context) {
	sessionFrom(c).Clear()
	c.IndentedJSON(http.StatusOK, "ok")
}

func (s *Server) getView(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, sessionFrom(c).Render())
}

func (s *Server) putView(c *gin.Context) {
	var e store.Edit
	if err := c.ShouldBindJSON(&e); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	res, err := sessionFrom(c).ApplyEdit(e)
	if err != nil {
		if errors.Is(err, store.ErrStaleView) {
			abort(c, http.StatusConflict, err)
			return
		}
		abort(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusOK, res)
}

func (s *Server) getStats(c *gin.Context) {
	v := sessionFrom(c).Render()
	c.IndentedJSON(http.StatusOK, StatsResponse{
		Summary: v.Stats,
		ByType:  v.ByType,
		Total:   v.Total,
	})
}

func (s *Server) getChart(c *gin.Context) {
	format, err := chart.ParseFormat(c.Query("format"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	render := chart.RenderScatter
	switch c.Param("name") {
	case "scatter":
	case "temperature":
		render = chart.RenderTemperature
	default:
		abort(c, http.StatusNotFound, fmt.Errorf("unknown chart %q", c.Param("name")))
		return
	}

	opts := chart.Options{
		Width:  s.conf.ChartWidth(),
		Height: s.conf.ChartHeight(),
		Format: format,
	}

	var buf bytes.Buffer
	err = render(&buf, sessionFrom(c).Visible(), opts)
	if err != nil {
		if errors.Is(err, chart.ErrNoData) {
			c.Status(http.StatusNoContent)
			return
		}
		abort(c, http.StatusInternalServerError, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

func (s *Server) getExport(c *gin.Context) {
	format, err := export.ParseFormat(c.Param("format"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	sess := sessionFrom(c)
	cells := sess.Visible()
	if len(cells) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	b, err := export.Encode(format, cells)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}

	name := export.Filename(format, s.now())
	logrus.WithFields(logrus.Fields{
		"session": sess.ID,
		"format":  format,
		"count":   len(cells),
		"file":    name,
	}).Info("exported cells")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, format.MIME(), b)
}

// importFormat picks the format from the form value, falling back to the file
// extension.
func importFormat(explicit, filename string) (export.Format, error) {
	if explicit != "" {
		return export.ParseFormat(explicit)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return export.ParseFormat(ext)
}

func (s *Server) postImport(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportSize)

	fh, err := c.FormFile("file")
	if err != nil {
		abort(c, http.StatusBadRequest, pkgerrors.Wrap(err, "missing file"))
		return
	}

	format, err := importFormat(c.PostForm("format"), fh.Filename)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	f, err := fh.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	cells, err := export.Decode(format, f)
	if err != nil {
		abort(c, http.StatusBadRequest, pkgerrors.Wrapf(err, "failed to read %s", fh.Filename))
		return
	}

	sess := sessionFrom(c)
	n, err := sess.Import(cells)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, GenerateResponse{Added: n, Total: sess.Render().Total})
}

// endSession drops the session and its cells and expires the cookie.
func (s *Server) endSession(c *gin.Context) {
	sess := sessionFrom(c)
	s.sessions.Delete(sess.ID)
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	logrus.WithField("session", sess.ID).Info("session ended")
	c.IndentedJSON(http.StatusOK, "ok")
}

// getEvents streams store changes of the session as server-sent events.
func (s *Server) getEvents(c *gin.Context) {
	hub := sessionFrom(c).Events()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(_ io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
