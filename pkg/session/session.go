// Package session ties the controls, the cell store and the sampler of one
// browser session together and derives what the page shows.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/chart"
	"github.com/charlie0129/cellsim/pkg/events"
	"github.com/charlie0129/cellsim/pkg/filter"
	"github.com/charlie0129/cellsim/pkg/sampler"
	"github.com/charlie0129/cellsim/pkg/stats"
	"github.com/charlie0129/cellsim/pkg/store"
)

// View is what one interaction renders: the filtered rows with their store
// indices, and everything derived from them.
type View struct {
	// Version is the store version the rows were derived from. Grid edits
	// must send it back.
	Version uint64 `json:"version"`
	// Total is the number of cells in the store, filtered or not.
	Total  int                              `json:"total"`
	Rows   []store.Row                      `json:"rows"`
	Stats  stats.Summary                    `json:"stats"`
	ByType map[cell.Chemistry]stats.Summary `json:"byType"`
	// Exportable is false when there is nothing to download.
	Exportable bool `json:"exportable"`
	// Placeholder replaces the charts when there is nothing to draw.
	Placeholder string `json:"placeholder,omitempty"`
}

// Cells returns the rows without their indices.
func (v View) Cells() []cell.Cell {
	return filter.Cells(v.Rows)
}

// Render derives the view of st under c. It does not modify st.
func Render(c Controls, st *store.Store) View {
	rows := filter.Apply(st, c.Filter)
	cells := filter.Cells(rows)
	v := View{
		Version:    st.Version(),
		Total:      st.Len(),
		Rows:       rows,
		Stats:      stats.Compute(cells),
		ByType:     stats.ByType(cells),
		Exportable: len(rows) > 0,
	}
	if len(rows) == 0 {
		v.Placeholder = chart.ErrNoData.Error()
	}
	return v
}

// Session is one user's working state. All methods are serialized so that
// each interaction runs to completion before the next one starts.
type Session struct {
	ID string

	mu          sync.Mutex
	store       *store.Store
	sampler     *sampler.Sampler
	controls    Controls
	appliedSeed string
	lastSeen    time.Time

	hub *events.EventHub
}

// New returns a session with an empty store. A non-blank seed in controls is
// applied immediately.
func New(id string, controls Controls) *Session {
	s := &Session{
		ID:       id,
		store:    store.New(),
		sampler:  sampler.New(),
		controls: controls.Clone(),
		lastSeen: time.Now(),
		hub:      events.NewEventHub(),
	}
	s.applySeed(controls.Seed)
	return s
}

func (s *Session) log() *logrus.Entry {
	return logrus.WithField("session", s.ID)
}

// Events returns the hub that store changes are published on.
func (s *Session) Events() *events.EventHub {
	return s.hub
}

// Controls returns a copy of the current controls.
func (s *Session) Controls() Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controls.Clone()
}

// applySeed reseeds when seed is non-blank and differs from the seed that was
// applied last. The caller holds mu.
func (s *Session) applySeed(seed string) bool {
	seed = strings.TrimSpace(seed)
	if seed == s.appliedSeed {
		return false
	}
	s.appliedSeed = seed
	return s.sampler.Seed(seed)
}

// SetControls replaces the controls after validating them. Setting a new
// non-blank seed reseeds the sampler once.
func (s *Session) SetControls(c Controls, maxCount int) (reseeded bool, err error) {
	if err := c.Validate(maxCount); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.controls = c.Clone()
	reseeded = s.applySeed(c.Seed)
	s.log().WithField("reseeded", reseeded).Debug("controls updated")
	s.hub.Publish(events.ControlsChanged, events.ControlsChangedEvent{Reseeded: reseeded, Ts: time.Now().Unix()})
	return reseeded, nil
}

// Reseed applies the current seed again so the next generation repeats the
// sequence. It reports false when the seed is blank.
func (s *Session) Reseed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appliedSeed = strings.TrimSpace(s.controls.Seed)
	ok := s.sampler.Seed(s.appliedSeed)
	if ok {
		s.hub.Publish(events.ControlsChanged, events.ControlsChangedEvent{Reseeded: true, Ts: time.Now().Unix()})
	}
	return ok
}

// changed publishes a store change. The caller holds mu.
func (s *Session) changed(action string) {
	s.hub.Publish(events.CellsChanged, events.CellsChangedEvent{
		Action:  action,
		Version: s.store.Version(),
		Total:   s.store.Len(),
		Ts:      time.Now().Unix(),
	})
}

// Generate samples Count cells with the current controls and appends them.
// With an empty mix it returns sampler.ErrNoChemistry and the store is left
// unchanged.
func (s *Session) Generate() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.controls
	cells, err := s.sampler.SampleMany(c.Count, c.Ranges, c.Mix, c.Precision)
	if err != nil {
		return 0, err
	}
	s.store.Append(cells...)
	s.log().WithFields(logrus.Fields{
		"count": len(cells),
		"total": s.store.Len(),
	}).Info("generated cells")
	s.changed("generate")
	return len(cells), nil
}

// AddRandom appends one cell drawn from the mix, or from every chemistry when
// the mix is empty.
func (s *Session) AddRandom() cell.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.controls
	x := s.sampler.SampleAny(c.Ranges.Rounded(c.Precision), c.Mix, c.Precision)
	s.store.Append(x)
	s.log().WithField("type", x.Type).Info("added one random cell")
	s.changed("random")
	return x
}

// Clear empties the store.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Clear()
	s.log().Info("cleared cells")
	s.changed("clear")
}

// Render derives the current view.
func (s *Session) Render() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Render(s.controls, s.store)
}

// Visible returns the cells of the current view. Charts and exports consume
// these.
func (s *Session) Visible() []cell.Cell {
	return s.Render().Cells()
}

// ApplyEdit writes a grid edit back into the store. The shown indices must be
// exactly the rows the current controls select; anything else is rejected
// with store.ErrStaleView.
func (s *Session) ApplyEdit(e store.Edit) (store.EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Version == s.store.Version() {
		if !sameIndices(e.ViewIndices, filter.Apply(s.store, s.controls.Filter)) {
			err := pkgerrors.Wrap(store.ErrStaleView, "shown rows do not match the current filter")
			s.log().WithError(err).Warn("rejected grid edit")
			return store.EditResult{}, err
		}
	}

	res, err := s.store.ApplyEdit(e)
	if err != nil {
		if errors.Is(err, store.ErrStaleView) {
			s.log().WithError(err).Warn("rejected stale grid edit")
		}
		return res, err
	}
	s.log().WithFields(logrus.Fields{
		"replaced": res.Replaced,
		"removed":  res.Removed,
		"appended": res.Appended,
	}).Info("applied grid edit")
	s.changed("edit")
	return res, nil
}

// sameIndices reports whether indices holds exactly the indices of rows.
func sameIndices(indices []int, rows []store.Row) bool {
	if len(indices) != len(rows) {
		return false
	}
	want := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		want[r.Index] = struct{}{}
	}
	for _, i := range indices {
		if _, ok := want[i]; !ok {
			return false
		}
		delete(want, i)
	}
	return true
}

// Import appends decoded cells to the store.
func (s *Session) Import(cells []cell.Cell) (int, error) {
	if len(cells) == 0 {
		return 0, ErrEmptyImport
	}
	for _, c := range cells {
		if err := c.Validate(); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.Append(cells...)
	s.log().WithField("count", len(cells)).Info("imported cells")
	s.changed("import")
	return len(cells), nil
}

// touch records activity at t.
func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastSeen = t
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
