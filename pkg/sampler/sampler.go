// Package sampler draws random cells from configured bounds.
package sampler

import (
	"errors"
	"hash/fnv"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/ranges"
)

// ErrNoChemistry is returned when generation is requested with an empty mix.
var ErrNoChemistry = errors.New("select at least one cell type")

// Sampler owns a reseedable random source. It is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// New returns a Sampler seeded from the clock.
func New() *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeeded returns a Sampler seeded as if Seed(seed) had been called.
func NewSeeded(seed string) *Sampler {
	s := New()
	s.Seed(seed)
	return s
}

// SeedValue converts seed text to a source seed. Integer text seeds by its
// value; anything else seeds by a hash of the trimmed text. ok is false for
// blank input.
func SeedValue(seed string) (v int64, ok bool) {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(seed, 10, 64); err == nil {
		return i, true
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return int64(h.Sum64()), true
}

// Seed reseeds the source. Blank seeds are ignored and reported as false.
func (s *Sampler) Seed(seed string) bool {
	v, ok := SeedValue(seed)
	if !ok {
		return false
	}
	s.rng.Seed(v)
	logrus.WithField("seed", v).Debug("sampler reseeded")
	return true
}

// uniform draws from [b.Low, b.High] and rounds to precision.
func (s *Sampler) uniform(b ranges.Bounds, precision int) float64 {
	return cell.Round(b.Low+s.rng.Float64()*(b.High-b.Low), precision)
}

// SampleOne draws one cell of the given chemistry. Every attribute is drawn
// uniformly from its bounds after the bounds are rounded to precision, so the
// result always lies within the rounded bounds.
func (s *Sampler) SampleOne(r ranges.Config, chem cell.Chemistry, precision int) cell.Cell {
	c := cell.Cell{Type: chem}
	for _, a := range cell.Attributes {
		c.Set(a, s.uniform(r.Get(chem, a).Round(precision), precision))
	}
	return c
}

// SampleMany draws n cells, choosing each cell's chemistry uniformly from
// mix with replacement. It returns ErrNoChemistry and no cells when mix is
// empty.
func (s *Sampler) SampleMany(n int, r ranges.Config, mix []cell.Chemistry, precision int) ([]cell.Cell, error) {
	if len(mix) == 0 {
		return nil, ErrNoChemistry
	}
	rounded := r.Rounded(precision)
	out := make([]cell.Cell, 0, n)
	for i := 0; i < n; i++ {
		chem := mix[s.rng.Intn(len(mix))]
		out = append(out, s.SampleOne(rounded, chem, precision))
	}
	return out, nil
}

// SampleAny draws a single cell from mix, falling back to every known
// chemistry when mix is empty.
func (s *Sampler) SampleAny(r ranges.Config, mix []cell.Chemistry, precision int) cell.Cell {
	if len(mix) == 0 {
		mix = cell.Chemistries
	}
	return s.SampleOne(r, mix[s.rng.Intn(len(mix))], precision)
}
