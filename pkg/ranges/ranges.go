// Package ranges holds the per-chemistry, per-attribute bounds that cells are
// sampled from.
package ranges

import (
	"fmt"
	"math"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
)

const (
	MinPrecision     = 0
	MaxPrecision     = 4
	DefaultPrecision = 2
)

// Bounds is an inclusive (low, high) pair.
type Bounds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether low <= v <= high.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Round rounds both ends to precision decimal places.
func (b Bounds) Round(precision int) Bounds {
	return Bounds{
		Low:  cell.Round(b.Low, precision),
		High: cell.Round(b.High, precision),
	}
}

// Validate checks that both ends are finite, low <= high, and the pair lies
// within limit.
func (b Bounds) Validate(limit Bounds) error {
	if math.IsNaN(b.Low) || math.IsInf(b.Low, 0) || math.IsNaN(b.High) || math.IsInf(b.High, 0) {
		return ErrNotFinite
	}
	if b.Low > b.High {
		return pkgerrors.Wrapf(ErrInverted, "low %g > high %g", b.Low, b.High)
	}
	if b.Low < limit.Low || b.High > limit.High {
		return pkgerrors.Wrapf(ErrOutOfLimits, "[%g, %g] not within [%g, %g]", b.Low, b.High, limit.Low, limit.High)
	}
	return nil
}

// Table maps each attribute to its bounds for one chemistry.
type Table map[cell.Attribute]Bounds

// Config maps each chemistry to its bound table. Missing entries fall back to
// the defaults.
type Config map[cell.Chemistry]Table

var defaultConfig = Config{
	cell.LFP: {
		cell.NominalVoltage: {3.20, 3.35},
		cell.MinVoltage:     {2.50, 2.90},
		cell.MaxVoltage:     {3.55, 3.65},
		cell.Capacitance:    {10.0, 100.0},
		cell.Current:        {1.0, 10.0},
		cell.Temperature:    {20.0, 60.0},
	},
	cell.NMC: {
		cell.NominalVoltage: {3.60, 3.75},
		cell.MinVoltage:     {3.00, 3.20},
		cell.MaxVoltage:     {4.15, 4.30},
		cell.Capacitance:    {10.0, 100.0},
		cell.Current:        {1.0, 10.0},
		cell.Temperature:    {20.0, 60.0},
	},
}

// limits are the domains of the range controls.
var limits = Config{
	cell.LFP: {
		cell.NominalVoltage: {3.0, 3.6},
		cell.MinVoltage:     {2.0, 3.2},
		cell.MaxVoltage:     {3.3, 3.9},
		cell.Capacitance:    {1.0, 200.0},
		cell.Current:        {0.1, 100.0},
		cell.Temperature:    {-20.0, 120.0},
	},
	cell.NMC: {
		cell.NominalVoltage: {3.2, 4.0},
		cell.MinVoltage:     {2.8, 3.5},
		cell.MaxVoltage:     {3.8, 4.4},
		cell.Capacitance:    {1.0, 200.0},
		cell.Current:        {0.1, 100.0},
		cell.Temperature:    {-20.0, 120.0},
	},
}

// Default returns a fresh copy of the default bounds.
func Default() Config {
	return defaultConfig.Clone()
}

// Limits returns a copy of the allowed domain of every bound.
func Limits() Config {
	return limits.Clone()
}

// Clone deep-copies c.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for chem, t := range c {
		nt := make(Table, len(t))
		for a, b := range t {
			nt[a] = b
		}
		out[chem] = nt
	}
	return out
}

// Get returns the bounds for one chemistry and attribute, falling back to the
// default when unset.
func (c Config) Get(chem cell.Chemistry, a cell.Attribute) Bounds {
	if t, ok := c[chem]; ok {
		if b, ok := t[a]; ok {
			return b
		}
	}
	return defaultConfig[chem][a]
}

// Set assigns the bounds for one chemistry and attribute.
func (c Config) Set(chem cell.Chemistry, a cell.Attribute, b Bounds) {
	t, ok := c[chem]
	if !ok {
		t = make(Table, len(cell.Attributes))
		c[chem] = t
	}
	t[a] = b
}

// Rounded returns a fully populated copy of c with every bound rounded to
// precision decimal places.
func (c Config) Rounded(precision int) Config {
	out := make(Config, len(cell.Chemistries))
	for _, chem := range cell.Chemistries {
		for _, a := range cell.Attributes {
			out.Set(chem, a, c.Get(chem, a).Round(precision))
		}
	}
	return out
}

// Validate checks every configured bound against its control domain.
func (c Config) Validate() error {
	for chem, t := range c {
		if !chem.Valid() {
			return fmt.Errorf("%w: %q", cell.ErrUnknownChemistry, string(chem))
		}
		for a, b := range t {
			limit, ok := limits[chem][a]
			if !ok {
				return fmt.Errorf("%w: %q", ErrUnknownAttribute, string(a))
			}
			if err := b.Validate(limit); err != nil {
				return pkgerrors.Wrapf(err, "%s %s", chem, a)
			}
		}
	}
	return nil
}

// ValidatePrecision checks that p is within [MinPrecision, MaxPrecision].
func ValidatePrecision(p int) error {
	if p < MinPrecision || p > MaxPrecision {
		return fmt.Errorf("%w: %d", ErrPrecision, p)
	}
	return nil
}
