package session

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/filter"
	"github.com/charlie0129/cellsim/pkg/ranges"
)

const (
	// MinCount is the smallest generate count.
	MinCount = 1
	// MaxCount is the largest generate count.
	MaxCount = 10000
	// DefaultCount is the generate count of a new session.
	DefaultCount = 10
)

// Controls is everything the user can set in the sidebar and filter row.
type Controls struct {
	Seed      string           `json:"seed"`
	Count     int              `json:"count"`
	Mix       []cell.Chemistry `json:"mix"`
	Precision int              `json:"precision"`
	Ranges    ranges.Config    `json:"ranges"`
	Filter    filter.Criteria  `json:"filter"`
}

// DefaultControls returns the controls of a fresh session.
func DefaultControls() Controls {
	return Controls{
		Count:     DefaultCount,
		Mix:       []cell.Chemistry{cell.LFP, cell.NMC},
		Precision: ranges.DefaultPrecision,
		Ranges:    ranges.Default(),
		Filter:    filter.Default(),
	}
}

// Validate checks every control. maxCount caps Count; values outside
// [MinCount, MaxCount] are ignored.
func (c Controls) Validate(maxCount int) error {
	if maxCount < MinCount || maxCount > MaxCount {
		maxCount = MaxCount
	}
	if c.Count < MinCount || c.Count > maxCount {
		return fmt.Errorf("%w: count must be between %d and %d, got %d", ErrInvalidControls, MinCount, maxCount, c.Count)
	}
	for _, chem := range c.Mix {
		if !chem.Valid() {
			return fmt.Errorf("%w: mix: %w: %q", ErrInvalidControls, cell.ErrUnknownChemistry, string(chem))
		}
	}
	if err := ranges.ValidatePrecision(c.Precision); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidControls, err)
	}
	if err := c.Ranges.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidControls, pkgerrors.Wrap(err, "ranges"))
	}
	if err := c.Filter.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidControls, err)
	}
	return nil
}

// Clone deep-copies c.
func (c Controls) Clone() Controls {
	out := c
	out.Mix = append([]cell.Chemistry(nil), c.Mix...)
	out.Ranges = c.Ranges.Clone()
	out.Filter.Types = append([]cell.Chemistry(nil), c.Filter.Types...)
	return out
}
