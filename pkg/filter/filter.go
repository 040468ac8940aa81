// Package filter derives the visible subset of a store.
package filter

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/ranges"
	"github.com/charlie0129/cellsim/pkg/store"
)

// Criteria selects cells. All bounds are inclusive and all predicates must
// hold.
type Criteria struct {
	Types          []cell.Chemistry `json:"types"`
	Temperature    ranges.Bounds    `json:"temperature"`
	NominalVoltage ranges.Bounds    `json:"nominalVoltage"`
	Capacitance    ranges.Bounds    `json:"capacitance"`
}

// Control domains of the filter inputs.
var (
	TemperatureLimit    = ranges.Bounds{Low: -20, High: 120}
	NominalVoltageLimit = ranges.Bounds{Low: 3.0, High: 4.0}
	CapacitanceLimit    = ranges.Bounds{Low: 0, High: 200}
)

// Default returns criteria that show both chemistries between 20 and 60 °C
// over the full voltage and capacitance domains.
func Default() Criteria {
	return Criteria{
		Types:          []cell.Chemistry{cell.LFP, cell.NMC},
		Temperature:    ranges.Bounds{Low: 20, High: 60},
		NominalVoltage: NominalVoltageLimit,
		Capacitance:    CapacitanceLimit,
	}
}

// Validate checks the types and that every bound lies within its domain.
func (c Criteria) Validate() error {
	for _, t := range c.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", cell.ErrUnknownChemistry, string(t))
		}
	}
	if err := c.Temperature.Validate(TemperatureLimit); err != nil {
		return pkgerrors.Wrap(err, "temperature filter")
	}
	if err := c.NominalVoltage.Validate(NominalVoltageLimit); err != nil {
		return pkgerrors.Wrap(err, "nominal voltage filter")
	}
	if err := c.Capacitance.Validate(CapacitanceLimit); err != nil {
		return pkgerrors.Wrap(err, "capacitance filter")
	}
	return nil
}

// Match reports whether a single cell passes every predicate.
func (c Criteria) Match(x cell.Cell) bool {
	typeOK := false
	for _, t := range c.Types {
		if t == x.Type {
			typeOK = true
			break
		}
	}
	return typeOK &&
		c.Temperature.Contains(x.Temperature) &&
		c.NominalVoltage.Contains(x.NominalVoltage) &&
		c.Capacitance.Contains(x.Capacitance)
}

// Apply returns the matching cells of s in store order, each with its store
// index. It never returns nil.
func Apply(s *store.Store, c Criteria) []store.Row {
	return Rows(s.Rows(), c)
}

// Rows filters already indexed rows, keeping their order.
func Rows(rows []store.Row, c Criteria) []store.Row {
	out := make([]store.Row, 0, len(rows))
	for _, r := range rows {
		if c.Match(r.Cell) {
			out = append(out, r)
		}
	}
	return out
}

// Cells strips the indices from rows.
func Cells(rows []store.Row) []cell.Cell {
	out := make([]cell.Cell, len(rows))
	for i, r := range rows {
		out[i] = r.Cell
	}
	return out
}

// Indices returns the store indices of rows.
func Indices(rows []store.Row) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Index
	}
	return out
}
