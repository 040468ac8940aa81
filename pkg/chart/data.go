// Package chart binds cells to the two dashboard charts and renders them as
// PNG or SVG images.
package chart

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/stats"
)

// MaxBins caps the number of temperature histogram bins.
const MaxBins = 20

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no data to visualize, generate cells or adjust filters")

// XY is a pair of parallel coordinate slices.
type XY struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Scatter holds nominal voltage (X) against max voltage (Y) per chemistry.
type Scatter struct {
	Series map[cell.Chemistry]XY `json:"series"`
}

// NewScatter groups cells by chemistry. Chemistries without cells are left
// out.
func NewScatter(cells []cell.Cell) (Scatter, error) {
	if len(cells) == 0 {
		return Scatter{}, ErrNoData
	}
	s := Scatter{Series: make(map[cell.Chemistry]XY, len(cell.Chemistries))}
	for _, c := range cells {
		xy := s.Series[c.Type]
		xy.X = append(xy.X, c.NominalVoltage)
		xy.Y = append(xy.Y, c.MaxVoltage)
		s.Series[c.Type] = xy
	}
	return s, nil
}

// Histogram holds temperature counts per chemistry over shared bins. Bin i
// covers [Edges[i], Edges[i+1]).
type Histogram struct {
	Edges  []float64                    `json:"edges"`
	Counts map[cell.Chemistry][]float64 `json:"counts"`
}

// Bins returns the number of bins.
func (h Histogram) Bins() int {
	return len(h.Edges) - 1
}

// Max returns the largest single count.
func (h Histogram) Max() float64 {
	m := 0.0
	for _, counts := range h.Counts {
		if len(counts) > 0 {
			m = math.Max(m, floats.Max(counts))
		}
	}
	return m
}

// NewTemperatureHistogram bins cell temperatures into at most maxBins equal
// width bins spanning the observed values.
func NewTemperatureHistogram(cells []cell.Cell, maxBins int) (Histogram, error) {
	if len(cells) == 0 {
		return Histogram{}, ErrNoData
	}
	if maxBins < 1 || maxBins > MaxBins {
		maxBins = MaxBins
	}

	temps := stats.Column(cells, cell.Temperature)
	lo, hi := floats.Min(temps), floats.Max(temps)

	bins := maxBins
	if len(cells) < bins {
		bins = len(cells)
	}
	if lo == hi {
		bins = 1
	}

	edges := make([]float64, bins+1)
	if bins == 1 {
		edges[0], edges[1] = lo, hi
	} else {
		floats.Span(edges, lo, hi)
	}
	// The last bin is closed on the right.
	edges[0] = lo
	edges[bins] = math.Nextafter(hi, math.Inf(1))

	byType := make(map[cell.Chemistry][]float64, len(cell.Chemistries))
	for _, c := range cells {
		byType[c.Type] = append(byType[c.Type], c.Temperature)
	}

	h := Histogram{Edges: edges, Counts: make(map[cell.Chemistry][]float64, len(byType))}
	for chem, xs := range byType {
		sort.Float64s(xs)
		h.Counts[chem] = stat.Histogram(nil, edges, xs, nil)
	}
	return h, nil
}
