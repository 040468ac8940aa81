package chart

import (
	"fmt"
	"io"
	"math"

	pkgerrors "github.com/pkg/errors"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/charlie0129/cellsim/pkg/cell"
)

// Format is an image format.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat converts a format name to a Format. Blank means PNG.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", PNG:
		return PNG, nil
	case SVG:
		return SVG, nil
	}
	return "", fmt.Errorf("unknown image format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() gochart.RendererProvider {
	if f == SVG {
		return gochart.SVG
	}
	return gochart.PNG
}

// Options controls the rendered image.
type Options struct {
	Width  int
	Height int
	Format Format
}

const (
	defaultWidth  = 640
	defaultHeight = 400
)

func (o Options) size() (int, int) {
	w, h := o.Width, o.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// Colors used for each chemistry.
var Colors = map[cell.Chemistry]drawing.Color{
	cell.LFP: {R: 31, G: 119, B: 180, A: 255},
	cell.NMC: {R: 255, G: 127, B: 14, A: 255},
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) gochart.Style {
	return gochart.Style{
		StrokeWidth: gochart.Disabled,
		DotWidth:    5,
		DotColor:    col.WithAlpha(180),
	}
}

// padded returns a range around [lo, hi] that is never empty.
func padded(lo, hi float64) *gochart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.01, 0.01)
	}
	return &gochart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}

// RenderScatter draws nominal voltage against max voltage, colored by type.
func RenderScatter(w io.Writer, cells []cell.Cell, opts Options) error {
	data, err := NewScatter(cells)
	if err != nil {
		return err
	}

	var series []gochart.Series
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, chem := range cell.Chemistries {
		xy, ok := data.Series[chem]
		if !ok {
			continue
		}
		for i := range xy.X {
			minX, maxX = math.Min(minX, xy.X[i]), math.Max(maxX, xy.X[i])
			minY, maxY = math.Min(minY, xy.Y[i]), math.Max(maxY, xy.Y[i])
		}
		series = append(series, gochart.ContinuousSeries{
			Name:    string(chem),
			XValues: xy.X,
			YValues: xy.Y,
			Style:   pointStyle(Colors[chem]),
		})
	}

	width, height := opts.size()
	ch := gochart.Chart{
		Title:      "Nominal vs Max Voltage (by type)",
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      gochart.XAxis{Name: string(cell.NominalVoltage), Range: padded(minX, maxX)},
		YAxis:      gochart.YAxis{Name: string(cell.MaxVoltage), Range: padded(minY, maxY)},
		Series:     series,
	}
	ch.Elements = []gochart.Renderable{gochart.Legend(&ch)}

	if err := ch.Render(opts.Format.provider(), w); err != nil {
		return pkgerrors.Wrap(err, "failed to render scatter chart")
	}
	return nil
}

// RenderTemperature draws the temperature histogram with one bar per type in
// each bin. Only the first bar of a bin is labeled with the bin's lower edge.
func RenderTemperature(w io.Writer, cells []cell.Cell, opts Options) error {
	h, err := NewTemperatureHistogram(cells, MaxBins)
	if err != nil {
		return err
	}

	var bars []gochart.Value
	for bin := 0; bin < h.Bins(); bin++ {
		label := fmt.Sprintf("%.1f", h.Edges[bin])
		for _, chem := range cell.Chemistries {
			counts, ok := h.Counts[chem]
			if !ok {
				continue
			}
			col := Colors[chem]
			bars = append(bars, gochart.Value{
				Label: label,
				Value: counts[bin],
				Style: gochart.Style{FillColor: col.WithAlpha(204), StrokeColor: col, StrokeWidth: 1},
			})
			label = ""
		}
	}

	width, height := opts.size()
	bc := gochart.BarChart{
		Title:      "Temperature Distribution",
		Width:      width,
		Height:     height,
		BarWidth:   12,
		BarSpacing: 2,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		YAxis: gochart.YAxis{
			Name:  "count",
			Range: &gochart.ContinuousRange{Min: 0, Max: math.Max(h.Max(), 1)},
		},
		Bars: bars,
	}

	if err := bc.Render(opts.Format.provider(), w); err != nil {
		return pkgerrors.Wrap(err, "failed to render temperature histogram")
	}
	return nil
}
