package stats

import (
	"gonum.org/v1/gonum/stat"

	"github.com/charlie0129/cellsim/pkg/cell"
)

// Precision is the number of decimal places averages are rounded to.
const Precision = 3

// Summary holds the headline metrics of a set of cells.
type Summary struct {
	Cells           int     `json:"cells"`
	AvgNominalV     float64 `json:"avg_nominal_V"`
	AvgCapacitanceF float64 `json:"avg_capacitance_F"`
	AvgTempC        float64 `json:"avg_temp_C"`
}

// Compute summarizes cells. An empty input yields the zero Summary.
func Compute(cells []cell.Cell) Summary {
	if len(cells) == 0 {
		return Summary{}
	}
	return Summary{
		Cells:           len(cells),
		AvgNominalV:     mean(cells, cell.NominalVoltage),
		AvgCapacitanceF: mean(cells, cell.Capacitance),
		AvgTempC:        mean(cells, cell.Temperature),
	}
}

// ByType computes a Summary per chemistry. Chemistries without cells are
// present with a zero Summary.
func ByType(cells []cell.Cell) map[cell.Chemistry]Summary {
	grouped := make(map[cell.Chemistry][]cell.Cell, len(cell.Chemistries))
	for _, c := range cells {
		grouped[c.Type] = append(grouped[c.Type], c)
	}
	out := make(map[cell.Chemistry]Summary, len(cell.Chemistries))
	for _, chem := range cell.Chemistries {
		out[chem] = Compute(grouped[chem])
	}
	return out
}

func mean(cells []cell.Cell, a cell.Attribute) float64 {
	return cell.Round(stat.Mean(Column(cells, a), nil), Precision)
}

// Column extracts one attribute of every cell.
func Column(cells []cell.Cell, a cell.Attribute) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i] = c.Get(a)
	}
	return out
}
