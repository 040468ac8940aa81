package server

import (
	"html/template"
	"math"
	"slices"
	"strconv"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/ranges"
)

var templateFuncs = template.FuncMap{
	"step":  step,
	"bound": bound,
	"has":   has,
}

// step returns the input step matching precision decimal places.
func step(precision int) string {
	return strconv.FormatFloat(math.Pow10(-precision), 'f', -1, 64)
}

func bound(c ranges.Config, chem cell.Chemistry, a cell.Attribute) ranges.Bounds {
	return c.Get(chem, a)
}

func has(list []cell.Chemistry, c cell.Chemistry) bool {
	return slices.Contains(list, c)
}
