package cell

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Chemistry is the cell chemistry of a record.
type Chemistry string

const (
	// LFP is lithium iron phosphate.
	LFP Chemistry = "LFP"
	// NMC is lithium nickel manganese cobalt oxide.
	NMC Chemistry = "NMC"
)

// Chemistries lists every known chemistry in display order.
var Chemistries = []Chemistry{LFP, NMC}

var (
	// ErrUnknownChemistry is returned when a type is neither LFP nor NMC.
	ErrUnknownChemistry = errors.New("unknown cell type")
	// ErrNotFinite is returned when a numeric attribute is NaN or infinite.
	ErrNotFinite = errors.New("value is not a finite number")
	// ErrMissingValue is returned when a numeric attribute is absent or null.
	ErrMissingValue = errors.New("value is missing")
)

// Valid reports whether c is one of the known chemistries.
func (c Chemistry) Valid() bool {
	return c == LFP || c == NMC
}

// ParseChemistry converts a type name to a Chemistry.
func ParseChemistry(s string) (Chemistry, error) {
	c := Chemistry(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownChemistry, s)
	}
	return c, nil
}

func (c *Chemistry) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseChemistry(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Attribute names a numeric attribute of a Cell. The string value doubles as
// the JSON key and CSV column name.
type Attribute string

const (
	NominalVoltage Attribute = "nominal_voltage"
	MinVoltage     Attribute = "min_voltage"
	MaxVoltage     Attribute = "max_voltage"
	Capacitance    Attribute = "capacitance_F"
	Current        Attribute = "current_A"
	Temperature    Attribute = "temperature_C"
)

// Attributes is the canonical order of the numeric attributes.
var Attributes = []Attribute{
	NominalVoltage,
	MinVoltage,
	MaxVoltage,
	Capacitance,
	Current,
	Temperature,
}

// TypeColumn is the column/key holding the chemistry.
const TypeColumn = "type"

// Columns is the fixed column order used by exports.
var Columns = []string{
	TypeColumn,
	string(NominalVoltage),
	string(MinVoltage),
	string(MaxVoltage),
	string(Capacitance),
	string(Current),
	string(Temperature),
}

// Cell is one synthetic battery cell. Cells carry no identity; they are
// addressed by their position in a store.
type Cell struct {
	Type           Chemistry `json:"type"`
	NominalVoltage float64   `json:"nominal_voltage"`
	MinVoltage     float64   `json:"min_voltage"`
	MaxVoltage     float64   `json:"max_voltage"`
	Capacitance    float64   `json:"capacitance_F"`
	Current        float64   `json:"current_A"`
	Temperature    float64   `json:"temperature_C"`
}

// UnmarshalJSON decodes a cell object. Every attribute must be present and
// non-null.
func (c *Cell) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type           Chemistry `json:"type"`
		NominalVoltage *float64  `json:"nominal_voltage"`
		MinVoltage     *float64  `json:"min_voltage"`
		MaxVoltage     *float64  `json:"max_voltage"`
		Capacitance    *float64  `json:"capacitance_F"`
		Current        *float64  `json:"current_A"`
		Temperature    *float64  `json:"temperature_C"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if !raw.Type.Valid() {
		return fmt.Errorf("%s: %w: %q", TypeColumn, ErrUnknownChemistry, string(raw.Type))
	}

	values := map[Attribute]*float64{
		NominalVoltage: raw.NominalVoltage,
		MinVoltage:     raw.MinVoltage,
		MaxVoltage:     raw.MaxVoltage,
		Capacitance:    raw.Capacitance,
		Current:        raw.Current,
		Temperature:    raw.Temperature,
	}
	out := Cell{Type: raw.Type}
	for _, a := range Attributes {
		v := values[a]
		if v == nil {
			return fmt.Errorf("%s: %w", a, ErrMissingValue)
		}
		out.Set(a, *v)
	}
	*c = out
	return nil
}

// Get returns the value of a numeric attribute.
func (c Cell) Get(a Attribute) float64 {
	switch a {
	case NominalVoltage:
		return c.NominalVoltage
	case MinVoltage:
		return c.MinVoltage
	case MaxVoltage:
		return c.MaxVoltage
	case Capacitance:
		return c.Capacitance
	case Current:
		return c.Current
	case Temperature:
		return c.Temperature
	}
	panic(fmt.Sprintf("unknown attribute %q", a))
}

// Set assigns the value of a numeric attribute.
func (c *Cell) Set(a Attribute, v float64) {
	switch a {
	case NominalVoltage:
		c.NominalVoltage = v
	case MinVoltage:
		c.MinVoltage = v
	case MaxVoltage:
		c.MaxVoltage = v
	case Capacitance:
		c.Capacitance = v
	case Current:
		c.Current = v
	case Temperature:
		c.Temperature = v
	default:
		panic(fmt.Sprintf("unknown attribute %q", a))
	}
}

// Validate checks that the type is known and every attribute is finite.
func (c Cell) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownChemistry, string(c.Type))
	}
	for _, a := range Attributes {
		v := c.Get(a)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", a, ErrNotFinite)
		}
	}
	return nil
}

// Round rounds v half away from zero to the given number of decimal places.
// Values too large to scale are returned unchanged.
func Round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	scaled := v * p
	if math.IsInf(scaled, 0) {
		return v
	}
	return math.Round(scaled) / p
}
