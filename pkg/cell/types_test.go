package cell

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestUnmarshalJSON(t *testing.T) {
	var c Cell
	in := `{"type":"NMC","nominal_voltage":3.7,"min_voltage":3,"max_voltage":4.2,"capacitance_F":80,"current_A":5,"temperature_C":-2.5}`
	if err := json.Unmarshal([]byte(in), &c); err != nil {
		t.Fatal(err)
	}
	want := Cell{Type: NMC, NominalVoltage: 3.7, MinVoltage: 3, MaxVoltage: 4.2, Capacitance: 80, Current: 5, Temperature: -2.5}
	if c != want {
		t.Fatalf("Unmarshal() = %+v, want %+v", c, want)
	}
}

func TestUnmarshalJSONRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{
			name: "null value",
			in:   `{"type":"LFP","nominal_voltage":null,"min_voltage":1,"max_voltage":1,"capacitance_F":1,"current_A":1,"temperature_C":1}`,
			want: ErrMissingValue,
		},
		{
			name: "missing value",
			in:   `{"type":"LFP","nominal_voltage":1,"min_voltage":1,"max_voltage":1,"capacitance_F":1,"current_A":1}`,
			want: ErrMissingValue,
		},
		{
			name: "missing type",
			in:   `{"nominal_voltage":1,"min_voltage":1,"max_voltage":1,"capacitance_F":1,"current_A":1,"temperature_C":1}`,
			want: ErrUnknownChemistry,
		},
		{
			name: "unknown type",
			in:   `{"type":"LTO","nominal_voltage":1,"min_voltage":1,"max_voltage":1,"capacitance_F":1,"current_A":1,"temperature_C":1}`,
			want: ErrUnknownChemistry,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Cell{Type: NMC, Temperature: 42}
			err := json.Unmarshal([]byte(tt.in), &c)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Unmarshal() error = %v, want %v", err, tt.want)
			}
			if c.Type != NMC || c.Temperature != 42 {
				t.Fatalf("failed decode modified the cell: %+v", c)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	c := Cell{Type: LFP, NominalVoltage: 3.2}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	c.Capacitance = math.Inf(1)
	if err := c.Validate(); !errors.Is(err, ErrNotFinite) {
		t.Fatalf("Validate() error = %v, want ErrNotFinite", err)
	}
	if err := (Cell{Type: "LiPo"}).Validate(); !errors.Is(err, ErrUnknownChemistry) {
		t.Fatalf("Validate() error = %v, want ErrUnknownChemistry", err)
	}
}

func TestRound(t *testing.T) {
	tests := []struct {
		v         float64
		precision int
		want      float64
	}{
		{v: 3.14159, precision: 2, want: 3.14},
		{v: 2.5, precision: 0, want: 3},
		{v: -2.5, precision: 0, want: -3},
		{v: 0.125, precision: 2, want: 0.13},
		{v: 1e307, precision: 3, want: 1e307},
		{v: -1e307, precision: 4, want: -1e307},
	}
	for _, tt := range tests {
		got := Round(tt.v, tt.precision)
		if got != tt.want {
			t.Errorf("Round(%v, %d) = %v, want %v", tt.v, tt.precision, got, tt.want)
		}
	}

	// Rounded values stay encodable.
	if _, err := json.Marshal(Cell{Type: LFP, NominalVoltage: Round(1e307, 3)}); err != nil {
		t.Fatal(err)
	}
}
