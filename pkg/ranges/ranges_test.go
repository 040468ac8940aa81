package ranges

import (
	"errors"
	"math"
	"testing"

	"github.com/charlie0129/cellsim/pkg/cell"
)

func TestBoundsValidate(t *testing.T) {
	limit := Bounds{Low: 0, High: 10}
	tests := []struct {
		name string
		b    Bounds
		want error
	}{
		{name: "ok", b: Bounds{Low: 1, High: 2}},
		{name: "equal ends", b: Bounds{Low: 3, High: 3}},
		{name: "inverted", b: Bounds{Low: 5, High: 4}, want: ErrInverted},
		{name: "below limit", b: Bounds{Low: -1, High: 4}, want: ErrOutOfLimits},
		{name: "above limit", b: Bounds{Low: 1, High: 11}, want: ErrOutOfLimits},
		{name: "nan", b: Bounds{Low: math.NaN(), High: 4}, want: ErrNotFinite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate(limit)
			if tt.want == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestGetFallsBackToDefault(t *testing.T) {
	c := Config{}
	got := c.Get(cell.NMC, cell.MaxVoltage)
	want := Bounds{Low: 4.15, High: 4.30}
	if got != want {
		t.Fatalf("Get() = %v, want %v", got, want)
	}
}

func TestRounded(t *testing.T) {
	c := Config{}
	c.Set(cell.LFP, cell.Capacitance, Bounds{Low: 12.3456, High: 98.7654})

	r := c.Rounded(1)
	if got := r.Get(cell.LFP, cell.Capacitance); got != (Bounds{Low: 12.3, High: 98.8}) {
		t.Fatalf("Rounded(1) = %v", got)
	}
	for _, chem := range cell.Chemistries {
		if len(r[chem]) != len(cell.Attributes) {
			t.Fatalf("Rounded() table for %s has %d entries, want %d", chem, len(r[chem]), len(cell.Attributes))
		}
	}
	// The source must not be touched.
	if got := c.Get(cell.LFP, cell.Capacitance).Low; got != 12.3456 {
		t.Fatalf("Rounded() mutated receiver: %v", got)
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	c := Config{"LTO": {cell.Current: {Low: 1, High: 2}}}
	if err := c.Validate(); !errors.Is(err, cell.ErrUnknownChemistry) {
		t.Fatalf("Validate() = %v, want ErrUnknownChemistry", err)
	}

	c = Config{cell.LFP: {"resistance": {Low: 1, High: 2}}}
	if err := c.Validate(); !errors.Is(err, ErrUnknownAttribute) {
		t.Fatalf("Validate() = %v, want ErrUnknownAttribute", err)
	}
}

func TestValidatePrecision(t *testing.T) {
	for p := -1; p <= 5; p++ {
		err := ValidatePrecision(p)
		if ok := p >= 0 && p <= 4; ok != (err == nil) {
			t.Errorf("ValidatePrecision(%d) = %v", p, err)
		}
	}
}
