package sampler

import (
	"errors"
	"reflect"
	"testing"

	"github.com/charlie0129/cellsim/pkg/cell"
	"github.com/charlie0129/cellsim/pkg/ranges"
)

func TestSeedValue(t *testing.T) {
	tests := []struct {
		name   string
		seed   string
		want   int64
		wantOK bool
	}{
		{name: "blank", seed: "   ", wantOK: false},
		{name: "integer", seed: "42", want: 42, wantOK: true},
		{name: "padded integer", seed: " 42 ", want: 42, wantOK: true},
		{name: "negative", seed: "-7", want: -7, wantOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SeedValue(tt.seed)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("SeedValue(%q) = %d, %t, want %d, %t", tt.seed, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	a, ok := SeedValue("battery")
	if !ok {
		t.Fatalf("text seed should be accepted")
	}
	b, _ := SeedValue("battery")
	c, _ := SeedValue("batteries")
	if a != b {
		t.Fatalf("text seed is not stable: %d != %d", a, b)
	}
	if a == c {
		t.Fatalf("different text seeds hashed to the same value")
	}
}

func TestSampleManyWithinBounds(t *testing.T) {
	r := ranges.Default()
	r.Set(cell.LFP, cell.Temperature, ranges.Bounds{Low: -20, High: 120})
	r.Set(cell.NMC, cell.Current, ranges.Bounds{Low: 5, High: 5})

	for precision := ranges.MinPrecision; precision <= ranges.MaxPrecision; precision++ {
		s := NewSeeded("7")
		cells, err := s.SampleMany(500, r, cell.Chemistries, precision)
		if err != nil {
			t.Fatalf("SampleMany() error = %v", err)
		}
		if len(cells) != 500 {
			t.Fatalf("SampleMany() returned %d cells, want 500", len(cells))
		}
		rounded := r.Rounded(precision)
		for _, c := range cells {
			if err := c.Validate(); err != nil {
				t.Fatalf("invalid cell %+v: %v", c, err)
			}
			for _, a := range cell.Attributes {
				b := rounded.Get(c.Type, a)
				if v := c.Get(a); !b.Contains(v) {
					t.Fatalf("precision %d: %s %s = %v outside %v", precision, c.Type, a, v, b)
				}
				if v := c.Get(a); cell.Round(v, precision) != v {
					t.Fatalf("precision %d: %s = %v not rounded", precision, a, v)
				}
			}
		}
	}
}

func TestSampleManyReproducible(t *testing.T) {
	r := ranges.Default()
	for _, seed := range []string{"42", "not-a-number"} {
		a, err := NewSeeded(seed).SampleMany(50, r, cell.Chemistries, 2)
		if err != nil {
			t.Fatal(err)
		}
		b, err := NewSeeded(seed).SampleMany(50, r, cell.Chemistries, 2)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("seed %q produced different sequences", seed)
		}
	}
}

func TestSeedOncePerAction(t *testing.T) {
	r := ranges.Default()
	s := NewSeeded("42")
	first, _ := s.SampleMany(5, r, cell.Chemistries, 2)
	second, _ := s.SampleMany(5, r, cell.Chemistries, 2)
	if reflect.DeepEqual(first, second) {
		t.Fatalf("consecutive calls without reseeding should continue the sequence")
	}

	s.Seed("42")
	again, _ := s.SampleMany(5, r, cell.Chemistries, 2)
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("reseeding with the same seed should restart the sequence")
	}

	if s.Seed("") {
		t.Fatalf("blank seed should not reseed")
	}
}

func TestSampleManyEmptyMix(t *testing.T) {
	cells, err := New().SampleMany(5, ranges.Default(), nil, 2)
	if !errors.Is(err, ErrNoChemistry) {
		t.Fatalf("SampleMany() error = %v, want ErrNoChemistry", err)
	}
	if len(cells) != 0 {
		t.Fatalf("SampleMany() returned %d cells on error", len(cells))
	}
}

func TestSampleManySingleChemistry(t *testing.T) {
	r := ranges.Default()
	cells, err := NewSeeded("42").SampleMany(5, r, []cell.Chemistry{cell.LFP}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(cells) != 5 {
		t.Fatalf("got %d cells, want 5", len(cells))
	}
	for _, c := range cells {
		if c.Type != cell.LFP {
			t.Fatalf("got type %s, want LFP", c.Type)
		}
		for _, a := range cell.Attributes {
			if b := r.Get(cell.LFP, a); !b.Contains(c.Get(a)) {
				t.Fatalf("%s = %v outside LFP bounds %v", a, c.Get(a), b)
			}
		}
	}
}

func TestSampleAnyFallsBack(t *testing.T) {
	s := NewSeeded("1")
	seen := map[cell.Chemistry]bool{}
	for i := 0; i < 100; i++ {
		seen[s.SampleAny(ranges.Default(), nil, 2).Type] = true
	}
	if !seen[cell.LFP] || !seen[cell.NMC] {
		t.Fatalf("SampleAny() with empty mix should draw both chemistries, saw %v", seen)
	}
}
