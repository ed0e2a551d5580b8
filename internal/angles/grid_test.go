package angles

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// rowText renders values as the space-separated token row format used by
// the metadata VALUES elements.
func rowText(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, " ")
}

func TestSetRowRoundTrip(t *testing.T) {
	g := NewAngleGrid(GridDimension)

	want := make([][]float64, GridDimension)
	for r := 0; r < GridDimension; r++ {
		row := make([]float64, GridDimension)
		for c := 0; c < GridDimension; c++ {
			// Mix of negatives and decimals to exercise token parsing.
			row[c] = float64(r-11) + float64(c)*0.125
		}
		want[r] = row
		if err := g.SetRow(r, rowText(row)); err != nil {
			t.Fatalf("SetRow(%d): %v", r, err)
		}
	}

	if !g.Complete() {
		t.Fatal("grid not complete after setting all rows")
	}

	got, err := g.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grid values mismatch (-want +got):\n%s", diff)
	}
}

func TestSetRowWrongTokenCount(t *testing.T) {
	g := NewAngleGrid(GridDimension)

	short := rowText(make([]float64, GridDimension-1))
	err := g.SetRow(0, short)
	if !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("SetRow with %d tokens: got %v, want ErrMalformedRow", GridDimension-1, err)
	}
	if g.Complete() {
		t.Error("grid reported complete after rejected row")
	}
}

func TestSetRowNonNumericToken(t *testing.T) {
	g := NewAngleGrid(3)

	err := g.SetRow(1, "1.0 bogus 3.0")
	if !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("SetRow with non-numeric token: got %v, want ErrMalformedRow", err)
	}

	if err := g.SetRow(1, "1.0 2.0 3.0"); err != nil {
		t.Fatalf("SetRow after rejected row: %v", err)
	}
}

func TestSetRowIndexOutOfRange(t *testing.T) {
	g := NewAngleGrid(3)
	if err := g.SetRow(3, "1 2 3"); !errors.Is(err, ErrMalformedRow) {
		t.Fatalf("SetRow out of range: got %v, want ErrMalformedRow", err)
	}
}

func TestSetRowOverwriteIsSilent(t *testing.T) {
	g := NewAngleGrid(2)
	if err := g.SetRow(0, "1 2"); err != nil {
		t.Fatal(err)
	}
	if err := g.SetRow(0, "3 4"); err != nil {
		t.Fatalf("overwriting a set row: %v", err)
	}
	if err := g.SetRow(1, "5 6"); err != nil {
		t.Fatal(err)
	}

	got, err := g.Values()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{3, 4}, {5, 6}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("grid after overwrite (-want +got):\n%s", diff)
	}
}

func TestValuesRequiresComplete(t *testing.T) {
	g := NewAngleGrid(2)
	if err := g.SetRow(0, "1 2"); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Values(); !errors.Is(err, ErrIncompleteGrid) {
		t.Fatalf("Values on partial grid: got %v, want ErrIncompleteGrid", err)
	}
	if _, _, err := g.Stats(); !errors.Is(err, ErrIncompleteGrid) {
		t.Fatalf("Stats on partial grid: got %v, want ErrIncompleteGrid", err)
	}
}

func TestStats(t *testing.T) {
	g := NewAngleGrid(2)
	if err := g.SetRow(0, "1 1"); err != nil {
		t.Fatal(err)
	}
	if err := g.SetRow(1, "3 3"); err != nil {
		t.Fatal(err)
	}

	mean, stddev, err := g.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if mean != 2 {
		t.Errorf("mean = %v, want 2", mean)
	}
	if stddev <= 0 {
		t.Errorf("stddev = %v, want > 0", stddev)
	}
}
