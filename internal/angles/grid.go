package angles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// GridDimension is the row/column count of a viewing-angle grid in the
// Sentinel-2 granule metadata (23 samples at 5km spacing across a granule).
const GridDimension = 23

// ErrMalformedRow is returned by SetRow when a row's text content does not
// hold exactly one parseable floating-point token per column.
var ErrMalformedRow = errors.New("malformed grid row")

// ErrIncompleteGrid is returned when a grid is read back before every row
// has been set.
var ErrIncompleteGrid = errors.New("incomplete angle grid")

// AngleGrid is a square matrix of viewing-angle values for one
// detector/band pair. Rows are filled independently from the whitespace
// separated text rows of the metadata document; the grid is complete only
// once every row index has been set.
type AngleGrid struct {
	dim  int
	rows [][]float64 // nil entry = row not yet set
}

// NewAngleGrid returns an empty dim x dim grid.
func NewAngleGrid(dim int) *AngleGrid {
	return &AngleGrid{
		dim:  dim,
		rows: make([][]float64, dim),
	}
}

// Dim returns the grid dimension.
func (g *AngleGrid) Dim() int {
	return g.dim
}

// SetRow parses raw as whitespace-separated floating-point tokens and
// stores them at row index. The token count must equal the grid dimension.
// Setting a row that was already set silently overwrites it; the metadata
// format never legitimately repeats a row, but a repeat must not corrupt
// neighbouring rows.
func (g *AngleGrid) SetRow(index int, raw string) error {
	if index < 0 || index >= g.dim {
		return fmt.Errorf("%w: row index %d out of range [0,%d)", ErrMalformedRow, index, g.dim)
	}

	tokens := strings.Fields(raw)
	if len(tokens) != g.dim {
		return fmt.Errorf("%w: row %d has %d values, want %d", ErrMalformedRow, index, len(tokens), g.dim)
	}

	values := make([]float64, g.dim)
	for i, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return fmt.Errorf("%w: row %d value %d %q: %v", ErrMalformedRow, index, i, tok, err)
		}
		values[i] = v
	}

	g.rows[index] = values
	return nil
}

// Complete reports whether every row of the grid has been set.
func (g *AngleGrid) Complete() bool {
	for _, row := range g.rows {
		if row == nil {
			return false
		}
	}
	return true
}

// Values returns the grid matrix. The grid must be complete; partial reads
// are not exposed because a partially filled grid has no meaningful
// georeferencing interpretation.
func (g *AngleGrid) Values() ([][]float64, error) {
	if !g.Complete() {
		return nil, ErrIncompleteGrid
	}
	out := make([][]float64, g.dim)
	for i, row := range g.rows {
		out[i] = make([]float64, g.dim)
		copy(out[i], row)
	}
	return out, nil
}

// Stats returns the mean and standard deviation over all cells of a
// complete grid.
func (g *AngleGrid) Stats() (mean, stddev float64, err error) {
	if !g.Complete() {
		return 0, 0, ErrIncompleteGrid
	}
	flat := make([]float64, 0, g.dim*g.dim)
	for _, row := range g.rows {
		flat = append(flat, row...)
	}
	mean, std := stat.MeanStdDev(flat, nil)
	return mean, std, nil
}
