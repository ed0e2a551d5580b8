// Package angleplot renders viewing-angle grids as PNG heatmaps for
// visual inspection of an ingested granule.
package angleplot

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/rtchokonte/awsdownload/internal/monitoring"
)

// GridImage is one band's angle matrix to render.
type GridImage struct {
	Band   int
	Values [][]float64
}

// gridXYZ adapts a row-major angle matrix to the plotter.GridXYZ
// interface. Row 0 of the metadata is the top of the granule, so the Y
// coordinate is flipped to keep the rendered orientation matching the
// imagery.
type gridXYZ struct {
	values [][]float64
}

func (g gridXYZ) Dims() (c, r int) {
	if len(g.values) == 0 {
		return 0, 0
	}
	return len(g.values[0]), len(g.values)
}

func (g gridXYZ) Z(c, r int) float64 {
	return g.values[len(g.values)-1-r][c]
}

func (g gridXYZ) X(c int) float64 { return float64(c) }
func (g gridXYZ) Y(r int) float64 { return float64(r) }

// RenderHeatmaps writes one PNG heatmap per grid into outputDir, named
// after the axis and band ID, and returns the written paths.
func RenderHeatmaps(outputDir, axis string, grids []GridImage) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create plot output dir: %w", err)
	}

	var paths []string
	for _, g := range grids {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Viewing incidence %s, band %d", axis, g.Band)
		p.X.Label.Text = "column (5km steps)"
		p.Y.Label.Text = "row (5km steps)"

		hm := plotter.NewHeatMap(gridXYZ{values: g.Values}, palette.Heat(12, 1))
		if hm.Min == hm.Max {
			// A constant grid has no colour range; widen it so the
			// renderer has something to map.
			hm.Max = hm.Min + 1
		}
		p.Add(hm)

		file := filepath.Join(outputDir, fmt.Sprintf("%s_band%02d.png", axis, g.Band))
		if err := p.Save(6*vg.Inch, 6*vg.Inch, file); err != nil {
			return nil, fmt.Errorf("save heatmap for band %d: %w", g.Band, err)
		}
		monitoring.Logf("wrote %s", file)
		paths = append(paths, file)
	}
	return paths, nil
}
