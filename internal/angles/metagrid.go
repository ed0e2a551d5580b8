package angles

import (
	"errors"
	"fmt"
)

// detectorBandOrder is the canonical output ordering of band IDs. It is the
// physical detector readout order of the MSI instrument and deliberately
// does not follow the numeric band IDs.
var detectorBandOrder = [...]int{1, 7, 2, 3, 4, 5, 6, 12, 0, 8, 9, 10, 11}

// BandOrder returns a copy of the canonical band ordering table.
func BandOrder() []int {
	out := make([]int, len(detectorBandOrder))
	copy(out, detectorBandOrder[:])
	return out
}

// ErrIncompleteBand is returned by AssembleOrdered when a band in the
// ordering table has no registered grid for any detector.
var ErrIncompleteBand = errors.New("band has no registered grid")

// GridKey identifies one registered grid. A band's full-width grid may be
// covered by more than one detector (edge-of-swath overlap), so the
// detector ID is part of the key and registrations never overwrite each
// other at this layer.
type GridKey struct {
	Detector int
	Band     int
}

// MeanBandAngle holds the scalar zenith/azimuth summary angles for one
// band, independent of the per-detector grids.
type MeanBandAngle struct {
	BandID  int
	Zenith  float64
	Azimuth float64
}

// MetaGrid is the keyed store of angle grids for one axis (zenith or
// azimuth) of one granule, together with the canonical band ordering used
// to assemble output. It also carries the per-band mean angles; the
// metadata attaches those to the zenith instance only (see the package
// documentation on behavioural compatibility).
type MetaGrid struct {
	bandOrder []int
	grids     map[GridKey]*AngleGrid
	// firstDetector records, per band, the detector whose grid was
	// registered first. Assembly keeps the first-registered detector when
	// several cover the same band.
	firstDetector map[int]int
	means         map[int]MeanBandAngle
}

// NewMetaGrid returns an empty collection that will assemble output in the
// given band order. The order must list each band ID exactly once; bands
// absent from it are unrepresentable in output.
func NewMetaGrid(bandOrder []int) *MetaGrid {
	order := make([]int, len(bandOrder))
	copy(order, bandOrder)
	return &MetaGrid{
		bandOrder:     order,
		grids:         make(map[GridKey]*AngleGrid),
		firstDetector: make(map[int]int),
		means:         make(map[int]MeanBandAngle),
	}
}

// AddGrid registers grid under (detector, band). Grids from different
// detectors for the same band coexist as distinct keys.
func (m *MetaGrid) AddGrid(detector, band int, grid *AngleGrid) {
	key := GridKey{Detector: detector, Band: band}
	m.grids[key] = grid
	if _, seen := m.firstDetector[band]; !seen {
		m.firstDetector[band] = detector
	}
}

// Grid returns the grid registered under (detector, band), if any.
func (m *MetaGrid) Grid(detector, band int) (*AngleGrid, bool) {
	g, ok := m.grids[GridKey{Detector: detector, Band: band}]
	return g, ok
}

// GridKeys returns the keys of all registered grids, in no particular
// order.
func (m *MetaGrid) GridKeys() []GridKey {
	keys := make([]GridKey, 0, len(m.grids))
	for k := range m.grids {
		keys = append(keys, k)
	}
	return keys
}

// SetBandMeanAngles stores the mean angles for mean.BandID. A repeated
// band ID overwrites the previous record (last write wins).
func (m *MetaGrid) SetBandMeanAngles(mean MeanBandAngle) {
	m.means[mean.BandID] = mean
}

// BandMeanAngles returns the mean angles recorded for band, if any.
func (m *MetaGrid) BandMeanAngles(band int) (MeanBandAngle, bool) {
	mean, ok := m.means[band]
	return mean, ok
}

// MeanAngleBands returns the band IDs that have mean angles recorded, in
// no particular order.
func (m *MetaGrid) MeanAngleBands() []int {
	bands := make([]int, 0, len(m.means))
	for b := range m.means {
		bands = append(bands, b)
	}
	return bands
}

// BandPosition returns the position of band in the ordering table, or -1
// if the band is not representable in output.
func (m *MetaGrid) BandPosition(band int) int {
	for i, b := range m.bandOrder {
		if b == band {
			return i
		}
	}
	return -1
}

// AssembleOrdered returns one complete grid per position of the band
// ordering table. When several detectors cover a band, the
// first-registered detector's grid is used. It fails with
// ErrIncompleteBand when a band has no grid at all and with
// ErrIncompleteGrid when the selected grid is only partially filled; both
// errors identify the band and its table position.
func (m *MetaGrid) AssembleOrdered() ([]*AngleGrid, error) {
	out := make([]*AngleGrid, 0, len(m.bandOrder))
	for pos, band := range m.bandOrder {
		detector, ok := m.firstDetector[band]
		if !ok {
			return nil, fmt.Errorf("%w: band %d (table position %d)", ErrIncompleteBand, band, pos)
		}
		grid := m.grids[GridKey{Detector: detector, Band: band}]
		if !grid.Complete() {
			return nil, fmt.Errorf("%w: band %d detector %d (table position %d)", ErrIncompleteGrid, band, detector, pos)
		}
		out = append(out, grid)
	}
	return out, nil
}
