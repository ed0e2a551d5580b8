// Package angles reconstructs per-band viewing-incidence-angle grids from
// Sentinel-2 granule metadata.
//
// The source metadata splits a granule's angle grids by physical detector:
// each Viewing_Incidence_Angles_Grids block carries one detector/band pair
// with a 23x23 zenith grid and a 23x23 azimuth grid, one text row at a time.
// Downstream tooling instead wants the grids grouped by axis and ordered by
// the canonical band sequence 1, 7, 2, 3, 4, 5, 6, 12, 0, 8, 9, 10, 11,
// which is the detector readout order and is unrelated to the numeric band
// IDs.
//
// AnglesReader performs a single streaming pass over the XML token stream
// and produces two MetaGrid collections (zenith and azimuth) plus the
// per-band mean angles. Assembly into canonical band order, with
// completeness checking, is a separate step on MetaGrid so that callers can
// distinguish "the document could not be read" from "the document was read
// but does not cover every band".
package angles
