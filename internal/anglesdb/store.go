// Package anglesdb persists parsed viewing-angle results per granule in a
// sqlite database: one granule record per ingest, the per-detector grids
// as compressed blobs, and the per-band mean angles.
package anglesdb

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rtchokonte/awsdownload/internal/angles"
	"github.com/rtchokonte/awsdownload/internal/monitoring"
	"github.com/rtchokonte/awsdownload/internal/timeutil"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a granule ID has no record.
var ErrNotFound = errors.New("granule not found")

// Store wraps the sqlite database holding ingested angle results.
type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// NewStore opens (creating if needed) the angle store at path and ensures
// the schema exists.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply angle store schema: %w", err)
	}
	return &Store{DB: db, path: path, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used to stamp ingests. Tests use this to get
// deterministic timestamps.
func (s *Store) SetClock(clock timeutil.Clock) {
	s.clock = clock
}

// Granule is one ingested metadata document.
type Granule struct {
	GranuleID         string `json:"granule_id"`
	Label             string `json:"label"`
	SourcePath        string `json:"source_path"`
	IngestedUnixNanos int64  `json:"ingested_unix_nanos"`
	Strict            bool   `json:"strict"`
	GridCount         int    `json:"grid_count"`
	DiagnosticCount   int    `json:"diagnostic_count"`
}

// StoredGrid is one persisted angle grid, decoded back to its matrix.
type StoredGrid struct {
	GridID       int64       `json:"grid_id"`
	GranuleID    string      `json:"granule_id"`
	Axis         string      `json:"axis"`
	BandID       int         `json:"band_id"`
	DetectorID   int         `json:"detector_id"`
	BandPosition int         `json:"band_position"`
	Dim          int         `json:"dim"`
	Mean         float64     `json:"mean"`
	StdDev       float64     `json:"stddev"`
	Values       [][]float64 `json:"values,omitempty"`
}

// StoredMeanAngle is one persisted per-band mean angle pair.
type StoredMeanAngle struct {
	GranuleID string  `json:"granule_id"`
	BandID    int     `json:"band_id"`
	Zenith    float64 `json:"zenith"`
	Azimuth   float64 `json:"azimuth"`
}

// InsertResult stores one parse result under a fresh granule ID and
// returns the granule record. Incomplete grids are skipped with a log
// line; they carry no usable angle surface and their absence is visible in
// the grid count.
func (s *Store) InsertResult(label, sourcePath string, strict bool, res *angles.Result) (*Granule, error) {
	granule := &Granule{
		GranuleID:         uuid.New().String(),
		Label:             label,
		SourcePath:        sourcePath,
		IngestedUnixNanos: s.clock.Now().UnixNano(),
		Strict:            strict,
		DiagnosticCount:   len(res.Diagnostics),
	}

	tx, err := s.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for axis, mg := range map[angles.Axis]*angles.MetaGrid{
		angles.AxisZenith:  res.Zenith,
		angles.AxisAzimuth: res.Azimuth,
	} {
		for _, key := range mg.GridKeys() {
			grid, _ := mg.Grid(key.Detector, key.Band)
			if !grid.Complete() {
				monitoring.Logf("granule %s: skipping incomplete %s grid band=%d detector=%d",
					granule.GranuleID, axis, key.Band, key.Detector)
				continue
			}
			if err := insertGrid(tx, granule.GranuleID, axis.String(), key, mg.BandPosition(key.Band), grid); err != nil {
				return nil, err
			}
			granule.GridCount++
		}
	}

	for _, band := range res.Zenith.MeanAngleBands() {
		mean, _ := res.Zenith.BandMeanAngles(band)
		_, err := tx.Exec(`
			INSERT INTO mean_angles (granule_id, band_id, zenith, azimuth)
			VALUES (?, ?, ?, ?)
		`, granule.GranuleID, mean.BandID, mean.Zenith, mean.Azimuth)
		if err != nil {
			return nil, fmt.Errorf("insert mean angles for band %d: %w", band, err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO granules (granule_id, label, source_path, ingested_unix_nanos, strict, grid_count, diagnostic_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, granule.GranuleID, granule.Label, granule.SourcePath, granule.IngestedUnixNanos,
		boolToInt(granule.Strict), granule.GridCount, granule.DiagnosticCount)
	if err != nil {
		return nil, fmt.Errorf("insert granule: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return granule, nil
}

func insertGrid(tx *sql.Tx, granuleID, axis string, key angles.GridKey, position int, grid *angles.AngleGrid) error {
	values, err := grid.Values()
	if err != nil {
		return fmt.Errorf("read grid band=%d detector=%d: %w", key.Band, key.Detector, err)
	}
	mean, stddev, err := grid.Stats()
	if err != nil {
		return fmt.Errorf("grid stats band=%d detector=%d: %w", key.Band, key.Detector, err)
	}
	blob, err := encodeGridBlob(values)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO angle_grids (granule_id, axis, band_id, detector_id, band_position, dim, mean, stddev, grid_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, granuleID, axis, key.Band, key.Detector, position, grid.Dim(), mean, stddev, blob)
	if err != nil {
		return fmt.Errorf("insert %s grid band=%d detector=%d: %w", axis, key.Band, key.Detector, err)
	}
	return nil
}

// ListGranules returns all granule records, most recently ingested first.
func (s *Store) ListGranules() ([]Granule, error) {
	rows, err := s.Query(`
		SELECT granule_id, label, source_path, ingested_unix_nanos, strict, grid_count, diagnostic_count
		FROM granules ORDER BY ingested_unix_nanos DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var granules []Granule
	for rows.Next() {
		var g Granule
		var strict int
		if err := rows.Scan(&g.GranuleID, &g.Label, &g.SourcePath, &g.IngestedUnixNanos,
			&strict, &g.GridCount, &g.DiagnosticCount); err != nil {
			return nil, err
		}
		g.Strict = strict != 0
		granules = append(granules, g)
	}
	return granules, rows.Err()
}

// Granule returns the record for granuleID, or ErrNotFound.
func (s *Store) Granule(granuleID string) (*Granule, error) {
	var g Granule
	var strict int
	err := s.QueryRow(`
		SELECT granule_id, label, source_path, ingested_unix_nanos, strict, grid_count, diagnostic_count
		FROM granules WHERE granule_id = ?
	`, granuleID).Scan(&g.GranuleID, &g.Label, &g.SourcePath, &g.IngestedUnixNanos,
		&strict, &g.GridCount, &g.DiagnosticCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, granuleID)
	}
	if err != nil {
		return nil, err
	}
	g.Strict = strict != 0
	return &g, nil
}

// GranuleGrids returns the stored grids of one axis for a granule, decoded
// and ordered by canonical band position then detector ID.
func (s *Store) GranuleGrids(granuleID, axis string) ([]StoredGrid, error) {
	rows, err := s.Query(`
		SELECT grid_id, granule_id, axis, band_id, detector_id, band_position, dim, mean, stddev, grid_blob
		FROM angle_grids
		WHERE granule_id = ? AND axis = ?
		ORDER BY band_position, detector_id
	`, granuleID, axis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grids []StoredGrid
	for rows.Next() {
		var g StoredGrid
		var blob []byte
		if err := rows.Scan(&g.GridID, &g.GranuleID, &g.Axis, &g.BandID, &g.DetectorID,
			&g.BandPosition, &g.Dim, &g.Mean, &g.StdDev, &blob); err != nil {
			return nil, err
		}
		if g.Values, err = decodeGridBlob(blob, g.Dim); err != nil {
			return nil, fmt.Errorf("grid %d: %w", g.GridID, err)
		}
		grids = append(grids, g)
	}
	return grids, rows.Err()
}

// GranuleMeanAngles returns the stored per-band mean angles for a granule,
// ordered by band ID.
func (s *Store) GranuleMeanAngles(granuleID string) ([]StoredMeanAngle, error) {
	rows, err := s.Query(`
		SELECT granule_id, band_id, zenith, azimuth
		FROM mean_angles WHERE granule_id = ? ORDER BY band_id
	`, granuleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var means []StoredMeanAngle
	for rows.Next() {
		var m StoredMeanAngle
		if err := rows.Scan(&m.GranuleID, &m.BandID, &m.Zenith, &m.Azimuth); err != nil {
			return nil, err
		}
		means = append(means, m)
	}
	return means, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
