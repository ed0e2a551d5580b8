package anglesdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtchokonte/awsdownload/internal/angles"
	"github.com/rtchokonte/awsdownload/internal/testutil"
	"github.com/rtchokonte/awsdownload/internal/timeutil"
)

const testDim = 5

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "angles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestInsertResultRoundTrip(t *testing.T) {
	testutil.MuteLogs(t)
	store := newTestStore(t)

	res := testutil.GranuleResult(t, testDim)
	granule, err := store.InsertResult("T32TQM", "/data/MTD_TL.xml", false, res)
	require.NoError(t, err)
	require.NotEmpty(t, granule.GranuleID)
	// 13 bands on each of the two axes.
	assert.Equal(t, 26, granule.GridCount)
	assert.Equal(t, 0, granule.DiagnosticCount)

	granules, err := store.ListGranules()
	require.NoError(t, err)
	require.Len(t, granules, 1)
	assert.Equal(t, "T32TQM", granules[0].Label)

	got, err := store.Granule(granule.GranuleID)
	require.NoError(t, err)
	assert.Equal(t, granule.GranuleID, got.GranuleID)
	assert.Equal(t, "/data/MTD_TL.xml", got.SourcePath)

	for _, axis := range []string{"zenith", "azimuth"} {
		grids, err := store.GranuleGrids(granule.GranuleID, axis)
		require.NoError(t, err)
		require.Len(t, grids, 13, "axis %s", axis)

		// Rows come back ordered by canonical band position.
		for i, band := range angles.BandOrder() {
			assert.Equal(t, band, grids[i].BandID, "axis %s position %d", axis, i)
			assert.Equal(t, i, grids[i].BandPosition)
			assert.Equal(t, testDim, grids[i].Dim)

			want := float64(band)
			if axis == "azimuth" {
				want += 0.5
			}
			assert.Equal(t, want, grids[i].Values[0][0])
			assert.InDelta(t, want, grids[i].Mean, 1e-12)
		}
	}

	means, err := store.GranuleMeanAngles(granule.GranuleID)
	require.NoError(t, err)
	require.Len(t, means, 13)
	for i := 1; i < len(means); i++ {
		assert.Less(t, means[i-1].BandID, means[i].BandID, "means ordered by band ID")
	}
	for _, m := range means {
		assert.Equal(t, float64(m.BandID)+0.25, m.Zenith)
		assert.Equal(t, float64(m.BandID)+0.75, m.Azimuth)
	}
}

func TestInsertResultSkipsIncompleteGrids(t *testing.T) {
	testutil.MuteLogs(t)
	store := newTestStore(t)

	res := &angles.Result{
		Zenith:  angles.NewMetaGrid(angles.BandOrder()),
		Azimuth: angles.NewMetaGrid(angles.BandOrder()),
	}
	res.Zenith.AddGrid(2, 5, testutil.CompleteGrid(t, testDim, 1))

	partial := angles.NewAngleGrid(testDim)
	require.NoError(t, partial.SetRow(0, "1 2 3 4 5"))
	res.Zenith.AddGrid(3, 5, partial)

	granule, err := store.InsertResult("partial", "x.xml", false, res)
	require.NoError(t, err)
	assert.Equal(t, 1, granule.GridCount)

	grids, err := store.GranuleGrids(granule.GranuleID, "zenith")
	require.NoError(t, err)
	require.Len(t, grids, 1)
	assert.Equal(t, 2, grids[0].DetectorID)
}

func TestInsertResultTimestamp(t *testing.T) {
	testutil.MuteLogs(t)
	store := newTestStore(t)

	ingestTime := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	store.SetClock(timeutil.NewMockClock(ingestTime))

	granule, err := store.InsertResult("stamped", "z.xml", false, testutil.GranuleResult(t, testDim))
	require.NoError(t, err)
	assert.Equal(t, ingestTime.UnixNano(), granule.IngestedUnixNanos)

	got, err := store.Granule(granule.GranuleID)
	require.NoError(t, err)
	assert.Equal(t, ingestTime.UnixNano(), got.IngestedUnixNanos)
}

func TestGranuleNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Granule("no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDiagnosticCountPersisted(t *testing.T) {
	testutil.MuteLogs(t)
	store := newTestStore(t)

	res := testutil.GranuleResult(t, testDim)
	res.Diagnostics = []angles.Diagnostic{
		{Element: "VALUES", Offset: 42, Err: angles.ErrMalformedRow},
	}
	granule, err := store.InsertResult("diag", "y.xml", true, res)
	require.NoError(t, err)
	assert.Equal(t, 1, granule.DiagnosticCount)

	got, err := store.Granule(granule.GranuleID)
	require.NoError(t, err)
	assert.True(t, got.Strict)
	assert.Equal(t, 1, got.DiagnosticCount)
}

func TestGridBlobRoundTrip(t *testing.T) {
	values := [][]float64{
		{1.5, -2.25, 0},
		{12.875, 3.125, -0.001},
		{100, 200, 300},
	}
	blob, err := encodeGridBlob(values)
	require.NoError(t, err)

	got, err := decodeGridBlob(blob, 3)
	require.NoError(t, err)
	if diff := cmp.Diff(values, got); diff != "" {
		t.Errorf("blob round trip (-want +got):\n%s", diff)
	}

	_, err = decodeGridBlob(blob, 4)
	assert.Error(t, err, "dim mismatch must be detected")

	_, err = decodeGridBlob([]byte("not gzip"), 3)
	assert.Error(t, err)
}

func TestMigrateUpAndVersion(t *testing.T) {
	testutil.MuteLogs(t)
	store := newTestStore(t)

	migrationsDir := filepath.Join("..", "..", "migrations")
	require.NoError(t, store.MigrateUp(migrationsDir))

	version, dirty, err := store.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	// Idempotent: a second run is a no-op, not an error.
	require.NoError(t, store.MigrateUp(migrationsDir))
}

func TestNewStoreBadPath(t *testing.T) {
	// Opening is lazy; the schema apply inside NewStore is what surfaces a
	// path error.
	_, err := NewStore(filepath.Join(t.TempDir(), "missing-dir", "x", "angles.db"))
	assert.Error(t, err)
}
