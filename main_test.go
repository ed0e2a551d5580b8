package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rtchokonte/awsdownload/internal/anglesdb"
	"github.com/rtchokonte/awsdownload/internal/testutil"
)

// granuleDoc builds a minimal but complete granule metadata document:
// every canonical band with both axes, plus mean angles.
func granuleDoc(dim int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><Tile_Angles>`)

	row := strings.TrimSpace(strings.Repeat("1.25 ", dim))
	var values strings.Builder
	for i := 0; i < dim; i++ {
		fmt.Fprintf(&values, "<VALUES>%s</VALUES>", row)
	}

	for _, band := range []int{1, 7, 2, 3, 4, 5, 6, 12, 0, 8, 9, 10, 11} {
		fmt.Fprintf(&b, `<Viewing_Incidence_Angles_Grids bandId="%d" detectorId="1">`, band)
		for _, axis := range []string{"Zenith", "Azimuth"} {
			fmt.Fprintf(&b, "<%s><Values_List>%s</Values_List></%s>", axis, values.String(), axis)
		}
		b.WriteString(`</Viewing_Incidence_Angles_Grids>`)
		fmt.Fprintf(&b, `<Mean_Viewing_Incidence_Angle bandId="%d"><ZENITH_ANGLE>8.5</ZENITH_ANGLE><AZIMUTH_ANGLE>102.25</AZIMUTH_ANGLE></Mean_Viewing_Incidence_Angle>`, band)
	}

	b.WriteString(`</Tile_Angles>`)
	return b.String()
}

func newMainTestStore(t *testing.T) *anglesdb.Store {
	t.Helper()
	store, err := anglesdb.NewStore(filepath.Join(t.TempDir(), "angles.db"))
	testutil.AssertNoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunIngest(t *testing.T) {
	testutil.MuteLogs(t)
	store := newMainTestStore(t)

	// The fixture uses the real 23x23 dimension so ParseFile accepts it.
	path := filepath.Join(t.TempDir(), "MTD_TL.xml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte(granuleDoc(23)), 0o644))

	err := runIngest(store, path, "T32TQM", false, "")
	testutil.AssertNoError(t, err)

	granules, err := store.ListGranules()
	testutil.AssertNoError(t, err)
	if len(granules) != 1 {
		t.Fatalf("got %d granules, want 1", len(granules))
	}
	if granules[0].Label != "T32TQM" {
		t.Errorf("label = %q, want T32TQM", granules[0].Label)
	}
	if granules[0].GridCount != 26 {
		t.Errorf("grid count = %d, want 26", granules[0].GridCount)
	}
}

func TestRunIngestDefaultLabelAndPlots(t *testing.T) {
	testutil.MuteLogs(t)
	store := newMainTestStore(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "MTD_TL.xml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte(granuleDoc(23)), 0o644))

	plots := filepath.Join(dir, "plots")
	testutil.AssertNoError(t, runIngest(store, path, "", false, plots))

	granules, err := store.ListGranules()
	testutil.AssertNoError(t, err)
	if granules[0].Label != "MTD_TL.xml" {
		t.Errorf("label = %q, want MTD_TL.xml", granules[0].Label)
	}

	entries, err := os.ReadDir(plots)
	testutil.AssertNoError(t, err)
	// 13 bands per axis, both axes.
	if len(entries) != 26 {
		t.Errorf("got %d plot files, want 26", len(entries))
	}
}

func TestRunIngestMissingFile(t *testing.T) {
	store := newMainTestStore(t)
	testutil.AssertError(t, runIngest(store, "/no/such/file.xml", "", false, ""))
}

func TestRunIngestStrictRejectsBadDocument(t *testing.T) {
	testutil.MuteLogs(t)
	store := newMainTestStore(t)

	doc := `<?xml version="1.0"?><Tile_Angles>` +
		`<Viewing_Incidence_Angles_Grids bandId="x" detectorId="1"/></Tile_Angles>`
	path := filepath.Join(t.TempDir(), "bad.xml")
	testutil.AssertNoError(t, os.WriteFile(path, []byte(doc), 0o644))

	testutil.AssertError(t, runIngest(store, path, "", true, ""))

	granules, err := store.ListGranules()
	testutil.AssertNoError(t, err)
	if len(granules) != 0 {
		t.Errorf("strict ingest must not store anything, got %d granules", len(granules))
	}
}

func TestRunMigrate(t *testing.T) {
	testutil.MuteLogs(t)
	store := newMainTestStore(t)

	testutil.AssertNoError(t, runMigrate(store, "up", "migrations"))
	testutil.AssertNoError(t, runMigrate(store, "version", "migrations"))
	testutil.AssertError(t, runMigrate(store, "sideways", "migrations"))
}
