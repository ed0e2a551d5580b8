package testutil

import (
	"net/http"
	"testing"

	"github.com/rtchokonte/awsdownload/internal/angles"
)

func TestAssertHelpers(t *testing.T) {
	// The failure paths would fail the test; only the passing paths can be
	// exercised directly.
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, http.ErrServerClosed)
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest("GET", "/api/granules")
	if req.Method != "GET" {
		t.Errorf("method = %s, want GET", req.Method)
	}
	if req.URL.Path != "/api/granules" {
		t.Errorf("path = %s, want /api/granules", req.URL.Path)
	}
	if NewTestRecorder() == nil {
		t.Fatal("recorder is nil")
	}
}

func TestCompleteGrid(t *testing.T) {
	g := CompleteGrid(t, 4, 7.5)
	if !g.Complete() {
		t.Fatal("fixture grid not complete")
	}
	values, err := g.Values()
	AssertNoError(t, err)
	for r := range values {
		for c := range values[r] {
			if values[r][c] != 7.5 {
				t.Fatalf("values[%d][%d] = %v, want 7.5", r, c, values[r][c])
			}
		}
	}
}

func TestGranuleResult(t *testing.T) {
	res := GranuleResult(t, 3)

	zenith, err := res.Zenith.AssembleOrdered()
	AssertNoError(t, err)
	azimuth, err := res.Azimuth.AssembleOrdered()
	AssertNoError(t, err)
	if len(zenith) != 13 || len(azimuth) != 13 {
		t.Fatalf("assembled %d zenith / %d azimuth grids, want 13 each", len(zenith), len(azimuth))
	}

	for i, band := range angles.BandOrder() {
		zv, err := zenith[i].Values()
		AssertNoError(t, err)
		if zv[0][0] != float64(band) {
			t.Errorf("zenith band %d cell = %v, want %d", band, zv[0][0], band)
		}

		mean, ok := res.Zenith.BandMeanAngles(band)
		if !ok {
			t.Fatalf("no mean angles for band %d", band)
		}
		if mean.Zenith != float64(band)+0.25 || mean.Azimuth != float64(band)+0.75 {
			t.Errorf("band %d means = %+v", band, mean)
		}
	}
}
