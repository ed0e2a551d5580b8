// Package testutil provides shared test helpers and angle-grid fixtures
// used across the store, API and plotting tests.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rtchokonte/awsdownload/internal/angles"
	"github.com/rtchokonte/awsdownload/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// MuteLogs silences the monitoring logger for the duration of the test.
func MuteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// CompleteGrid returns a fully populated dim x dim grid whose cells all
// hold value, so fixtures can be told apart by content.
func CompleteGrid(t *testing.T, dim int, value float64) *angles.AngleGrid {
	t.Helper()
	g := angles.NewAngleGrid(dim)
	tokens := make([]string, dim)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%g", value)
	}
	row := strings.Join(tokens, " ")
	for r := 0; r < dim; r++ {
		if err := g.SetRow(r, row); err != nil {
			t.Fatalf("building fixture grid: %v", err)
		}
	}
	return g
}

// GranuleResult returns a parse result covering every band of the
// canonical ordering on both axes, with per-band mean angles on the
// zenith collection. Grid cells hold the band ID so callers can verify
// which band a stored grid came from.
func GranuleResult(t *testing.T, dim int) *angles.Result {
	t.Helper()
	res := &angles.Result{
		Zenith:  angles.NewMetaGrid(angles.BandOrder()),
		Azimuth: angles.NewMetaGrid(angles.BandOrder()),
	}
	for _, band := range angles.BandOrder() {
		res.Zenith.AddGrid(1, band, CompleteGrid(t, dim, float64(band)))
		res.Azimuth.AddGrid(1, band, CompleteGrid(t, dim, float64(band)+0.5))
		res.Zenith.SetBandMeanAngles(angles.MeanBandAngle{
			BandID:  band,
			Zenith:  float64(band) + 0.25,
			Azimuth: float64(band) + 0.75,
		})
	}
	return res
}
