// Package api serves ingested granule angle data over HTTP: granule
// listings, decoded grids and mean angles as JSON, and an echarts heatmap
// for eyeballing a band's angle surface.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/rtchokonte/awsdownload/internal/angles"
	"github.com/rtchokonte/awsdownload/internal/anglesdb"
	"github.com/rtchokonte/awsdownload/internal/httputil"
	"github.com/rtchokonte/awsdownload/internal/version"
)

type Server struct {
	store *anglesdb.Store
}

func NewServer(store *anglesdb.Store) *Server {
	return &Server{store: store}
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/granules", s.listGranules)
	mux.HandleFunc("/api/granules/", s.granuleSubresource)
	mux.HandleFunc("/healthz", s.healthz)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Sentinel-2 angle store %s (%s)\n", version.Version, version.GitSHA)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, fmt.Sprintf("store unavailable: %v", err))
		return
	}
	w.Write([]byte("ok\n"))
}

func (s *Server) listGranules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	granules, err := s.store.ListGranules()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list granules: %v", err))
		return
	}
	if granules == nil {
		granules = []anglesdb.Granule{}
	}
	httputil.WriteJSONOK(w, granules)
}

// granuleSubresource dispatches /api/granules/{id}[/grids|/means|/heatmap].
func (s *Server) granuleSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/granules/")
	parts := strings.SplitN(rest, "/", 2)
	granuleID := parts[0]
	if granuleID == "" {
		httputil.NotFound(w, "missing granule ID")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "":
		s.getGranule(w, granuleID)
	case "grids":
		s.getGrids(w, r, granuleID)
	case "means":
		s.getMeanAngles(w, granuleID)
	case "heatmap":
		s.getHeatmap(w, r, granuleID)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown resource %q", sub))
	}
}

func (s *Server) getGranule(w http.ResponseWriter, granuleID string) {
	granule, err := s.store.Granule(granuleID)
	if errors.Is(err, anglesdb.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, granule)
}

func (s *Server) getGrids(w http.ResponseWriter, r *http.Request, granuleID string) {
	axis, err := queryAxis(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if _, err := s.store.Granule(granuleID); errors.Is(err, anglesdb.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	grids, err := s.store.GranuleGrids(granuleID, axis.String())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load grids: %v", err))
		return
	}
	if grids == nil {
		grids = []anglesdb.StoredGrid{}
	}
	httputil.WriteJSONOK(w, grids)
}

func (s *Server) getMeanAngles(w http.ResponseWriter, granuleID string) {
	if _, err := s.store.Granule(granuleID); errors.Is(err, anglesdb.ErrNotFound) {
		httputil.NotFound(w, err.Error())
		return
	} else if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	means, err := s.store.GranuleMeanAngles(granuleID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load mean angles: %v", err))
		return
	}
	if means == nil {
		means = []anglesdb.StoredMeanAngle{}
	}
	httputil.WriteJSONOK(w, means)
}

// getHeatmap renders one band's angle grid as an echarts heatmap (HTML).
// Query params: axis (zenith|azimuth), band (int).
func (s *Server) getHeatmap(w http.ResponseWriter, r *http.Request, granuleID string) {
	axis, err := queryAxis(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	band, err := strconv.Atoi(r.URL.Query().Get("band"))
	if err != nil {
		httputil.BadRequest(w, "band query parameter must be an integer")
		return
	}

	grids, err := s.store.GranuleGrids(granuleID, axis.String())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load grids: %v", err))
		return
	}

	var grid *anglesdb.StoredGrid
	for i := range grids {
		if grids[i].BandID == band {
			grid = &grids[i]
			break
		}
	}
	if grid == nil {
		httputil.NotFound(w, fmt.Sprintf("no %s grid for band %d", axis, band))
		return
	}

	data := make([]opts.HeatMapData, 0, grid.Dim*grid.Dim)
	min, max := grid.Values[0][0], grid.Values[0][0]
	for row := 0; row < grid.Dim; row++ {
		for col := 0; col < grid.Dim; col++ {
			v := grid.Values[row][col]
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			// echarts heatmaps grow upward; flip rows so the rendered
			// orientation matches the imagery.
			data = append(data, opts.HeatMapData{Value: [3]interface{}{col, grid.Dim - 1 - row, v}})
		}
	}

	axisLabels := make([]string, grid.Dim)
	for i := range axisLabels {
		axisLabels[i] = strconv.Itoa(i)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Viewing incidence angles", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Viewing incidence %s, band %d", axis, band),
			Subtitle: fmt.Sprintf("granule=%s detector=%d mean=%.3f", granuleID, grid.DetectorID, grid.Mean),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: axisLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: axisLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(min),
			Max:        float32(max),
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#31688e", "#35b779", "#fde725"}},
		}),
	)
	hm.AddSeries("angle", data)

	var buf bytes.Buffer
	if err := hm.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func queryAxis(r *http.Request) (angles.Axis, error) {
	raw := r.URL.Query().Get("axis")
	if raw == "" {
		return angles.AxisZenith, nil
	}
	return angles.ParseAxis(raw)
}
