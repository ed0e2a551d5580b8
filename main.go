package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rtchokonte/awsdownload/api"
	"github.com/rtchokonte/awsdownload/internal/angleplot"
	"github.com/rtchokonte/awsdownload/internal/angles"
	"github.com/rtchokonte/awsdownload/internal/anglesdb"
	"github.com/rtchokonte/awsdownload/internal/config"
	"github.com/rtchokonte/awsdownload/internal/security"
	"github.com/rtchokonte/awsdownload/internal/version"
)

var (
	configPath    = flag.String("config", "", "Path to a JSON config file (flags override it)")
	dbFile        = flag.String("db", "angles.db", "Path to the angle store database")
	listen        = flag.String("listen", ":8080", "Listen address for the HTTP API")
	ingest        = flag.String("ingest", "", "Parse the given granule metadata XML, store the result, then exit")
	granuleLabel  = flag.String("granule", "", "Granule label to record with an ingest (defaults to the metadata filename)")
	strict        = flag.Bool("strict", false, "Abort an ingest on the first data-level metadata error")
	plotsDir      = flag.String("plots", "", "Directory to write per-band heatmap PNGs during an ingest")
	migrationsDir = flag.String("migrations", "migrations", "Path to schema migration files")
	migrateCmd    = flag.String("migrate", "", "Run a migration command (up, down, version) and exit")
)

func main() {
	flag.Parse()

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	cfg := config.EmptyConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	// Explicit flags win over the config file.
	if !setFlags["db"] {
		*dbFile = cfg.GetDBPath()
	}
	if !setFlags["listen"] {
		*listen = cfg.GetListenAddr()
	}
	if !setFlags["strict"] {
		*strict = cfg.GetStrict()
	}
	if !setFlags["plots"] {
		*plotsDir = cfg.GetPlotsDir()
	}
	if !setFlags["migrations"] {
		*migrationsDir = cfg.GetMigrationsDir()
	}

	log.Printf("angle store %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	store, err := anglesdb.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("failed to open angle store: %v", err)
	}
	defer store.Close()

	if *migrateCmd != "" {
		if err := runMigrate(store, *migrateCmd, *migrationsDir); err != nil {
			log.Fatalf("migrate %s: %v", *migrateCmd, err)
		}
		return
	}

	if *ingest != "" {
		if err := runIngest(store, *ingest, *granuleLabel, *strict, *plotsDir); err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	serve(store, *listen, cfg.GetShutdownTimeout())
}

// runIngest parses one granule metadata document, stores the result and
// optionally renders per-band heatmaps of the assembled grids.
func runIngest(store *anglesdb.Store, path, label string, strictMode bool, plots string) error {
	if label == "" {
		label = security.SanitizeFilename(filepath.Base(path))
	}

	reader := angles.NewAnglesReader()
	if strictMode {
		reader.SetMode(angles.ModeStrict)
	}

	res, err := reader.ParseFile(path)
	if err != nil {
		return err
	}
	for _, d := range res.Diagnostics {
		log.Printf("metadata diagnostic: %s", d)
	}

	granule, err := store.InsertResult(label, path, strictMode, res)
	if err != nil {
		return err
	}
	log.Printf("ingested granule %s (%s): %d grids, %d diagnostics",
		granule.GranuleID, granule.Label, granule.GridCount, granule.DiagnosticCount)

	if plots != "" {
		for axis, mg := range map[angles.Axis]*angles.MetaGrid{
			angles.AxisZenith:  res.Zenith,
			angles.AxisAzimuth: res.Azimuth,
		} {
			if err := renderAxis(plots, axis, mg); err != nil {
				// Plotting is best-effort; the parse result is already
				// stored.
				log.Printf("skipping %s heatmaps: %v", axis, err)
			}
		}
	}
	return nil
}

func renderAxis(outputDir string, axis angles.Axis, mg *angles.MetaGrid) error {
	grids, err := mg.AssembleOrdered()
	if err != nil {
		return err
	}

	images := make([]angleplot.GridImage, len(grids))
	for i, band := range angles.BandOrder() {
		values, err := grids[i].Values()
		if err != nil {
			return err
		}
		images[i] = angleplot.GridImage{Band: band, Values: values}
	}

	_, err = angleplot.RenderHeatmaps(outputDir, axis.String(), images)
	return err
}

func runMigrate(store *anglesdb.Store, cmd, dir string) error {
	switch cmd {
	case "up":
		return store.MigrateUp(dir)
	case "down":
		return store.MigrateDown(dir)
	case "version":
		version, dirty, err := store.MigrateVersion(dir)
		if err != nil {
			return err
		}
		log.Printf("angle store schema version %d (dirty=%v)", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down or version)", cmd)
	}
}

// serve runs the HTTP API until SIGINT/SIGTERM, then shuts down
// gracefully.
func serve(store *anglesdb.Store, addr string, shutdownTimeout time.Duration) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()

	// admin debug routes: tailsql console, backup download, snapshot
	store.AttachAdminRoutes(mux)

	apiMux := api.NewServer(store).ServeMux()
	mux.Handle("/", apiMux)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("got request %q", r.URL.Path)
		mux.ServeHTTP(w, r)
	})

	server := &http.Server{
		Addr:    addr,
		Handler: h,
	}

	go func() {
		log.Printf("angle store listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
