package anglesdb

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/rtchokonte/awsdownload/internal/security"
)

// AttachAdminRoutes mounts the debug endpoints for the angle store on mux:
// a tailsql console for ad-hoc queries against the grids, a one-shot backup
// download, and a server-side snapshot.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB(fmt.Sprintf("sqlite://%s", s.path), s.DB, &tailsql.DBOptions{
		Label: "Angle store",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the angle store now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := security.SanitizeFilename(filepath.Base(s.path))
		backupPath := fmt.Sprintf("%s-backup-%d.db", base, time.Now().Unix())
		if _, err := s.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()
		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			log.Printf("Failed to stream backup: %v", err)
		}
	}))

	debug.Handle("snapshot", "Write a snapshot of the angle store to a server-side path (?path=...)", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dest := r.URL.Query().Get("path")
		if dest == "" {
			http.Error(w, "path query parameter is required", http.StatusBadRequest)
			return
		}
		// Snapshots may only land in the temp or working directory.
		if err := security.ValidateExportPath(dest); err != nil {
			http.Error(w, fmt.Sprintf("Invalid snapshot path: %v", err), http.StatusBadRequest)
			return
		}
		if _, err := s.Exec("VACUUM INTO ?", dest); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create snapshot: %v", err), http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "snapshot written to %s\n", dest)
	}))
}
