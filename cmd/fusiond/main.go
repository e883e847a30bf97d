// Command fusiond runs the submap fusion daemon: an HTTP ingest/export
// surface over the commutative merge engine, with optional snapshot
// persistence to sqlite.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/mapfuse/internal/api"
	"github.com/banshee-data/mapfuse/internal/config"
	"github.com/banshee-data/mapfuse/internal/fusion"
	"github.com/banshee-data/mapfuse/internal/fusion/monitor"
	"github.com/banshee-data/mapfuse/internal/fusion/storage/sqlite"
	"github.com/banshee-data/mapfuse/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbFile        = flag.String("db", "snapshots.db", "Snapshot database path (empty disables persistence)")
	migrationsDir = flag.String("migrations", "internal/fusion/storage/sqlite/migrations", "Schema migrations directory")
	configPath    = flag.String("config", "", "Optional tuning config JSON path")
	strictMode    = flag.Bool("strict", false, "Abort the merge on the first bad packet")
	enableMonitor = flag.Bool("monitor", false, "Enable /debug chart endpoints")
	showVersion   = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("fusiond %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.Defaults()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *strictMode {
		strict := true
		cfg.Strict = &strict
	}

	mode := fusion.ModeLenient
	if *cfg.Strict {
		mode = fusion.ModeStrict
	}
	engine := fusion.NewEngine(mode)

	var store *sqlite.SnapshotStore
	if *dbFile != "" {
		db, err := sqlite.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open snapshot db: %v", err)
		}
		defer db.Close()
		if err := sqlite.MigrateUp(db, *migrationsDir); err != nil {
			log.Fatalf("failed to migrate snapshot db: %v", err)
		}
		store = sqlite.NewSnapshotStore(db)
	}

	mux := http.NewServeMux()
	api.NewServer(engine, store, cfg).RegisterRoutes(mux)
	if *enableMonitor {
		monitor.NewWebServer(engine).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("[fusiond] %s listening on %s (strict=%v, persistence=%v)", version.Version, *listen, *cfg.Strict, store != nil)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[fusiond] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[fusiond] shutdown error: %v", err)
	}
}
