package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/halcyonvr/resonance/internal/config"
	"github.com/halcyonvr/resonance/internal/profile"
	"github.com/halcyonvr/resonance/internal/resonance"
	"github.com/halcyonvr/resonance/internal/server"
	"github.com/halcyonvr/resonance/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// A .env in the working directory is optional; RESONANCE_* variables
	// override the built-in defaults either way.
	godotenv.Load()
	cfg := config.FromEnv()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	profiles, colors, err := restoreEngines(db)
	if err != nil {
		return fmt.Errorf("restore snapshots: %w", err)
	}

	srv := server.New(db, profiles, colors, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "resonance serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		fmt.Fprintf(os.Stderr, "  profiles: %d, colors: %d\n", len(profiles.UserIDs()), len(colors.UserIDs()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// restoreEngines loads persisted profile and resonance snapshots into fresh
// in-memory engines.
func restoreEngines(db *store.DB) (*profile.Store, *resonance.Engine, error) {
	profiles := profile.NewStore()
	profileSnaps, err := db.LoadProfileSnapshots()
	if err != nil {
		return nil, nil, fmt.Errorf("load profiles: %w", err)
	}
	for _, snap := range profileSnaps {
		profiles.Restore(snap)
	}

	colors := resonance.NewEngine(db)
	colorSnaps, err := db.LoadResonanceSnapshots()
	if err != nil {
		return nil, nil, fmt.Errorf("load resonance entries: %w", err)
	}
	for _, snap := range colorSnaps {
		colors.Restore(snap)
	}

	return profiles, colors, nil
}
