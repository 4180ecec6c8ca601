package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/halcyonvr/resonance/internal/feed"
	"github.com/halcyonvr/resonance/internal/profile"
	"github.com/halcyonvr/resonance/internal/resonance"
	"github.com/halcyonvr/resonance/internal/store"
)

// Server is the resonance HTTP API server.
type Server struct {
	db       *store.DB
	profiles *profile.Store
	colors   *resonance.Engine
	ranker   *feed.Ranker
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a new Server with the given database and version string.
// The profile store and color engine are owned by the caller so that
// snapshots can be restored into them before the server starts.
func New(db *store.DB, profiles *profile.Store, colors *resonance.Engine, version string) *Server {
	s := &Server{
		db:       db,
		profiles: profiles,
		colors:   colors,
		ranker:   feed.NewRanker(profiles, db, db, db),
		version:  version,
		started:  time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/content", s.handleAddContent)
		r.Post("/content/{contentID}/engagements", s.handleContentEngagement)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/interests", s.handleGetInterests)
			r.Post("/interests", s.handleImportInterests)
			r.Put("/interests/{topic}", s.handleSetInterest)
			r.Post("/interests/{topic}/lock", s.handleToggleLock)
			r.Put("/profile", s.handleUpdateProfile)

			r.Get("/feed", s.handleFeed)

			r.Get("/resonance", s.handleResonance)
			r.Post("/resonance/engagements", s.handleResonanceEngagement)
			r.Post("/resonance/pulses", s.handleResonancePulse)
			r.Put("/resonance/preferences", s.handleResonancePreferences)

			r.Put("/friends/{friendID}", s.handleAddFriend)
			r.Delete("/friends/{friendID}", s.handleRemoveFriend)
			r.Put("/preferences", s.handleViewerPreferences)

			r.Delete("/", s.handleDeleteUser)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}
