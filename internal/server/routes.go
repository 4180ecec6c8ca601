package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/halcyonvr/resonance/internal/feed"
	"github.com/halcyonvr/resonance/internal/palette"
	"github.com/halcyonvr/resonance/internal/profile"
	"github.com/halcyonvr/resonance/internal/resonance"
	"github.com/halcyonvr/resonance/internal/taxonomy"
)

// Engagement kinds map to interaction weights for the interest profile and
// to score deltas on the content item itself.
var engagementKinds = map[string]struct {
	interactionWeight float64
	scoreDelta        float64
}{
	"view":    {0.1, 0.25},
	"like":    {profile.DefaultInteractionWeight, 1},
	"comment": {0.3, 1.5},
	"share":   {profile.PublicContentWeight, 2},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// at returns ts when the caller supplied one, otherwise the wall clock.
func at(ts int64) int64 {
	if ts > 0 {
		return ts
	}
	return time.Now().UnixMilli()
}

// persistProfile writes the user's profile snapshot through to SQLite.
// Persistence failures never fail the request; the in-memory state is
// already correct and the next mutation retries the write.
func (s *Server) persistProfile(userID string) {
	snap, ok := s.profiles.Snapshot(userID)
	if !ok {
		return
	}
	if err := s.db.SaveProfileSnapshot(snap); err != nil {
		log.Printf("persist profile for %s: %v", userID, err)
	}
}

func (s *Server) persistResonance(userID string) {
	snap, ok := s.colors.Snapshot(userID)
	if !ok {
		return
	}
	if err := s.db.SaveResonanceSnapshot(snap); err != nil {
		log.Printf("persist resonance for %s: %v", userID, err)
	}
}

func (s *Server) handleAddContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		feed.ContentItem
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.AuthorID == "" {
		http.Error(w, `{"error":"author_id required"}`, http.StatusBadRequest)
		return
	}

	item := req.ContentItem
	if item.PublishedAt == 0 {
		item.PublishedAt = at(req.Timestamp)
	}
	if err := s.db.SaveContentItem(&item); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	// Publishing public content feeds back into the author's own profile
	// and color at reduced strength.
	if item.Visibility == feed.VisibilityPublic && len(item.InterestVector) > 0 {
		s.profiles.IntegratePublicContent(item.AuthorID, item.InterestVector, item.PublishedAt)
		s.colors.RegisterInterestEngagement(item.AuthorID, item.InterestVector, 1, item.PublishedAt)
		s.persistProfile(item.AuthorID)
		s.persistResonance(item.AuthorID)
	}

	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleContentEngagement(w http.ResponseWriter, r *http.Request) {
	contentID := chi.URLParam(r, "contentID")

	var req struct {
		UserID    string  `json:"user_id"`
		Kind      string  `json:"kind"`
		Intensity float64 `json:"intensity"`
		Timestamp int64   `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, `{"error":"user_id required"}`, http.StatusBadRequest)
		return
	}
	kind, ok := engagementKinds[req.Kind]
	if !ok {
		if req.Kind != "" {
			http.Error(w, `{"error":"unknown engagement kind"}`, http.StatusBadRequest)
			return
		}
		kind = engagementKinds["view"]
	}

	item, err := s.db.GetContentItem(contentID)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Error(w, `{"error":"content not found"}`, http.StatusNotFound)
		return
	}

	now := at(req.Timestamp)
	if err := s.db.AddEngagement(contentID, kind.scoreDelta); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}

	s.profiles.RecordInteraction(req.UserID, item.InterestVector, kind.interactionWeight, now)
	res := s.colors.RegisterInterestEngagement(req.UserID, item.InterestVector, req.Intensity, now)
	if dominant := taxonomy.Dominant(taxonomy.VectorWeights(item.InterestVector)); dominant != "" {
		s.colors.RegisterContentPulse(req.UserID, dominant, 0, now)
	}
	s.persistProfile(req.UserID)
	s.persistResonance(req.UserID)

	writeJSON(w, http.StatusOK, map[string]any{
		"color":             res.Color.Hex(),
		"dominant_category": res.DominantCategory,
		"weights":           res.Weights,
	})
}

func (s *Server) handleGetInterests(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	applyDecay := r.URL.Query().Get("raw") == ""
	vector := s.profiles.InterestVector(userID, applyDecay, time.Now().UnixMilli())

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        userID,
		"interests":      vector,
		"half_life_days": s.profiles.HalfLifeDays(userID),
	})
}

func (s *Server) handleImportInterests(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Interests map[string]float64 `json:"interests"`
		Timestamp int64              `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if len(req.Interests) == 0 {
		http.Error(w, `{"error":"interests required"}`, http.StatusBadRequest)
		return
	}

	now := at(req.Timestamp)
	s.profiles.ImportInterests(userID, req.Interests, now)
	s.persistProfile(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   userID,
		"interests": s.profiles.InterestVector(userID, false, now),
	})
}

func (s *Server) handleSetInterest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	topic := chi.URLParam(r, "topic")

	var req struct {
		Value     float64 `json:"value"`
		Timestamp int64   `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if !s.profiles.SetInterestValue(userID, topic, req.Value, at(req.Timestamp)) {
		http.Error(w, `{"error":"interest is locked or unknown"}`, http.StatusConflict)
		return
	}
	s.persistProfile(userID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleToggleLock(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	topic := chi.URLParam(r, "topic")

	locked, ok := s.profiles.ToggleInterestLock(userID, topic)
	if !ok {
		http.Error(w, `{"error":"interest not found"}`, http.StatusNotFound)
		return
	}
	s.persistProfile(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"topic":  topic,
		"locked": locked,
	})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		HalfLifeDays float64 `json:"half_life_days"`
		Timestamp    int64   `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.HalfLifeDays <= 0 {
		http.Error(w, `{"error":"half_life_days must be positive"}`, http.StatusBadRequest)
		return
	}

	s.profiles.SetHalfLifeDays(userID, req.HalfLifeDays, at(req.Timestamp))
	s.persistProfile(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":        userID,
		"half_life_days": s.profiles.HalfLifeDays(userID),
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	opts := feed.Options{
		Mode: feed.Mode(r.URL.Query().Get("mode")),
		Now:  time.Now().UnixMilli(),
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if c := r.URL.Query().Get("curiosity"); c != "" {
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			opts.CuriosityRatio = f
		}
	}

	entries, err := s.ranker.FeedForUser(userID, opts)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	s.persistProfile(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"mode":    opts.Mode,
		"count":   len(entries),
		"entries": entries,
	})
}

func (s *Server) handleResonance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, s.colors.State(userID, time.Now().UnixMilli()))
}

func (s *Server) handleResonanceEngagement(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Interests  map[string]float64 `json:"interests"`
		Categories map[string]float64 `json:"categories"`
		Intensity  float64            `json:"intensity"`
		Timestamp  int64              `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if len(req.Interests) == 0 && len(req.Categories) == 0 {
		http.Error(w, `{"error":"interests or categories required"}`, http.StatusBadRequest)
		return
	}

	now := at(req.Timestamp)
	var res resonance.Result
	if len(req.Categories) > 0 {
		res = s.colors.RegisterCategoryWeights(userID, req.Categories, req.Intensity, now)
	} else {
		res = s.colors.RegisterInterestEngagement(userID, req.Interests, req.Intensity, now)
	}
	s.persistResonance(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"color":             res.Color.Hex(),
		"dominant_category": res.DominantCategory,
		"weights":           res.Weights,
	})
}

func (s *Server) handleResonancePulse(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Category   string `json:"category"`
		DurationMs int64  `json:"duration_ms"`
		Timestamp  int64  `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	pulse := s.colors.RegisterContentPulse(userID, req.Category, req.DurationMs, at(req.Timestamp))
	if pulse == nil {
		http.Error(w, `{"error":"unknown category"}`, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, pulse)
}

func (s *Server) handleResonancePreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		Mode        string `json:"mode"`
		LockedColor string `json:"locked_color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	mode := resonance.Mode(req.Mode)
	if mode != resonance.ModeDynamic && mode != resonance.ModeLocked {
		http.Error(w, `{"error":"mode must be dynamic or locked"}`, http.StatusBadRequest)
		return
	}

	var lockedColor *palette.Color
	if req.LockedColor != "" {
		c, err := palette.ParseHex(req.LockedColor)
		if err != nil {
			http.Error(w, `{"error":"invalid locked_color"}`, http.StatusBadRequest)
			return
		}
		lockedColor = &c
	}

	s.colors.SyncManualPreferences(userID, mode, lockedColor)
	s.persistResonance(userID)

	writeJSON(w, http.StatusOK, s.colors.State(userID, time.Now().UnixMilli()))
}

func (s *Server) handleAddFriend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	friendID := chi.URLParam(r, "friendID")

	if err := s.db.AddFriend(userID, friendID); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRemoveFriend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	friendID := chi.URLParam(r, "friendID")

	if err := s.db.RemoveFriend(userID, friendID); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleViewerPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req struct {
		AllowSensitive bool `json:"allow_sensitive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	if err := s.db.SetAllowSensitive(userID, req.AllowSensitive); err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.profiles.RemoveProfile(userID)
	s.colors.Remove(userID)
	if err := s.db.DeleteProfileSnapshot(userID); err != nil {
		log.Printf("delete profile snapshot for %s: %v", userID, err)
	}
	if err := s.db.DeleteResonanceSnapshot(userID); err != nil {
		log.Printf("delete resonance snapshot for %s: %v", userID, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
