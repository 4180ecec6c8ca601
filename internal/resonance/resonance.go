// Package resonance maps engagement signals onto a smoothly animated
// display color per user. Each user carries two decaying category-weight
// maps, a fast "recent" signal and a slow "baseline", blended into a
// composite that picks the target color from the taxonomy palette.
package resonance

import (
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/halcyonvr/resonance/internal/palette"
	"github.com/halcyonvr/resonance/internal/taxonomy"
	"github.com/halcyonvr/resonance/internal/vecmath"
)

const (
	recentHalfLifeMs   = 6 * 60 * 1000      // 6 minutes
	baselineHalfLifeMs = 6 * 60 * 60 * 1000 // 6 hours

	// Weights below this are dropped during decay and compositing.
	minWeight = 1e-4

	// Baseline absorbs engagement at reduced strength; the composite
	// favors the recent signal.
	baselineStrength = 0.4
	recentShare      = 0.65
	baselineShare    = 0.35

	// Intensity in [0.05, 1.5] maps linearly onto a lerp fraction in
	// [0.25, 0.75]: strong events move the color further per step.
	minIntensity = 0.05
	maxIntensity = 1.5
	minLerp      = 0.25
	maxLerp      = 0.75

	// DefaultPulseDuration is the pulse lifetime when the caller passes
	// none, in milliseconds.
	DefaultPulseDuration = 2100
)

// Mode controls whether a user's color tracks engagement or stays pinned.
type Mode string

const (
	ModeDynamic Mode = "dynamic"
	ModeLocked  Mode = "locked"
)

// Pulse is a transient marker for a content-driven resonance burst. The
// engine only appends pulses and lazily discards expired ones; animation
// consumers own the rest of their lifecycle.
type Pulse struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	StartedAt int64  `json:"started_at"`
	Duration  int64  `json:"duration_ms"`
}

func (p Pulse) expired(now int64) bool {
	return p.StartedAt+p.Duration <= now
}

// Entry is one user's resonance state.
type Entry struct {
	Recent            taxonomy.Weights
	Baseline          taxonomy.Weights
	RecentTimestamp   int64
	BaselineTimestamp int64
	CurrentColor      palette.Color
	Mode              Mode
	LockedColor       *palette.Color
	DominantCategory  string
	Pulses            []Pulse
}

// PresenceRegistry holds each user's externally visible display color. The
// engine reads the seed color on first touch and pushes updates as a side
// effect; it never owns the registry.
type PresenceRegistry interface {
	PresenceColor(userID string) (palette.Color, bool)
	SetPresenceColor(userID string, c palette.Color)
}

// Result is the outcome of one engagement registration.
type Result struct {
	Color            palette.Color
	DominantCategory string
	Weights          taxonomy.Weights
}

// Engine owns one Entry per user. Mutations for a given user are serialized
// under the engine mutex.
type Engine struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	presence PresenceRegistry
}

// NewEngine creates an Engine pushing color updates to presence. A nil
// presence registry disables seeding and the push side effect.
func NewEngine(presence PresenceRegistry) *Engine {
	return &Engine{
		entries:  make(map[string]*Entry),
		presence: presence,
	}
}

func (e *Engine) ensure(userID string) *Entry {
	if entry, ok := e.entries[userID]; ok {
		return entry
	}

	seed := palette.Default
	if e.presence != nil {
		if c, ok := e.presence.PresenceColor(userID); ok {
			seed = c
		}
	}
	entry := &Entry{
		Recent:       taxonomy.Weights{},
		Baseline:     taxonomy.Weights{},
		CurrentColor: seed,
		Mode:         ModeDynamic,
	}
	e.entries[userID] = entry
	return entry
}

// RegisterInterestEngagement converts a raw interest vector to category
// weights and registers it.
func (e *Engine) RegisterInterestEngagement(userID string, vector vecmath.Vector, intensity float64, now int64) Result {
	return e.RegisterCategoryWeights(userID, taxonomy.VectorWeights(vector), intensity, now)
}

// RegisterCategoryWeights ingests explicit category weights for a user.
// Unknown category ids are silently dropped; an effectively empty map is a
// no-op that returns the entry's last-known state. Intensity <= 0 means 1.
func (e *Engine) RegisterCategoryWeights(userID string, weights taxonomy.Weights, intensity float64, now int64) Result {
	if intensity <= 0 {
		intensity = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.ensure(userID)

	known := make(taxonomy.Weights, len(weights))
	for cat, w := range weights {
		if taxonomy.IsKnown(cat) {
			known[cat] = w
		}
	}
	incoming := vecmath.NormalizeL1(known)
	if len(incoming) == 0 {
		return e.result(entry)
	}

	decayWeights(entry.Recent, now-entry.RecentTimestamp, recentHalfLifeMs)
	decayWeights(entry.Baseline, now-entry.BaselineTimestamp, baselineHalfLifeMs)
	entry.RecentTimestamp = now
	entry.BaselineTimestamp = now

	for cat, w := range incoming {
		entry.Recent[cat] += w
		entry.Baseline[cat] += w * baselineStrength
	}
	entry.Recent = vecmath.NormalizeL1(entry.Recent)
	entry.Baseline = vecmath.NormalizeL1(entry.Baseline)

	composite := e.composite(entry)
	entry.DominantCategory = taxonomy.Dominant(composite)

	target := targetColor(composite)
	if entry.Mode != ModeLocked {
		fraction := minLerp + (vecmath.Clamp(intensity, minIntensity, maxIntensity)-minIntensity)/(maxIntensity-minIntensity)*(maxLerp-minLerp)
		next := palette.Lerp(entry.CurrentColor, target, fraction)
		changed := next != entry.CurrentColor
		entry.CurrentColor = next
		if changed && e.presence != nil {
			e.presence.SetPresenceColor(userID, next)
		}
	}

	return e.result(entry)
}

// composite blends recent and baseline into a normalized map, dropping
// near-zero categories.
func (e *Engine) composite(entry *Entry) taxonomy.Weights {
	combined := taxonomy.Weights{}
	for _, cat := range taxonomy.Categories {
		w := entry.Recent[cat.ID]*recentShare + entry.Baseline[cat.ID]*baselineShare
		if w >= minWeight {
			combined[cat.ID] = w
		}
	}
	return vecmath.NormalizeL1(combined)
}

func (e *Engine) result(entry *Entry) Result {
	composite := e.composite(entry)
	return Result{
		Color:            e.visibleColor(entry),
		DominantCategory: taxonomy.Dominant(composite),
		Weights:          composite,
	}
}

func (e *Engine) visibleColor(entry *Entry) palette.Color {
	if entry.Mode == ModeLocked && entry.LockedColor != nil {
		return *entry.LockedColor
	}
	return entry.CurrentColor
}

// targetColor blends the taxonomy base colors by composite share.
func targetColor(composite taxonomy.Weights) palette.Color {
	if len(composite) == 0 {
		return palette.Default
	}
	colors := make([]palette.Color, 0, len(composite))
	weights := make([]float64, 0, len(composite))
	for _, cat := range taxonomy.Categories {
		if w, ok := composite[cat.ID]; ok {
			colors = append(colors, cat.BaseColor)
			weights = append(weights, w)
		}
	}
	return palette.Blend(colors, weights)
}

// decayWeights halves each weight once per half-life of elapsed time and
// drops entries that fall below minWeight. A fresh entry's map is empty, so
// the epoch-relative first elapsed is harmless.
func decayWeights(weights taxonomy.Weights, elapsed int64, halfLifeMs float64) {
	if elapsed <= 0 || len(weights) == 0 {
		return
	}
	factor := math.Exp(-math.Ln2 * float64(elapsed) / halfLifeMs)
	for cat, w := range weights {
		w *= factor
		if w < minWeight {
			delete(weights, cat)
			continue
		}
		weights[cat] = w
	}
}

// RegisterContentPulse appends a transient pulse for the given category,
// first discarding any pulse that has already expired. Unknown categories
// are ignored. durationMs <= 0 means DefaultPulseDuration.
func (e *Engine) RegisterContentPulse(userID, category string, durationMs, now int64) *Pulse {
	if !taxonomy.IsKnown(category) {
		return nil
	}
	if durationMs <= 0 {
		durationMs = DefaultPulseDuration
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.ensure(userID)

	live := entry.Pulses[:0]
	for _, p := range entry.Pulses {
		if !p.expired(now) {
			live = append(live, p)
		}
	}
	pulse := Pulse{
		ID:        uuid.NewString(),
		Category:  category,
		StartedAt: now,
		Duration:  durationMs,
	}
	entry.Pulses = append(live, pulse)
	return &pulse
}

// SyncManualPreferences switches a user between dynamic and locked color
// modes. Locking with a color immediately pushes it to presence.
func (e *Engine) SyncManualPreferences(userID string, mode Mode, lockedColor *palette.Color) {
	if mode != ModeDynamic && mode != ModeLocked {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry := e.ensure(userID)
	entry.Mode = mode

	if mode == ModeLocked {
		if lockedColor != nil {
			c := *lockedColor
			entry.LockedColor = &c
			if e.presence != nil {
				e.presence.SetPresenceColor(userID, c)
			}
		}
		return
	}
	entry.LockedColor = nil
}

// View is a read-only snapshot of one user's resonance state.
type View struct {
	Color            string           `json:"color"`
	Mode             Mode             `json:"mode"`
	DominantCategory string           `json:"dominant_category,omitempty"`
	Weights          taxonomy.Weights `json:"weights"`
	Pulses           []Pulse          `json:"pulses"`
}

// State returns the user's current visible color, composite weights, and
// live (non-expired) pulses. A user with no entry gets the default state.
func (e *Engine) State(userID string, now int64) View {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[userID]
	if !ok {
		return View{
			Color:   palette.Default.Hex(),
			Mode:    ModeDynamic,
			Weights: taxonomy.Weights{},
			Pulses:  []Pulse{},
		}
	}

	pulses := make([]Pulse, 0, len(entry.Pulses))
	for _, p := range entry.Pulses {
		if !p.expired(now) {
			pulses = append(pulses, p)
		}
	}
	return View{
		Color:            e.visibleColor(entry).Hex(),
		Mode:             entry.Mode,
		DominantCategory: entry.DominantCategory,
		Weights:          e.composite(entry),
		Pulses:           pulses,
	}
}

// Remove deletes a user's resonance entry. Explicit removal only.
func (e *Engine) Remove(userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, userID)
}

// Snapshot is a plain-data view of one entry, for persistence. Pulses are
// deliberately excluded: they are transient animation data.
type Snapshot struct {
	UserID            string           `json:"user_id"`
	Recent            taxonomy.Weights `json:"recent"`
	Baseline          taxonomy.Weights `json:"baseline"`
	RecentTimestamp   int64            `json:"recent_timestamp"`
	BaselineTimestamp int64            `json:"baseline_timestamp"`
	CurrentColor      string           `json:"current_color"`
	Mode              Mode             `json:"mode"`
	LockedColor       string           `json:"locked_color,omitempty"`
	DominantCategory  string           `json:"dominant_category,omitempty"`
}

// Snapshot returns a persistence view of the user's entry.
func (e *Engine) Snapshot(userID string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.entries[userID]
	if !ok {
		return Snapshot{}, false
	}

	snap := Snapshot{
		UserID:            userID,
		Recent:            copyWeights(entry.Recent),
		Baseline:          copyWeights(entry.Baseline),
		RecentTimestamp:   entry.RecentTimestamp,
		BaselineTimestamp: entry.BaselineTimestamp,
		CurrentColor:      entry.CurrentColor.Hex(),
		Mode:              entry.Mode,
		DominantCategory:  entry.DominantCategory,
	}
	if entry.LockedColor != nil {
		snap.LockedColor = entry.LockedColor.Hex()
	}
	return snap, true
}

// Restore replaces a user's entry from a snapshot.
func (e *Engine) Restore(snap Snapshot) {
	if snap.UserID == "" {
		return
	}

	entry := &Entry{
		Recent:            copyWeights(snap.Recent),
		Baseline:          copyWeights(snap.Baseline),
		RecentTimestamp:   snap.RecentTimestamp,
		BaselineTimestamp: snap.BaselineTimestamp,
		CurrentColor:      palette.Default,
		Mode:              ModeDynamic,
		DominantCategory:  snap.DominantCategory,
	}
	if entry.Recent == nil {
		entry.Recent = taxonomy.Weights{}
	}
	if entry.Baseline == nil {
		entry.Baseline = taxonomy.Weights{}
	}
	if c, err := palette.ParseHex(snap.CurrentColor); err == nil {
		entry.CurrentColor = c
	}
	if snap.Mode == ModeLocked {
		entry.Mode = ModeLocked
	}
	if snap.LockedColor != "" {
		if c, err := palette.ParseHex(snap.LockedColor); err == nil {
			entry.LockedColor = &c
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries[snap.UserID] = entry
}

// UserIDs lists every user with a resonance entry.
func (e *Engine) UserIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.entries))
	for id := range e.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func copyWeights(w taxonomy.Weights) taxonomy.Weights {
	out := make(taxonomy.Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
