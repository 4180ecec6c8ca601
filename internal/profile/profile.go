// Package profile implements the per-user interest model: a map of topic
// entries with half-life decay, additive reinforcement, and per-topic locks.
//
// Decay is lazy. Nothing runs on a timer; every read or write first settles
// pending decay at the supplied timestamp, which keeps replayed histories
// consistent and removes any scheduler drift.
package profile

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/halcyonvr/resonance/internal/vecmath"
)

const (
	// DefaultHalfLifeDays is how long an untouched interest takes to halve.
	DefaultHalfLifeDays = 30.0

	// DefaultInteractionWeight scales passive engagement events.
	DefaultInteractionWeight = 0.2

	// PublicContentWeight scales publishing or viewing public content,
	// which carries a stronger signal than passive engagement.
	PublicContentWeight = 0.35
)

const millisPerDay = 24 * 60 * 60 * 1000

// Entry is one topic's stored interest state.
type Entry struct {
	Value       float64
	LastUpdated int64 // unix millis
	Locked      bool
}

// Profile holds all interest entries for one user.
type Profile struct {
	Entries        map[string]*Entry
	HalfLifeDays   float64
	LastDecayCheck int64
}

// decayTo settles pending decay for every unlocked entry at the given
// timestamp. Value halves once per half-life: value *= 0.5^(elapsed/halfLife).
// Decay never increases a value, so repeated calls are monotone.
func (p *Profile) decayTo(now int64) {
	halfLifeMs := p.HalfLifeDays * millisPerDay
	if halfLifeMs <= 0 {
		halfLifeMs = DefaultHalfLifeDays * millisPerDay
	}

	for _, e := range p.Entries {
		if e.Locked {
			continue
		}
		elapsed := float64(now - e.LastUpdated)
		if elapsed <= 0 {
			continue
		}
		e.Value *= math.Exp(-math.Ln2 * elapsed / halfLifeMs)
		e.LastUpdated = now
	}
	p.LastDecayCheck = now
}

func (p *Profile) snapshot() vecmath.Vector {
	out := make(vecmath.Vector, len(p.Entries))
	for topic, e := range p.Entries {
		out[topic] = e.Value
	}
	return out
}

// Store owns one Profile per user. All mutation for a given user is
// serialized under the store mutex; the decay-then-apply sequence is not
// commutative under interleaving.
type Store struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

// NewStore creates an empty profile store.
func NewStore() *Store {
	return &Store{profiles: make(map[string]*Profile)}
}

// EnsureProfile creates a profile for userID if none exists, optionally
// seeded from an L1-normalized copy of seed. Existing profiles are left
// untouched.
func (s *Store) EnsureProfile(userID string, seed vecmath.Vector, now int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensure(userID, seed, now)
}

func (s *Store) ensure(userID string, seed vecmath.Vector, now int64) *Profile {
	if p, ok := s.profiles[userID]; ok {
		return p
	}

	p := &Profile{
		Entries:        make(map[string]*Entry),
		HalfLifeDays:   DefaultHalfLifeDays,
		LastDecayCheck: now,
	}
	for topic, value := range vecmath.NormalizeL1(seed) {
		p.Entries[normalizeTopic(topic)] = &Entry{
			Value:       vecmath.Clamp01(value),
			LastUpdated: now,
		}
	}
	s.profiles[userID] = p
	return p
}

// InterestVector returns a topic→value snapshot of the user's profile.
// With applyDecay it first settles pending decay at now, mutating the
// stored entries. A missing profile yields an empty vector.
func (s *Store) InterestVector(userID string, applyDecay bool, now int64) vecmath.Vector {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return vecmath.Vector{}
	}
	if applyDecay {
		p.decayTo(now)
	}
	return p.snapshot()
}

// RecordInteraction reinforces the user's interest in each topic of vector,
// scaled by weight (DefaultInteractionWeight when weight <= 0). An empty
// vector is a no-op. Pending decay is settled at the interaction timestamp
// first, so historical replays stay consistent. Locked topics are skipped.
//
// Reinforcement is additive with clamping, not a moving average: repeated
// small interactions can saturate a topic at 1.0.
func (s *Store) RecordInteraction(userID string, vector vecmath.Vector, weight float64, now int64) {
	if len(vector) == 0 {
		return
	}
	if weight <= 0 {
		weight = DefaultInteractionWeight
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensure(userID, nil, now)
	p.decayTo(now)

	for topic, value := range vector {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		topic = normalizeTopic(topic)
		if topic == "" {
			continue
		}

		e, ok := p.Entries[topic]
		if !ok {
			p.Entries[topic] = &Entry{
				Value:       vecmath.Clamp01(value * weight),
				LastUpdated: now,
			}
			continue
		}
		if e.Locked {
			continue
		}
		e.Value = vecmath.Clamp01(e.Value + value*weight)
		e.LastUpdated = now
	}
}

// IntegratePublicContent records a public-content event at PublicContentWeight.
func (s *Store) IntegratePublicContent(userID string, vector vecmath.Vector, now int64) {
	s.RecordInteraction(userID, vector, PublicContentWeight, now)
}

// SetInterestValue directly sets a topic's value. It reports false, without
// writing, when the profile or topic does not exist or the entry is locked:
// every direct-write path respects the lock, so changing a locked value
// takes an explicit unlock first.
func (s *Store) SetInterestValue(userID, topic string, value float64, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return false
	}
	e, ok := p.Entries[normalizeTopic(topic)]
	if !ok || e.Locked {
		return false
	}
	e.Value = vecmath.Clamp01(value)
	e.LastUpdated = now
	return true
}

// ToggleInterestLock flips a topic's lock and reports the new state. It
// reports false when the profile or topic does not exist. Locked entries
// are immune to decay and to every ingestion path.
func (s *Store) ToggleInterestLock(userID, topic string) (locked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.profiles[userID]
	if !found {
		return false, false
	}
	e, found := p.Entries[normalizeTopic(topic)]
	if !found {
		return false, false
	}
	e.Locked = !e.Locked
	return e.Locked, true
}

// SetHalfLifeDays changes the user's decay half-life, creating the profile
// if needed. Non-positive or non-finite values are ignored.
func (s *Store) SetHalfLifeDays(userID string, days float64, now int64) {
	if days <= 0 || math.IsNaN(days) || math.IsInf(days, 0) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensure(userID, nil, now)
	p.HalfLifeDays = days
}

// HalfLifeDays returns the user's configured half-life, or the default for
// a missing profile.
func (s *Store) HalfLifeDays(userID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		return p.HalfLifeDays
	}
	return DefaultHalfLifeDays
}

// ImportInterests replaces interest values from an external source. The
// incoming vector is L1-normalized before each value is clamped into an
// entry. Locked topics keep their stored value.
func (s *Store) ImportInterests(userID string, vector vecmath.Vector, now int64) {
	normalized := vecmath.NormalizeL1(vector)
	if len(normalized) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.ensure(userID, nil, now)
	for topic, value := range normalized {
		topic = normalizeTopic(topic)
		if topic == "" {
			continue
		}
		e, ok := p.Entries[topic]
		if ok && e.Locked {
			continue
		}
		if !ok {
			e = &Entry{}
			p.Entries[topic] = e
		}
		e.Value = vecmath.Clamp01(value)
		e.LastUpdated = now
	}
}

// RemoveProfile deletes a user's profile. Profiles are never removed
// implicitly; this is for explicit account deletion.
func (s *Store) RemoveProfile(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
}

// EntrySnapshot is one entry of a profile snapshot.
type EntrySnapshot struct {
	Topic       string  `json:"topic"`
	Value       float64 `json:"value"`
	LastUpdated int64   `json:"last_updated"`
	Locked      bool    `json:"locked"`
}

// Snapshot is a plain-data view of one profile, for persistence.
type Snapshot struct {
	UserID         string          `json:"user_id"`
	HalfLifeDays   float64         `json:"half_life_days"`
	LastDecayCheck int64           `json:"last_decay_check"`
	Entries        []EntrySnapshot `json:"entries"`
}

// Snapshot returns a copy of the user's profile for persistence, with
// entries in stable topic order. ok is false when no profile exists.
func (s *Store) Snapshot(userID string) (snap Snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, found := s.profiles[userID]
	if !found {
		return Snapshot{}, false
	}

	snap = Snapshot{
		UserID:         userID,
		HalfLifeDays:   p.HalfLifeDays,
		LastDecayCheck: p.LastDecayCheck,
	}
	for topic, e := range p.Entries {
		snap.Entries = append(snap.Entries, EntrySnapshot{
			Topic:       topic,
			Value:       e.Value,
			LastUpdated: e.LastUpdated,
			Locked:      e.Locked,
		})
	}
	sort.Slice(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Topic < snap.Entries[j].Topic
	})
	return snap, true
}

// Restore replaces the user's profile from a snapshot.
func (s *Store) Restore(snap Snapshot) {
	if snap.UserID == "" {
		return
	}

	p := &Profile{
		Entries:        make(map[string]*Entry, len(snap.Entries)),
		HalfLifeDays:   snap.HalfLifeDays,
		LastDecayCheck: snap.LastDecayCheck,
	}
	if p.HalfLifeDays <= 0 {
		p.HalfLifeDays = DefaultHalfLifeDays
	}
	for _, e := range snap.Entries {
		topic := normalizeTopic(e.Topic)
		if topic == "" {
			continue
		}
		p.Entries[topic] = &Entry{
			Value:       vecmath.Clamp01(e.Value),
			LastUpdated: e.LastUpdated,
			Locked:      e.Locked,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[snap.UserID] = p
}

// UserIDs lists every user with a profile, in stable order.
func (s *Store) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
