// Package feed ranks a content pool against a user's decayed interest
// vector, with a deliberate curiosity quota of low-affinity picks.
package feed

import (
	"fmt"
	"math"
	"sort"

	"github.com/halcyonvr/resonance/internal/vecmath"
)

// Visibility scopes who may see a content item.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
)

// Label classifies how close an item sits to the viewer's interests.
type Label string

const (
	LabelResonant    Label = "resonant"
	LabelNeutral     Label = "neutral"
	LabelExploratory Label = "exploratory"
)

// Mode selects the ranking strategy.
type Mode string

const (
	ModeResonant    Mode = "resonant"
	ModeExploratory Mode = "exploratory"
	ModeAll         Mode = "all"
)

const (
	// DefaultLimit caps feed length when the caller does not.
	DefaultLimit = 40

	// DefaultCuriosityRatio is the fraction of the feed reserved for
	// low-affinity exploration picks.
	DefaultCuriosityRatio = 0.18

	minCuriosityRatio = 0.05
	maxCuriosityRatio = 0.5

	// Similarity thresholds: labeling above/below, and the partition
	// boundary between resonant and exploratory candidate pools.
	resonantThreshold    = 0.6
	exploratoryThreshold = 0.25
	partitionThreshold   = 0.2
)

// ContentItem is a read-only view of one piece of pool content.
type ContentItem struct {
	ID              string         `json:"id"`
	AuthorID        string         `json:"author_id"`
	Visibility      Visibility     `json:"visibility"`
	Sensitive       bool           `json:"sensitive"`
	PublishedAt     int64          `json:"published_at"` // unix millis
	EngagementScore float64        `json:"engagement_score"`
	InterestVector  vecmath.Vector `json:"interest_vector"`
}

// Entry is one ranked feed position.
type Entry struct {
	Content          ContentItem `json:"content"`
	Similarity       float64     `json:"similarity"`
	Label            Label       `json:"label"`
	CuriosityBoosted bool        `json:"curiosity_boosted"`
}

// ContentSource supplies the content pool. The ranker only reads.
type ContentSource interface {
	ListContent() ([]ContentItem, error)
}

// FriendGraph answers friendship queries for visibility filtering.
type FriendGraph interface {
	IsFriend(viewerID, authorID string) bool
}

// ViewerPrefs reports whether a viewer opted in to sensitive content.
type ViewerPrefs interface {
	AllowsSensitive(userID string) bool
}

// InterestSource supplies the viewer's decayed interest vector.
type InterestSource interface {
	InterestVector(userID string, applyDecay bool, now int64) vecmath.Vector
}

// Options tunes a single ranking call.
type Options struct {
	Mode           Mode
	Limit          int
	CuriosityRatio float64
	Now            int64 // unix millis; decay reference for the interest read
}

func (o Options) limit() int {
	if o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

func (o Options) curiosityRatio() float64 {
	r := o.CuriosityRatio
	if r == 0 {
		r = DefaultCuriosityRatio
	}
	return vecmath.Clamp(r, minCuriosityRatio, maxCuriosityRatio)
}

// Ranker assembles personalized feeds. It is a stateless read relative to
// the profile store apart from the decay settle inside the interest read.
type Ranker struct {
	Interests InterestSource
	Content   ContentSource
	Friends   FriendGraph
	Prefs     ViewerPrefs
}

// NewRanker wires a Ranker from its collaborators.
func NewRanker(interests InterestSource, content ContentSource, friends FriendGraph, prefs ViewerPrefs) *Ranker {
	return &Ranker{Interests: interests, Content: content, Friends: friends, Prefs: prefs}
}

type candidate struct {
	item ContentItem
	sim  float64
	rank int // position in the sorted pool
}

// FeedForUser ranks the visible content pool for userID.
//
// The returned slice is in assembly order: primary fill, then curiosity
// picks, then backfill. The contract is set membership and count; render
// interleaving is the caller's concern.
func (r *Ranker) FeedForUser(userID string, opts Options) ([]Entry, error) {
	pool, err := r.Content.ListContent()
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	userVec := r.Interests.InterestVector(userID, true, opts.Now)
	allowSensitive := r.Prefs != nil && r.Prefs.AllowsSensitive(userID)

	var candidates []candidate
	for _, item := range pool {
		if !r.visibleTo(userID, item) {
			continue
		}
		if item.Sensitive && !allowSensitive {
			continue
		}
		candidates = append(candidates, candidate{
			item: item,
			sim:  vecmath.Cosine(userVec, item.InterestVector),
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if opts.Mode == ModeAll {
		// Recency feed: newest first, no curiosity injection.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].item.PublishedAt > candidates[j].item.PublishedAt
		})
		n := min(opts.limit(), len(candidates))
		entries := make([]Entry, 0, n)
		for _, c := range candidates[:n] {
			entries = append(entries, newEntry(c, false))
		}
		return entries, nil
	}

	// Similarity ranking, ties broken by engagement score.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].item.EngagementScore > candidates[j].item.EngagementScore
	})
	for i := range candidates {
		candidates[i].rank = i
	}

	baseCount := min(opts.limit(), len(candidates))
	curiosityCount := int(math.Floor(float64(baseCount) * opts.curiosityRatio()))
	if curiosityCount < 1 {
		curiosityCount = 1
	}

	var resonant, exploratory []candidate
	for _, c := range candidates {
		if c.sim >= partitionThreshold {
			resonant = append(resonant, c)
		} else {
			exploratory = append(exploratory, c)
		}
	}

	// Primary fill. Exploratory mode deliberately uses the curiosity count
	// as its primary size rather than the complement.
	var primary, opposite []candidate
	primarySize := baseCount - curiosityCount
	if opts.Mode == ModeExploratory {
		primarySize = curiosityCount
		primary, opposite = exploratory, resonant
	} else {
		primary, opposite = resonant, exploratory
	}
	if primarySize > len(primary) {
		primarySize = len(primary)
	}
	if primarySize < 0 {
		primarySize = 0
	}

	used := make(map[int]bool, baseCount)
	entries := make([]Entry, 0, baseCount)
	for _, c := range primary[:primarySize] {
		used[c.rank] = true
		entries = append(entries, newEntry(c, false))
	}

	// Curiosity fill from the opposite pool, ordered by a deterministic
	// seed so picks spread across the pool yet tests stay reproducible.
	picks := make([]candidate, 0, len(opposite))
	seeds := make(map[int]float64, len(opposite))
	for i, c := range opposite {
		if used[c.rank] {
			continue
		}
		seeds[c.rank] = curiositySeed(c.item.PublishedAt, i)
		picks = append(picks, c)
	}
	sort.SliceStable(picks, func(i, j int) bool {
		return seeds[picks[i].rank] < seeds[picks[j].rank]
	})
	for _, c := range picks {
		if len(entries) >= primarySize+curiosityCount || len(entries) >= baseCount {
			break
		}
		used[c.rank] = true
		e := newEntry(c, true)
		e.Label = LabelExploratory
		entries = append(entries, e)
	}

	// Backfill from the full sorted pool in rank order.
	for _, c := range candidates {
		if len(entries) >= baseCount {
			break
		}
		if used[c.rank] {
			continue
		}
		used[c.rank] = true
		entries = append(entries, newEntry(c, false))
	}

	if len(entries) > baseCount {
		entries = entries[:baseCount]
	}
	return entries, nil
}

func (r *Ranker) visibleTo(viewerID string, item ContentItem) bool {
	switch item.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityPrivate:
		return item.AuthorID == viewerID
	case VisibilityFriends:
		if item.AuthorID == viewerID {
			return true
		}
		return r.Friends != nil && r.Friends.IsFriend(viewerID, item.AuthorID)
	default:
		return false
	}
}

func newEntry(c candidate, boosted bool) Entry {
	return Entry{
		Content:          c.item,
		Similarity:       c.sim,
		Label:            labelFor(c.sim),
		CuriosityBoosted: boosted,
	}
}

func labelFor(sim float64) Label {
	switch {
	case sim >= resonantThreshold:
		return LabelResonant
	case sim < exploratoryThreshold:
		return LabelExploratory
	default:
		return LabelNeutral
	}
}

// curiositySeed derives a reproducible pseudo-random value in [0,1) from a
// content timestamp and its position in the candidate pool. No RNG state,
// so ranking stays deterministic under test.
func curiositySeed(publishedAt int64, index int) float64 {
	v := math.Sin(float64(publishedAt)+float64(index)) * 43758.5453
	return v - math.Floor(v)
}
