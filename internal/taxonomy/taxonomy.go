// Package taxonomy maps free-text topics onto the fixed resonance category
// set. The taxonomy is immutable reference data: seven categories, each with
// a base color and a keyword list.
package taxonomy

import (
	"strings"

	"github.com/halcyonvr/resonance/internal/palette"
	"github.com/halcyonvr/resonance/internal/vecmath"
)

// Category is one entry of the fixed taxonomy.
type Category struct {
	ID        string
	BaseColor palette.Color
	Keywords  []string
}

// Weights is a sparse category→weight map. Non-empty maps are expected to
// sum to 1 within floating-point tolerance.
type Weights = map[string]float64

// FallbackCategory receives topics that match no keyword at all.
const FallbackCategory = "social"

// Categories is the fixed seven-entry taxonomy, in stable order.
var Categories = []Category{
	{
		ID:        "art",
		BaseColor: palette.MustHex("#d65db1"),
		Keywords: []string{
			"art", "painting", "drawing", "sketch", "design", "sculpture",
			"photography", "illustration", "animation", "fashion", "aesthetic",
			"gallery", "creative", "craft",
		},
	},
	{
		ID:        "music",
		BaseColor: palette.MustHex("#845ec2"),
		Keywords: []string{
			"music", "song", "band", "album", "concert", "guitar", "piano",
			"vinyl", "playlist", "dj", "synth", "jazz", "techno", "hiphop",
			"audio", "singing",
		},
	},
	{
		ID:        "science",
		BaseColor: palette.MustHex("#2ec4b6"),
		Keywords: []string{
			"science", "physics", "biology", "chemistry", "math", "space",
			"astronomy", "tech", "technology", "ai", "robotics", "coding",
			"programming", "engineering", "research", "data",
		},
	},
	{
		ID:        "philosophy",
		BaseColor: palette.MustHex("#f9a826"),
		Keywords: []string{
			"philosophy", "ethics", "meaning", "consciousness", "mindfulness",
			"stoicism", "spirituality", "meditation", "wisdom", "existential",
			"psychology", "thought",
		},
	},
	{
		ID:        "social",
		BaseColor: palette.MustHex("#ff6f91"),
		Keywords: []string{
			"social", "friends", "community", "party", "meetup", "travel",
			"food", "cooking", "lifestyle", "relationships", "family",
			"conversation", "people",
		},
	},
	{
		ID:        "comedy",
		BaseColor: palette.MustHex("#ffc75f"),
		Keywords: []string{
			"comedy", "funny", "humor", "meme", "memes", "joke", "jokes",
			"standup", "satire", "parody", "prank", "sketchcomedy",
		},
	},
	{
		ID:        "news",
		BaseColor: palette.MustHex("#4d8af0"),
		Keywords: []string{
			"news", "politics", "economy", "world", "current", "events",
			"journalism", "elections", "climate", "finance", "markets",
			"headlines",
		},
	},
}

// exactIndex maps each keyword to the categories that claim it. Built once
// at init; a keyword may belong to several categories.
var exactIndex = buildExactIndex()

func buildExactIndex() map[string][]string {
	idx := make(map[string][]string)
	for _, cat := range Categories {
		for _, kw := range cat.Keywords {
			idx[kw] = append(idx[kw], cat.ID)
		}
	}
	return idx
}

// ByID returns the category with the given id, or nil for unknown ids.
func ByID(id string) *Category {
	for i := range Categories {
		if Categories[i].ID == id {
			return &Categories[i]
		}
	}
	return nil
}

// IsKnown reports whether id names a taxonomy category.
func IsKnown(id string) bool {
	return ByID(id) != nil
}

// ResolveTopic maps a free-text topic to every matching category.
//
// Exact keyword hits win. Otherwise the topic is tokenized and each token is
// checked against the keyword index, so "ai research" fans out to science
// via both words. A topic may legitimately match several categories; callers
// split weight across all of them rather than picking one. Topics with no
// match land in the fallback category.
func ResolveTopic(topic string) []string {
	normalized := strings.ToLower(strings.TrimSpace(topic))
	if normalized == "" {
		return []string{FallbackCategory}
	}

	if ids, ok := exactIndex[normalized]; ok {
		return dedup(ids)
	}

	var matched []string
	for _, word := range tokenize(normalized) {
		if ids, ok := exactIndex[word]; ok {
			matched = append(matched, ids...)
		}
	}
	if len(matched) == 0 {
		return []string{FallbackCategory}
	}
	return dedup(matched)
}

// VectorWeights converts a sparse interest vector into normalized category
// weights. Each topic's normalized value is split evenly across its resolved
// categories.
func VectorWeights(vector vecmath.Vector) Weights {
	normalized := vecmath.NormalizeL1(vector)
	if len(normalized) == 0 {
		return Weights{}
	}

	weights := make(Weights)
	for topic, value := range normalized {
		cats := ResolveTopic(topic)
		share := value / float64(len(cats))
		for _, id := range cats {
			weights[id] += share
		}
	}
	return vecmath.NormalizeL1(weights)
}

// Dominant returns the category with the largest weight, or "" when the map
// is empty. Ties break toward taxonomy order for determinism.
func Dominant(weights Weights) string {
	best := ""
	bestWeight := 0.0
	for _, cat := range Categories {
		if w, ok := weights[cat.ID]; ok && w > bestWeight {
			best = cat.ID
			bestWeight = w
		}
	}
	return best
}

// tokenize splits a normalized topic on non-alphanumeric boundaries.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
}

func dedup(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
