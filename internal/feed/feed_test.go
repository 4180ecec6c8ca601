package feed

import (
	"fmt"
	"testing"

	"github.com/halcyonvr/resonance/internal/profile"
	"github.com/halcyonvr/resonance/internal/vecmath"
)

type fakeContent struct {
	items []ContentItem
	err   error
}

func (f *fakeContent) ListContent() ([]ContentItem, error) { return f.items, f.err }

type fakeFriends map[string]bool

func (f fakeFriends) IsFriend(viewerID, authorID string) bool {
	return f[viewerID+"|"+authorID]
}

type fakePrefs map[string]bool

func (f fakePrefs) AllowsSensitive(userID string) bool { return f[userID] }

func testRanker(t *testing.T, items []ContentItem) (*Ranker, *profile.Store) {
	t.Helper()
	profiles := profile.NewStore()
	r := NewRanker(profiles, &fakeContent{items: items}, fakeFriends{}, fakePrefs{})
	return r, profiles
}

func publicItem(id string, vec vecmath.Vector, publishedAt int64) ContentItem {
	return ContentItem{
		ID:             id,
		AuthorID:       "author-" + id,
		Visibility:     VisibilityPublic,
		PublishedAt:    publishedAt,
		InterestVector: vec,
	}
}

func TestFeedQuota(t *testing.T) {
	var items []ContentItem
	for i := 0; i < 60; i++ {
		items = append(items, publicItem(fmt.Sprintf("sim-%d", i), vecmath.Vector{"art": 1}, int64(1000+i)))
	}
	for i := 0; i < 40; i++ {
		items = append(items, publicItem(fmt.Sprintf("far-%d", i), vecmath.Vector{"news": 1}, int64(2000+i)))
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeResonant, Limit: 20, CuriosityRatio: 0.2})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}

	if len(entries) != 20 {
		t.Fatalf("feed length = %d, want 20", len(entries))
	}
	boosted := 0
	for _, e := range entries {
		if e.CuriosityBoosted {
			boosted++
			if e.Label != LabelExploratory {
				t.Errorf("curiosity pick %s label = %s, want exploratory", e.Content.ID, e.Label)
			}
		}
	}
	if boosted != 4 {
		t.Errorf("curiosity picks = %d, want 4", boosted)
	}
}

func TestFeedDeterministic(t *testing.T) {
	var items []ContentItem
	for i := 0; i < 30; i++ {
		vec := vecmath.Vector{"art": 1}
		if i%3 == 0 {
			vec = vecmath.Vector{"news": 1}
		}
		items = append(items, publicItem(fmt.Sprintf("c-%d", i), vec, int64(5000+i*17)))
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	opts := Options{Mode: ModeResonant, Limit: 10, CuriosityRatio: 0.3}
	first, err := r.FeedForUser("u1", opts)
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}
	second, err := r.FeedForUser("u1", opts)
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Content.ID != second[i].Content.ID {
			t.Fatalf("position %d: %s vs %s, ranking not deterministic", i, first[i].Content.ID, second[i].Content.ID)
		}
	}
}

func TestFeedModeAllSortsByRecency(t *testing.T) {
	items := []ContentItem{
		publicItem("old", vecmath.Vector{"art": 1}, 100),
		publicItem("new", vecmath.Vector{"news": 1}, 300),
		publicItem("mid", vecmath.Vector{"art": 1}, 200),
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeAll, Limit: 10})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}

	want := []string{"new", "mid", "old"}
	if len(entries) != 3 {
		t.Fatalf("feed length = %d, want 3", len(entries))
	}
	for i, id := range want {
		if entries[i].Content.ID != id {
			t.Errorf("position %d = %s, want %s", i, entries[i].Content.ID, id)
		}
		if entries[i].CuriosityBoosted {
			t.Errorf("mode=all must not inject curiosity picks")
		}
	}
}

func TestFeedExploratoryPrimaryFill(t *testing.T) {
	var items []ContentItem
	for i := 0; i < 20; i++ {
		items = append(items, publicItem(fmt.Sprintf("sim-%d", i), vecmath.Vector{"art": 1}, int64(1000+i)))
	}
	for i := 0; i < 20; i++ {
		items = append(items, publicItem(fmt.Sprintf("far-%d", i), vecmath.Vector{"news": 1}, int64(3000+i)))
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeExploratory, Limit: 10, CuriosityRatio: 0.2})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}
	if len(entries) != 10 {
		t.Fatalf("feed length = %d, want 10", len(entries))
	}

	// Exploratory mode uses the curiosity count as its primary fill size:
	// 2 low-affinity primaries, then 2 boosted picks from the resonant pool,
	// then backfill.
	if entries[0].Similarity >= partitionThreshold || entries[1].Similarity >= partitionThreshold {
		t.Errorf("primary fill should come from the exploratory pool")
	}
	if !entries[2].CuriosityBoosted || !entries[3].CuriosityBoosted {
		t.Errorf("positions 2 and 3 should be curiosity picks")
	}
}

func TestFeedVisibility(t *testing.T) {
	items := []ContentItem{
		{ID: "pub", AuthorID: "a", Visibility: VisibilityPublic, InterestVector: vecmath.Vector{"art": 1}},
		{ID: "priv-own", AuthorID: "u1", Visibility: VisibilityPrivate, InterestVector: vecmath.Vector{"art": 1}},
		{ID: "priv-other", AuthorID: "a", Visibility: VisibilityPrivate, InterestVector: vecmath.Vector{"art": 1}},
		{ID: "friends-yes", AuthorID: "pal", Visibility: VisibilityFriends, InterestVector: vecmath.Vector{"art": 1}},
		{ID: "friends-no", AuthorID: "stranger", Visibility: VisibilityFriends, InterestVector: vecmath.Vector{"art": 1}},
	}

	profiles := profile.NewStore()
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)
	friends := fakeFriends{"u1|pal": true}
	r := NewRanker(profiles, &fakeContent{items: items}, friends, fakePrefs{})

	entries, err := r.FeedForUser("u1", Options{Mode: ModeAll, Limit: 10})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}

	got := map[string]bool{}
	for _, e := range entries {
		got[e.Content.ID] = true
	}
	for _, id := range []string{"pub", "priv-own", "friends-yes"} {
		if !got[id] {
			t.Errorf("expected %s in feed", id)
		}
	}
	for _, id := range []string{"priv-other", "friends-no"} {
		if got[id] {
			t.Errorf("%s should be filtered out", id)
		}
	}
}

func TestFeedSensitiveFilter(t *testing.T) {
	items := []ContentItem{
		{ID: "safe", AuthorID: "a", Visibility: VisibilityPublic, InterestVector: vecmath.Vector{"art": 1}},
		{ID: "flagged", AuthorID: "a", Visibility: VisibilityPublic, Sensitive: true, InterestVector: vecmath.Vector{"art": 1}},
	}

	profiles := profile.NewStore()
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)
	profiles.RecordInteraction("u2", vecmath.Vector{"art": 1}, 0.5, 0)
	prefs := fakePrefs{"u2": true}
	r := NewRanker(profiles, &fakeContent{items: items}, fakeFriends{}, prefs)

	entries, _ := r.FeedForUser("u1", Options{Mode: ModeAll, Limit: 10})
	if len(entries) != 1 || entries[0].Content.ID != "safe" {
		t.Errorf("u1 should only see safe content, got %d entries", len(entries))
	}

	entries, _ = r.FeedForUser("u2", Options{Mode: ModeAll, Limit: 10})
	if len(entries) != 2 {
		t.Errorf("u2 opted in, expected 2 entries, got %d", len(entries))
	}
}

func TestFeedLabels(t *testing.T) {
	items := []ContentItem{
		publicItem("close", vecmath.Vector{"art": 1}, 100),
		publicItem("far", vecmath.Vector{"news": 1}, 200),
		publicItem("mixed", vecmath.Vector{"art": 1, "news": 2}, 300),
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.9, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeAll, Limit: 10})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}

	labels := map[string]Label{}
	for _, e := range entries {
		labels[e.Content.ID] = e.Label
	}
	if labels["close"] != LabelResonant {
		t.Errorf("close label = %s, want resonant", labels["close"])
	}
	if labels["far"] != LabelExploratory {
		t.Errorf("far label = %s, want exploratory", labels["far"])
	}
	if labels["mixed"] != LabelNeutral {
		t.Errorf("mixed label = %s, want neutral", labels["mixed"])
	}
}

func TestFeedBackfill(t *testing.T) {
	// Only similar items: the exploratory pool is empty, so the curiosity
	// slot backfills from the ranked pool and the feed still hits baseCount.
	var items []ContentItem
	for i := 0; i < 10; i++ {
		items = append(items, publicItem(fmt.Sprintf("sim-%d", i), vecmath.Vector{"art": 1}, int64(1000+i)))
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeResonant, Limit: 10, CuriosityRatio: 0.2})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("feed length = %d, want 10 via backfill", len(entries))
	}
	for _, e := range entries {
		if e.CuriosityBoosted {
			t.Errorf("no exploratory candidates exist; %s should not be boosted", e.Content.ID)
		}
	}
}

func TestFeedEmptyPool(t *testing.T) {
	r, profiles := testRanker(t, nil)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	entries, err := r.FeedForUser("u1", Options{Mode: ModeResonant})
	if err != nil {
		t.Fatalf("FeedForUser: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty feed, got %d entries", len(entries))
	}
}

func TestFeedEndToEnd(t *testing.T) {
	items := []ContentItem{
		publicItem("art-item", vecmath.Vector{"art": 1}, 2000),
		publicItem("news-item", vecmath.Vector{"news": 1}, 1000),
	}

	r, profiles := testRanker(t, items)
	profiles.RecordInteraction("u1", vecmath.Vector{"art": 1}, 0.5, 0)

	v := profiles.InterestVector("u1", true, 0)
	if v["art"] != 0.5 {
		t.Fatalf("interest art = %f, want 0.5 with no decay elapsed", v["art"])
	}

	// mode=all: art item first because it is more recent.
	entries, _ := r.FeedForUser("u1", Options{Mode: ModeAll, Limit: 10})
	if entries[0].Content.ID != "art-item" {
		t.Errorf("mode=all first = %s, want art-item (more recent)", entries[0].Content.ID)
	}

	// mode=resonant: art item first by similarity regardless of recency.
	entries, _ = r.FeedForUser("u1", Options{Mode: ModeResonant, Limit: 10})
	if entries[0].Content.ID != "art-item" {
		t.Errorf("mode=resonant first = %s, want art-item (similar)", entries[0].Content.ID)
	}
}
