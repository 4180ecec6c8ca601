package resonance

import (
	"math"
	"testing"

	"github.com/halcyonvr/resonance/internal/palette"
	"github.com/halcyonvr/resonance/internal/taxonomy"
	"github.com/halcyonvr/resonance/internal/vecmath"
)

type fakePresence struct {
	colors map[string]palette.Color
	pushes int
}

func newFakePresence() *fakePresence {
	return &fakePresence{colors: make(map[string]palette.Color)}
}

func (f *fakePresence) PresenceColor(userID string) (palette.Color, bool) {
	c, ok := f.colors[userID]
	return c, ok
}

func (f *fakePresence) SetPresenceColor(userID string, c palette.Color) {
	f.colors[userID] = c
	f.pushes++
}

func weightsSum(w taxonomy.Weights) float64 {
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum
}

func TestCompositeNormalized(t *testing.T) {
	e := NewEngine(newFakePresence())

	sequences := []struct {
		weights taxonomy.Weights
		at      int64
	}{
		{taxonomy.Weights{"art": 1}, 0},
		{taxonomy.Weights{"music": 0.5, "news": 0.5}, 60_000},
		{taxonomy.Weights{"science": 2}, 600_000},
		{taxonomy.Weights{"comedy": 0.1}, 7_200_000},
	}
	for _, s := range sequences {
		res := e.RegisterCategoryWeights("u1", s.weights, 1, s.at)
		sum := weightsSum(res.Weights)
		if sum != 0 && (sum < 0.999 || sum > 1.001) {
			t.Fatalf("composite sum = %f after %v, want ~1", sum, s.weights)
		}
	}
}

func TestDominantCategory(t *testing.T) {
	e := NewEngine(newFakePresence())

	res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 0.8, "news": 0.2}, 1, 0)
	if res.DominantCategory != "art" {
		t.Errorf("dominant = %q, want art", res.DominantCategory)
	}
}

func TestUnknownCategoriesIgnored(t *testing.T) {
	e := NewEngine(newFakePresence())

	res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 0.5, "blorp": 0.5}, 1, 0)
	if _, ok := res.Weights["blorp"]; ok {
		t.Error("unknown category leaked into composite")
	}
	if res.DominantCategory != "art" {
		t.Errorf("dominant = %q, want art", res.DominantCategory)
	}
}

func TestEmptyWeightsNoOp(t *testing.T) {
	e := NewEngine(newFakePresence())

	before := e.RegisterCategoryWeights("u1", taxonomy.Weights{"music": 1}, 1, 0)
	after := e.RegisterCategoryWeights("u1", taxonomy.Weights{}, 1, 1000)

	if after.Color != before.Color {
		t.Errorf("empty weights changed color: %v -> %v", before.Color, after.Color)
	}
	if after.DominantCategory != before.DominantCategory {
		t.Errorf("empty weights changed dominant: %q -> %q", before.DominantCategory, after.DominantCategory)
	}
}

func TestColorMovesTowardDominantBase(t *testing.T) {
	e := NewEngine(newFakePresence())

	base := taxonomy.ByID("music").BaseColor
	var last palette.Color
	for i := 0; i < 30; i++ {
		res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"music": 1}, 1.5, int64(i))
		last = res.Color
	}

	// Repeated max-intensity engagement converges on the base color.
	if dist(last, base) > 3 {
		t.Errorf("color %v did not converge to music base %v", last, base)
	}
}

func dist(a, b palette.Color) float64 {
	dr := float64(a.R) - float64(b.R)
	dg := float64(a.G) - float64(b.G)
	db := float64(a.B) - float64(b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

func TestIntensityScalesStep(t *testing.T) {
	weak := NewEngine(newFakePresence())
	strong := NewEngine(newFakePresence())

	w := weak.RegisterCategoryWeights("u1", taxonomy.Weights{"news": 1}, 0.05, 0)
	s := strong.RegisterCategoryWeights("u1", taxonomy.Weights{"news": 1}, 1.5, 0)

	base := taxonomy.ByID("news").BaseColor
	if dist(s.Color, base) >= dist(w.Color, base) {
		t.Errorf("high intensity should land closer to target: weak %v strong %v", w.Color, s.Color)
	}
}

func TestLockedColorStable(t *testing.T) {
	e := NewEngine(newFakePresence())

	locked := palette.MustHex("#123456")
	e.SyncManualPreferences("u1", ModeLocked, &locked)

	for i := 0; i < 10; i++ {
		res := e.RegisterInterestEngagement("u1", vecmath.Vector{"painting": 1}, 1.5, int64(i*1000))
		if res.Color != locked {
			t.Fatalf("locked color drifted to %v", res.Color)
		}
		// Weights keep tracking for dominant bookkeeping.
		if res.DominantCategory != "art" {
			t.Errorf("dominant = %q, want art while locked", res.DominantCategory)
		}
	}
}

func TestUnlockResumesDynamic(t *testing.T) {
	presence := newFakePresence()
	e := NewEngine(presence)

	locked := palette.MustHex("#123456")
	e.SyncManualPreferences("u1", ModeLocked, &locked)
	e.RegisterCategoryWeights("u1", taxonomy.Weights{"music": 1}, 1, 0)

	e.SyncManualPreferences("u1", ModeDynamic, nil)
	res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"music": 1}, 1.5, 1000)
	if res.Color == locked {
		t.Error("color still pinned after switching back to dynamic")
	}
}

func TestPresenceSeedAndPush(t *testing.T) {
	presence := newFakePresence()
	seed := palette.MustHex("#102030")
	presence.colors["u1"] = seed

	e := NewEngine(presence)
	res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 1}, 1, 0)

	// The first step lerps away from the stored presence color...
	if res.Color == seed {
		t.Error("expected color to move off the seed")
	}
	// ...and the new color lands back in the registry.
	if presence.colors["u1"] != res.Color {
		t.Errorf("presence = %v, want pushed color %v", presence.colors["u1"], res.Color)
	}
	if presence.pushes == 0 {
		t.Error("expected a presence push")
	}
}

func TestLockedSkipsPresencePush(t *testing.T) {
	presence := newFakePresence()
	e := NewEngine(presence)

	locked := palette.MustHex("#abcdef")
	e.SyncManualPreferences("u1", ModeLocked, &locked)
	pushesAfterLock := presence.pushes

	e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 1}, 1, 0)
	if presence.pushes != pushesAfterLock {
		t.Error("engagement must not push presence while locked")
	}
}

func TestBaselineKeepsMemory(t *testing.T) {
	e := NewEngine(newFakePresence())

	e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 1}, 1, 0)

	// An hour later the recent signal has decayed through ten half-lives;
	// the slower baseline still remembers art.
	res := e.RegisterCategoryWeights("u1", taxonomy.Weights{"news": 1}, 1, 3_600_000)
	if res.DominantCategory != "news" {
		t.Errorf("dominant = %q, want news", res.DominantCategory)
	}
	if res.Weights["art"] <= 0 {
		t.Error("baseline memory of art lost after one hour")
	}
}

func TestRegisterContentPulse(t *testing.T) {
	e := NewEngine(newFakePresence())

	p := e.RegisterContentPulse("u1", "comedy", 0, 1000)
	if p == nil {
		t.Fatal("expected a pulse")
	}
	if p.Duration != DefaultPulseDuration {
		t.Errorf("duration = %d, want default %d", p.Duration, DefaultPulseDuration)
	}
	if p.ID == "" {
		t.Error("pulse id missing")
	}

	if got := e.RegisterContentPulse("u1", "blorp", 0, 1000); got != nil {
		t.Error("unknown category should not create a pulse")
	}
}

func TestPulsePruning(t *testing.T) {
	e := NewEngine(newFakePresence())

	e.RegisterContentPulse("u1", "art", 500, 0)
	e.RegisterContentPulse("u1", "music", 5000, 0)

	// The first pulse expires at 500; the next mutating call prunes it.
	e.RegisterContentPulse("u1", "news", 1000, 600)

	view := e.State("u1", 600)
	if len(view.Pulses) != 2 {
		t.Fatalf("live pulses = %d, want 2", len(view.Pulses))
	}
	for _, p := range view.Pulses {
		if p.Category == "art" {
			t.Error("expired art pulse survived pruning")
		}
	}
}

func TestStateUnknownUser(t *testing.T) {
	e := NewEngine(newFakePresence())

	view := e.State("ghost", 0)
	if view.Color != palette.Default.Hex() {
		t.Errorf("color = %s, want default %s", view.Color, palette.Default.Hex())
	}
	if view.Mode != ModeDynamic {
		t.Errorf("mode = %s, want dynamic", view.Mode)
	}
	if len(view.Pulses) != 0 || len(view.Weights) != 0 {
		t.Error("expected empty weights and pulses")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	e := NewEngine(newFakePresence())

	e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 0.7, "music": 0.3}, 1, 1234)
	locked := palette.MustHex("#445566")
	e.SyncManualPreferences("u1", ModeLocked, &locked)

	snap, ok := e.Snapshot("u1")
	if !ok {
		t.Fatal("Snapshot: not found")
	}

	restored := NewEngine(newFakePresence())
	restored.Restore(snap)

	a := e.State("u1", 1234)
	b := restored.State("u1", 1234)
	if a.Color != b.Color {
		t.Errorf("color %s != %s", b.Color, a.Color)
	}
	if a.Mode != b.Mode {
		t.Errorf("mode %s != %s", b.Mode, a.Mode)
	}
	if a.DominantCategory != b.DominantCategory {
		t.Errorf("dominant %q != %q", b.DominantCategory, a.DominantCategory)
	}
	for cat, w := range a.Weights {
		if math.Abs(b.Weights[cat]-w) > 1e-9 {
			t.Errorf("%s weight %f != %f", cat, b.Weights[cat], w)
		}
	}
}

func TestRemove(t *testing.T) {
	e := NewEngine(newFakePresence())

	e.RegisterCategoryWeights("u1", taxonomy.Weights{"art": 1}, 1, 0)
	e.Remove("u1")

	if _, ok := e.Snapshot("u1"); ok {
		t.Error("entry survived Remove")
	}
}
