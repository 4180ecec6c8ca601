package palette

import "testing"

func TestParseHexRoundTrip(t *testing.T) {
	cases := []string{"#ff0000", "#0a1b2c", "#ffffff", "#000000"}
	for _, s := range cases {
		c, err := ParseHex(s)
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", s, err)
		}
		if c.Hex() != s {
			t.Errorf("round trip %q -> %q", s, c.Hex())
		}
	}
}

func TestParseHexNoPrefix(t *testing.T) {
	c, err := ParseHex("336699")
	if err != nil {
		t.Fatalf("ParseHex: %v", err)
	}
	if c.Hex() != "#336699" {
		t.Errorf("Hex = %q, want #336699", c.Hex())
	}
}

func TestParseHexInvalid(t *testing.T) {
	for _, s := range []string{"", "#fff", "#gggggg", "#12345"} {
		if _, err := ParseHex(s); err == nil {
			t.Errorf("ParseHex(%q): expected error", s)
		}
	}
}

func TestLerp(t *testing.T) {
	a := Color{R: 0, G: 0, B: 0}
	b := Color{R: 200, G: 100, B: 50}

	mid := Lerp(a, b, 0.5)
	if mid.R != 100 || mid.G != 50 || mid.B != 25 {
		t.Errorf("Lerp midpoint = %+v", mid)
	}

	if got := Lerp(a, b, 0); got != a {
		t.Errorf("Lerp t=0 = %+v, want start", got)
	}
	if got := Lerp(a, b, 1); got != b {
		t.Errorf("Lerp t=1 = %+v, want target", got)
	}
}

func TestBlend(t *testing.T) {
	colors := []Color{{R: 255, G: 0, B: 0}, {R: 0, G: 0, B: 255}}

	even := Blend(colors, []float64{0.5, 0.5})
	if even.R != 128 || even.B != 128 || even.G != 0 {
		t.Errorf("even blend = %+v", even)
	}

	// Zero-weight colors contribute nothing
	solo := Blend(colors, []float64{1, 0})
	if solo != colors[0] {
		t.Errorf("solo blend = %+v, want %+v", solo, colors[0])
	}
}

func TestBlendEmpty(t *testing.T) {
	if got := Blend(nil, nil); got != Default {
		t.Errorf("empty blend = %+v, want Default", got)
	}
	if got := Blend([]Color{{R: 1}}, []float64{0}); got != Default {
		t.Errorf("zero-weight blend = %+v, want Default", got)
	}
}
