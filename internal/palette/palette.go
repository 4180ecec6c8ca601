// Package palette provides the small RGB color model used by the resonance
// engine: hex parsing, linear interpolation, and weighted blending.
package palette

import (
	"fmt"
	"math"
	"strings"
)

// Color is an RGB triple with 8-bit channels.
type Color struct {
	R, G, B uint8
}

// Default is the presence color used when no resonance signal exists yet.
var Default = Color{R: 0x8a, G: 0x8f, B: 0x98}

// ParseHex parses a "#rrggbb" (or "rrggbb") string.
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("parse color %q: want 6 hex digits", s)
	}
	var c Color
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return Color{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return c, nil
}

// MustHex parses a hex color and panics on failure. For static palettes.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Lerp advances c toward target by fraction t in [0,1] per channel.
func Lerp(c, target Color, t float64) Color {
	if t <= 0 {
		return c
	}
	if t >= 1 {
		return target
	}
	return Color{
		R: lerpChannel(c.R, target.R, t),
		G: lerpChannel(c.G, target.G, t),
		B: lerpChannel(c.B, target.B, t),
	}
}

func lerpChannel(a, b uint8, t float64) uint8 {
	v := float64(a) + (float64(b)-float64(a))*t
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

// Blend mixes colors by weight in RGB space. Weights need not sum to 1;
// zero total weight yields the Default color.
func Blend(colors []Color, weights []float64) Color {
	var r, g, b, total float64
	for i, c := range colors {
		if i >= len(weights) || weights[i] <= 0 {
			continue
		}
		w := weights[i]
		r += float64(c.R) * w
		g += float64(c.G) * w
		b += float64(c.B) * w
		total += w
	}
	if total == 0 {
		return Default
	}
	return Color{
		R: uint8(math.Round(r / total)),
		G: uint8(math.Round(g / total)),
		B: uint8(math.Round(b / total)),
	}
}
