package color

import (
	"math"
	"testing"
)

func TestRGBToLABKnownValues(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b uint8
		wantL   float64
	}{
		{"black", 0, 0, 0, 0},
		{"white", 255, 255, 255, 100},
		{"red", 255, 0, 0, 53.24},
		{"green", 0, 255, 0, 87.73},
		{"blue", 0, 0, 255, 32.30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lab := RGBToLAB(tt.r, tt.g, tt.b)
			if math.Abs(lab.L-tt.wantL) > 0.1 {
				t.Errorf("L = %.2f, want %.2f", lab.L, tt.wantL)
			}
		})
	}
}

func TestLABRoundTrip(t *testing.T) {
	colors := []struct{ r, g, b uint8 }{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 64, 32}, {17, 203, 99}, {240, 240, 239},
	}

	for _, c := range colors {
		lab := RGBToLAB(c.r, c.g, c.b)
		r, g, b := LABToRGB(lab)
		// Round-tripping through floating point may drift one step per channel.
		if absDiff(r, c.r) > 1 || absDiff(g, c.g) > 1 || absDiff(b, c.b) > 1 {
			t.Errorf("round trip (%d,%d,%d) -> (%d,%d,%d)", c.r, c.g, c.b, r, g, b)
		}
	}
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestDeltaE(t *testing.T) {
	a := RGBToLAB(255, 0, 0)
	if d := DeltaE(a, a); d != 0 {
		t.Errorf("DeltaE(a, a) = %f, want 0", d)
	}

	b := RGBToLAB(0, 0, 255)
	if d := DeltaE(a, b); d < 50 {
		t.Errorf("DeltaE(red, blue) = %f, expected a large distance", d)
	}
	if DeltaE(a, b) != DeltaE(b, a) {
		t.Error("DeltaE is not symmetric")
	}
}

func TestHueDegreesRange(t *testing.T) {
	for _, c := range []struct{ r, g, b uint8 }{
		{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {255, 255, 0}, {128, 0, 255},
	} {
		hue := HueDegrees(RGBToLAB(c.r, c.g, c.b))
		if hue < 0 || hue >= 360 {
			t.Errorf("hue for (%d,%d,%d) = %f, want [0,360)", c.r, c.g, c.b, hue)
		}
	}
}

func TestHexRGB(t *testing.T) {
	tests := []struct {
		r, g, b uint8
		want    string
	}{
		{255, 0, 0, "#FF0000"},
		{0, 0, 0, "#000000"},
		{255, 255, 255, "#FFFFFF"},
		{18, 52, 86, "#123456"},
		{171, 205, 239, "#ABCDEF"},
	}
	for _, tt := range tests {
		if got := HexRGB(tt.r, tt.g, tt.b); got != tt.want {
			t.Errorf("HexRGB(%d,%d,%d) = %s, want %s", tt.r, tt.g, tt.b, got, tt.want)
		}
	}
}
