package color

import (
	"fmt"
	"math"
)

// D65 reference white point.
const (
	whiteX = 0.95047
	whiteY = 1.00000
	whiteZ = 1.08883
)

// LAB is a point in CIE L*a*b* space.
type LAB struct {
	L, A, B float64
}

// srgbToLinear applies the standard sRGB gamma expansion to a channel in [0,1].
func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// linearToSRGB applies the inverse gamma compression.
func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

func labFInv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

// RGBToLAB converts 8-bit sRGB to CIE L*a*b* under D65.
func RGBToLAB(r, g, b uint8) LAB {
	rl := srgbToLinear(float64(r) / 255.0)
	gl := srgbToLinear(float64(g) / 255.0)
	bl := srgbToLinear(float64(b) / 255.0)

	// sRGB to XYZ (D65)
	x := 0.4124564*rl + 0.3575761*gl + 0.1804375*bl
	y := 0.2126729*rl + 0.7151522*gl + 0.0721750*bl
	z := 0.0193339*rl + 0.1191920*gl + 0.9503041*bl

	fx := labF(x / whiteX)
	fy := labF(y / whiteY)
	fz := labF(z / whiteZ)

	return LAB{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// LABToRGB converts CIE L*a*b* back to 8-bit sRGB, clamping out-of-gamut
// values to the displayable range.
func LABToRGB(lab LAB) (uint8, uint8, uint8) {
	fy := (lab.L + 16) / 116
	fx := fy + lab.A/500
	fz := fy - lab.B/200

	x := whiteX * labFInv(fx)
	y := whiteY * labFInv(fy)
	z := whiteZ * labFInv(fz)

	// XYZ to linear sRGB (D65)
	rl := 3.2404542*x - 1.5371385*y - 0.4985314*z
	gl := -0.9692660*x + 1.8760108*y + 0.0415560*z
	bl := 0.0556434*x - 0.2040259*y + 1.0572252*z

	return clampChannel(linearToSRGB(rl)), clampChannel(linearToSRGB(gl)), clampChannel(linearToSRGB(bl))
}

func clampChannel(c float64) uint8 {
	v := math.Round(c * 255)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// DeltaE is the Euclidean distance between two LAB points (CIE76), the
// clustering and merge metric.
func DeltaE(a, b LAB) float64 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return math.Sqrt(dl*dl + da*da + db*db)
}

// Chroma is the colorfulness of a LAB point: distance from the neutral axis.
func Chroma(lab LAB) float64 {
	return math.Hypot(lab.A, lab.B)
}

// HueDegrees returns the LAB hue angle in [0, 360).
func HueDegrees(lab LAB) float64 {
	deg := math.Atan2(lab.B, lab.A) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}

// HexRGB formats an RGB triple as uppercase #RRGGBB.
func HexRGB(r, g, b uint8) string {
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}
