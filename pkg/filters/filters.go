package filters

import (
	"image"
)

// Built-in filter ids.
const (
	None      = "none"
	Grayscale = "grayscale"
	Sepia     = "sepia"
	Rio       = "rio"
)

// Identity returns its input unchanged. It is the transform behind the
// "none" filter.
func Identity(src *image.RGBA) *image.RGBA {
	return src
}

// GrayscaleTransform replaces each pixel's RGB channels with the ITU-R BT.601
// luminance Y = 0.299R + 0.587G + 0.114B.
func GrayscaleTransform(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		r := float64(src.Pix[i])
		g := float64(src.Pix[i+1])
		b := float64(src.Pix[i+2])
		y := uint8(0.299*r + 0.587*g + 0.114*b)
		dst.Pix[i] = y
		dst.Pix[i+1] = y
		dst.Pix[i+2] = y
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

// SepiaTransform remaps each pixel through the standard sepia color matrix,
// clamping each output channel to [0,255]. The result is a warm brown tone.
func SepiaTransform(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		r := float64(src.Pix[i])
		g := float64(src.Pix[i+1])
		b := float64(src.Pix[i+2])
		dst.Pix[i] = clamp(0.393*r + 0.769*g + 0.189*b)
		dst.Pix[i+1] = clamp(0.349*r + 0.686*g + 0.168*b)
		dst.Pix[i+2] = clamp(0.272*r + 0.534*g + 0.131*b)
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

// RioTransform applies a stylized purple/magenta tone: a luminance blend
// desaturates the pixel, then channel-specific gains tint it. Every step is
// clamped to the valid range.
func RioTransform(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	for i := 0; i < len(src.Pix); i += 4 {
		r := float64(src.Pix[i])
		g := float64(src.Pix[i+1])
		b := float64(src.Pix[i+2])
		gray := 0.299*r + 0.587*g + 0.114*b

		// Desaturate by blending toward luminance.
		r = clampF(gray*0.6 + r*0.7)
		g = clampF(gray*0.4 + g*0.5)
		b = clampF(gray*0.5 + b*0.6)

		// Tint: boost red and blue, pull green down.
		dst.Pix[i] = clamp(r * 1.15)
		dst.Pix[i+1] = clamp(g * 0.85)
		dst.Pix[i+2] = clamp(b * 1.2)
		dst.Pix[i+3] = src.Pix[i+3]
	}
	return dst
}

func clamp(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampF(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
