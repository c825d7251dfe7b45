package captcha

import (
	"image"

	"github.com/disintegration/imaging"
)

const (
	// DefaultThreshold is the red-channel cut-off tuned to the portal's captcha contrast
	DefaultThreshold = 90
	// DefaultMinComponentSize is the smallest blob kept as part of a glyph
	DefaultMinComponentSize = 40
)

// Denoiser binarizes raw captchas and strips salt-and-pepper speckles
type Denoiser struct {
	threshold        uint8
	minComponentSize int
}

// NewDenoiser creates a denoiser with the portal's fixed parameters
func NewDenoiser() *Denoiser {
	return &Denoiser{
		threshold:        DefaultThreshold,
		minComponentSize: DefaultMinComponentSize,
	}
}

// Denoise converts raw into a binary image without speckles
func (d *Denoiser) Denoise(raw image.Image) *Image {
	img := Binarize(raw, d.threshold)
	img.RemoveSpeckles(d.minComponentSize)
	return img
}

// Binarize maps every pixel to black when its red channel is below threshold
func Binarize(raw image.Image, threshold uint8) *Image {
	// Clone yields non-premultiplied 8-bit channels anchored at the origin
	src := imaging.Clone(raw)
	bounds := src.Bounds()
	img := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < img.height; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < img.width; x++ {
			img.Set(x, y, row[x*4] < threshold)
		}
	}
	return img
}

// Components returns the 8-connected black regions in row-major discovery order.
// Each black pixel belongs to exactly one component.
func (m *Image) Components() [][]image.Point {
	visited := make([]bool, len(m.black))
	var components [][]image.Point
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if !m.IsBlack(x, y) || visited[y*m.width+x] {
				continue
			}
			components = append(components, m.floodFill(x, y, visited))
		}
	}
	return components
}

// floodFill collects the component containing the seed, marking it visited
func (m *Image) floodFill(seedX, seedY int, visited []bool) []image.Point {
	visited[seedY*m.width+seedX] = true
	pixels := []image.Point{{X: seedX, Y: seedY}}
	for i := 0; i < len(pixels); i++ {
		p := pixels[i]
		for y := max(0, p.Y-1); y < min(m.height, p.Y+2); y++ {
			for x := max(0, p.X-1); x < min(m.width, p.X+2); x++ {
				j := y*m.width + x
				if m.black[j] && !visited[j] {
					visited[j] = true
					pixels = append(pixels, image.Point{X: x, Y: y})
				}
			}
		}
	}
	return pixels
}

// RemoveSpeckles whitens every component smaller than minSize and returns
// how many pixels were recoloured
func (m *Image) RemoveSpeckles(minSize int) int {
	removed := 0
	for _, component := range m.Components() {
		if len(component) >= minSize {
			continue
		}
		for _, p := range component {
			m.Set(p.X, p.Y, false)
		}
		removed += len(component)
	}
	return removed
}
