package captcha

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"
)

// Image is a binary pixel grid. The zero value of a pixel is white.
type Image struct {
	width, height int
	black         []bool
}

// NewImage creates an all-white image
func NewImage(width, height int) *Image {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Image{
		width:  width,
		height: height,
		black:  make([]bool, width*height),
	}
}

// Bounds returns the image rectangle anchored at the origin
func (m *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

// IsBlack reports the colour at x,y; pixels outside the image are white
func (m *Image) IsBlack(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.black[y*m.width+x]
}

// Set colours the pixel at x,y
func (m *Image) Set(x, y int, black bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	m.black[y*m.width+x] = black
}

// Gray renders the image as black text on white for the OCR engine
func (m *Image) Gray() *image.Gray {
	gray := image.NewGray(m.Bounds())
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			v := uint8(255)
			if m.black[y*m.width+x] {
				v = 0
			}
			gray.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return gray
}

// Save writes the image to path, the format follows the file extension
func (m *Image) Save(path string) error {
	return imaging.Save(m.Gray(), path)
}

// Decode reads a raw captcha in any format registered with imaging (png, jpeg, gif, bmp, tiff)
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode captcha: %w", err)
	}
	return img, nil
}
