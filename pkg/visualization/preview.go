// Package visualization renders inspection output for pipeline runs:
// windowed slice images, mask contour overlays and the slice area profile
// chart that shows a segmentation's shape at a glance.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"liverextract/pkg/volume"
)

// previewWidth is the width preview images are resized to before saving.
const previewWidth = 512

// Previewer renders 2D views of a volume with intensities windowed to the
// volume's own range.
type Previewer struct {
	// vol is the volume being rendered
	vol *volume.Volume

	// lo and hi bound the display window
	lo float64
	hi float64
}

// NewPreviewer creates a previewer windowing the full intensity range of
// the given volume.
func NewPreviewer(vol *volume.Volume) *Previewer {
	lo, hi := vol.MinMax()
	return &Previewer{vol: vol, lo: lo, hi: hi}
}

// gray maps an intensity into the display window.
func (p *Previewer) gray(s float64) uint8 {
	if p.hi <= p.lo {
		return 0
	}
	v := (s - p.lo) / (p.hi - p.lo) * 255
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// SliceImage renders one slice along the given axis. Axis x yields a
// depth by height image, axis y a width by depth image and axis z the
// familiar width by height axial view.
func (p *Previewer) SliceImage(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		if position >= p.vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, p.vol.Width)
		}
		img = image.NewGray(image.Rect(0, 0, p.vol.Depth, p.vol.Height))
		for y := 0; y < p.vol.Height; y++ {
			for z := 0; z < p.vol.Depth; z++ {
				img.SetGray(z, y, color.Gray{Y: p.gray(p.vol.At(position, y, z))})
			}
		}

	case "y", "Y":
		if position >= p.vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, p.vol.Height)
		}
		img = image.NewGray(image.Rect(0, 0, p.vol.Width, p.vol.Depth))
		for z := 0; z < p.vol.Depth; z++ {
			for x := 0; x < p.vol.Width; x++ {
				img.SetGray(x, z, color.Gray{Y: p.gray(p.vol.At(x, position, z))})
			}
		}

	case "z", "Z":
		if position >= p.vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, p.vol.Depth)
		}
		img = image.NewGray(image.Rect(0, 0, p.vol.Width, p.vol.Height))
		for y := 0; y < p.vol.Height; y++ {
			for x := 0; x < p.vol.Width; x++ {
				img.SetGray(x, y, color.Gray{Y: p.gray(p.vol.At(x, y, position))})
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SavePNG writes an image as PNG, resized to the standard preview width
// with the aspect ratio kept.
func SavePNG(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("creating preview directory: %w", err)
	}

	if img.Bounds().Dx() != previewWidth {
		img = imaging.Resize(img, previewWidth, 0, imaging.Lanczos)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating preview file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encoding preview %s: %w", filename, err)
	}
	return nil
}

// SaveSlicePNG renders the axial slice at z and writes it as PNG.
func SaveSlicePNG(vol *volume.Volume, z int, filename string) error {
	img, err := NewPreviewer(vol).SliceImage("z", z)
	if err != nil {
		return err
	}
	return SavePNG(img, filename)
}

// SaveOverlayPNG renders the axial slice at z with the in-plane boundary of
// the mask drawn in red on top of the windowed intensities.
func SaveOverlayPNG(vol, mask *volume.Volume, z int, filename string) error {
	if vol.Width != mask.Width || vol.Height != mask.Height || vol.Depth != mask.Depth {
		return fmt.Errorf("overlay: volume is %dx%dx%d but mask is %dx%dx%d",
			vol.Width, vol.Height, vol.Depth, mask.Width, mask.Height, mask.Depth)
	}

	base, err := NewPreviewer(vol).SliceImage("z", z)
	if err != nil {
		return err
	}

	img := image.NewRGBA(base.Bounds())
	for y := 0; y < vol.Height; y++ {
		for x := 0; x < vol.Width; x++ {
			g := base.GrayAt(x, y).Y
			img.Set(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}

	red := color.RGBA{R: 220, G: 30, B: 30, A: 255}
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			if mask.At(x, y, z) == 0 {
				continue
			}
			if x == 0 || x == mask.Width-1 || y == 0 || y == mask.Height-1 ||
				mask.At(x-1, y, z) == 0 || mask.At(x+1, y, z) == 0 ||
				mask.At(x, y-1, z) == 0 || mask.At(x, y+1, z) == 0 {
				img.Set(x, y, red)
			}
		}
	}

	return SavePNG(img, filename)
}
