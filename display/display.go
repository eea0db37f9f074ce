// Package display pushes rendered boards to e-paper panels, or to an
// image file when no panel is around.
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
)

const (
	Model7in5V2  = "7in5v2"
	Model2in13V4 = "2in13v4"
	ModelFile    = "file"
)

var ErrUnknownModel = errors.New("unknown panel model")

// A monochrome panel of fixed geometry.
type Panel interface {
	// Size of the frames accepted by Push.
	Bounds() image.Rectangle

	// Shows img. Pixels darker than 50% gray are black.
	Push(img image.Image) error

	// Puts the panel in low power mode until the next Push.
	Sleep() error

	Close() error
}

// Frame size for a panel model. Unknown models get the large panel's.
func Size(model string) image.Rectangle {
	switch model {
	case Model2in13V4:
		return image.Rect(0, 0, 250, 122)
	}
	return image.Rect(0, 0, 800, 480)
}

// Opens the panel hardware.
func Open(model string) (Panel, error) {
	switch model {
	case Model7in5V2:
		return NewEPD7in5V2()
	case Model2in13V4:
		return NewEPD2in13V4()
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
}

// Opens the panel hardware. If that fails, frames are written to an
// image file at path instead.
func OpenOrFallback(model string, path string) Panel {
	if model == ModelFile {
		return NewFileSink(path, Size(model))
	}

	panel, err := Open(model)
	if err != nil {
		log.Warn().Err(err).
			Str("model", model).
			Str("path", path).
			Msg("Panel unavailable, writing to file")
		return NewFileSink(path, Size(model))
	}

	return panel
}

// Packs img into 1 bit per pixel, row-major, most significant bit
// first. Set bits are black. Rows are padded to whole bytes.
func Pack(img image.Image) []byte {
	b := img.Bounds()
	rowBytes := (b.Dx() + 7) / 8
	buf := make([]byte, rowBytes*b.Dy())

	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := buf[(y-b.Min.Y)*rowBytes:]
		for x := b.Min.X; x < b.Max.X; x++ {
			if isBlack(img.At(x, y)) {
				i := x - b.Min.X
				row[i/8] |= 0x80 >> uint(i%8)
			}
		}
	}

	return buf
}

func isBlack(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < 128
}

// Copies img into a frame of the given size, anchored top left.
// Anything outside img is white.
func fitFrame(img image.Image, bounds image.Rectangle) *image.Gray {
	frame := image.NewGray(bounds)
	for i := range frame.Pix {
		frame.Pix[i] = 255
	}

	src := img.Bounds()
	for y := 0; y < bounds.Dy() && y < src.Dy(); y++ {
		for x := 0; x < bounds.Dx() && x < src.Dx(); x++ {
			if isBlack(img.At(src.Min.X+x, src.Min.Y+y)) {
				frame.SetGray(bounds.Min.X+x, bounds.Min.Y+y, color.Gray{Y: 0})
			}
		}
	}

	return frame
}
