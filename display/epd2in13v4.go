package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/devices/v3/waveshare2in13v4"
	"periph.io/x/host/v3"
)

// Waveshare 2.13" V4 HAT. The panel is portrait (122x250) but takes
// landscape frames, which are rotated before drawing.
type EPD2in13V4 struct {
	dev    *waveshare2in13v4.Dev
	port   spi.PortCloser
	asleep bool
}

func NewEPD2in13V4() (*EPD2in13V4, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initializing host: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("opening SPI port: %w", err)
	}

	opts := waveshare2in13v4.EPD2in13v4
	dev, err := waveshare2in13v4.NewHat(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("opening panel: %w", err)
	}

	if err := dev.Init(); err != nil {
		port.Close()
		return nil, fmt.Errorf("initializing panel: %w", err)
	}
	if err := dev.Clear(color.White); err != nil {
		port.Close()
		return nil, fmt.Errorf("clearing panel: %w", err)
	}

	return &EPD2in13V4{
		dev:  dev,
		port: port,
	}, nil
}

func (d *EPD2in13V4) Bounds() image.Rectangle {
	native := d.dev.Bounds()
	return image.Rect(0, 0, native.Dy(), native.Dx())
}

func (d *EPD2in13V4) Push(img image.Image) error {
	if d.asleep {
		if err := d.dev.Init(); err != nil {
			return fmt.Errorf("waking panel: %w", err)
		}
		d.asleep = false
	}

	native := d.dev.Bounds()
	portrait := landscapeToPortrait(fitFrame(img, d.Bounds()))

	buf := image1bit.NewVerticalLSB(native)
	draw.Draw(buf, buf.Bounds(), portrait, image.Point{}, draw.Src)

	if err := d.dev.Draw(native, buf, image.Point{}); err != nil {
		return fmt.Errorf("drawing: %w", err)
	}
	return nil
}

func (d *EPD2in13V4) Sleep() error {
	if d.asleep {
		return nil
	}
	if err := d.dev.Sleep(); err != nil {
		return fmt.Errorf("sleeping: %w", err)
	}
	d.asleep = true
	return nil
}

func (d *EPD2in13V4) Close() error {
	return errors.Join(d.Sleep(), d.dev.Halt(), d.port.Close())
}

// Rotates a landscape frame 90 degrees clockwise.
func landscapeToPortrait(src *image.Gray) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			dst.SetGray(x, y, src.GrayAt(y, h-1-x))
		}
	}
	return dst
}
