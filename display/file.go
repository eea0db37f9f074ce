package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/bmp"
)

// Writes every frame to an image file, replacing the previous one.
// The format follows the file extension: .png or .bmp.
type FileSink struct {
	Path string

	bounds image.Rectangle
}

func NewFileSink(path string, bounds image.Rectangle) *FileSink {
	return &FileSink{
		Path:   path,
		bounds: bounds,
	}
}

func (f *FileSink) Bounds() image.Rectangle {
	return f.bounds
}

func (f *FileSink) Push(img image.Image) error {
	frame := fitFrame(img, f.bounds)

	var encode func(*os.File) error
	switch strings.ToLower(filepath.Ext(f.Path)) {
	case ".png":
		encode = func(w *os.File) error { return png.Encode(w, frame) }
	case ".bmp":
		encode = func(w *os.File) error { return bmp.Encode(w, frame) }
	default:
		return fmt.Errorf("unsupported image format: %q", f.Path)
	}

	// Written next to the target, then renamed over it.
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".stopboard-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("writing %s: %w", f.Path, err)
	}

	log.Debug().Str("path", f.Path).Msg("Frame written")

	return nil
}

func (f *FileSink) Sleep() error {
	return nil
}

func (f *FileSink) Close() error {
	return nil
}
