package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const (
	white = uint8(255)
	black = uint8(0)
)

// Draws s with its top left corner at x,y.
func text(img *image.Gray, face font.Face, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: black}),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func textHeight(face font.Face) int {
	m := face.Metrics()
	return (m.Ascent + m.Descent).Ceil()
}

// Cuts s until it fits within max pixels.
func fit(face font.Face, s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	for len(r) > 0 && textWidth(face, string(r)) > max {
		r = r[:len(r)-1]
	}
	return string(r)
}

func threshold(img *image.Gray) {
	for i, p := range img.Pix {
		if p < 128 {
			img.Pix[i] = black
		} else {
			img.Pix[i] = white
		}
	}
}

func fillRect(img *image.Gray, x0, y0, x1, y1 int, c uint8) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			if image.Pt(x, y).In(img.Rect) {
				img.SetGray(x, y, color.Gray{Y: c})
			}
		}
	}
}

// Horizontal rule, width pixels thick, growing downwards from y.
func hline(img *image.Gray, x0, x1, y, width int) {
	for i := 0; i < width; i++ {
		line(img, x0, y+i, x1, y+i, black)
	}
}

func line(img *image.Gray, x0, y0, x1, y1 int, c uint8) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Rect) {
			img.SetGray(x0, y0, color.Gray{Y: c})
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Circle outline, width pixels thick, drawn inwards from r.
func ring(img *image.Gray, cx, cy, r, width int, c uint8) {
	inner := r - width
	if inner < 0 {
		inner = 0
	}
	for y := -r; y <= r; y++ {
		for x := -r; x <= r; x++ {
			d := x*x + y*y
			if d > r*r || d < inner*inner {
				continue
			}
			px, py := cx+x, cy+y
			if image.Pt(px, py).In(img.Rect) {
				img.SetGray(px, py, color.Gray{Y: c})
			}
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
