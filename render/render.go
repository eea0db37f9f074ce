// Package render draws a board snapshot as a black and white image
// sized for an e-paper panel.
package render

import (
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/model"
)

const (
	NoData       = "No data available"
	NoDepartures = "No departures"
	Due          = "Due"
)

// Panels at least this wide get the large layout.
const LargeMinWidth = 400

// Minutes until an arrival, as shown on the board.
func MinutesLabel(now time.Time, at time.Time) string {
	minutes := int(at.Sub(now) / time.Minute)
	if minutes <= 0 {
		return Due
	}
	if minutes == 1 {
		return "1 min"
	}
	return fmt.Sprintf("%d min", minutes)
}

func FooterLabel(interval time.Duration) string {
	switch {
	case interval <= 0:
		return ""
	case interval < time.Minute:
		return fmt.Sprintf("Updates every %d seconds", int(interval/time.Second))
	case interval < 2*time.Minute:
		return "Updates every minute"
	}
	return fmt.Sprintf("Updates every %d minutes", int(interval/time.Minute))
}

type layout struct {
	title   font.Face
	clock   font.Face
	header  font.Face
	row     font.Face
	minutes font.Face
	footer  font.Face

	margin         int
	titleTop       int
	separatorY     int
	separatorWidth int
	bodyTop        int
	groupHeight    int
	rowHeight      int
	circleX        int
	circleR        int
	circleWidth    int
	destX          int
	footerY        int
	footerWidth    int
	arrow          string
}

type faces struct {
	large, medium, small font.Face
}

var (
	goFaces     *faces
	goFacesOnce sync.Once
)

func newFace(ttf []byte, size float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

// The Go fonts at the sizes used by the large layout. Nil if they
// can't be loaded.
func loadGoFaces() *faces {
	goFacesOnce.Do(func() {
		large, err := newFace(gobold.TTF, 40)
		if err != nil {
			log.Warn().Err(err).Msg("Falling back to basic font")
			return
		}
		medium, err := newFace(goregular.TTF, 32)
		if err != nil {
			log.Warn().Err(err).Msg("Falling back to basic font")
			return
		}
		small, err := newFace(goregular.TTF, 24)
		if err != nil {
			log.Warn().Err(err).Msg("Falling back to basic font")
			return
		}
		goFaces = &faces{large, medium, small}
	})
	return goFaces
}

func largeLayout(b image.Rectangle) *layout {
	f := loadGoFaces()
	if f == nil {
		return compactLayout(b)
	}
	return &layout{
		title:          f.large,
		clock:          f.medium,
		header:         f.medium,
		row:            f.medium,
		minutes:        f.large,
		footer:         f.small,
		margin:         20,
		titleTop:       20,
		separatorY:     80,
		separatorWidth: 3,
		bodyTop:        100,
		groupHeight:    45,
		rowHeight:      60,
		circleX:        40,
		circleR:        22,
		circleWidth:    3,
		destX:          100,
		footerY:        b.Dy() - 60,
		footerWidth:    2,
		arrow:          "→",
	}
}

func compactLayout(b image.Rectangle) *layout {
	face := basicfont.Face7x13
	return &layout{
		title:          face,
		clock:          face,
		header:         face,
		row:            face,
		minutes:        face,
		footer:         face,
		margin:         3,
		titleTop:       1,
		separatorY:     15,
		separatorWidth: 1,
		bodyTop:        17,
		groupHeight:    13,
		rowHeight:      14,
		circleX:        10,
		circleR:        7,
		circleWidth:    1,
		destX:          21,
		footerY:        b.Dy() - 15,
		footerWidth:    1,
		arrow:          ">",
	}
}

type group struct {
	title    string
	fallback string
	arrivals []model.Arrival
}

func groupTitle(stop model.BoardStop, direction string, arrow string) string {
	switch {
	case stop.Name == "" && direction == "":
		return stop.ID
	case stop.Name == "":
		return fmt.Sprintf("%s %s %s", stop.ID, arrow, direction)
	case direction == "" || direction == stop.Name:
		return fmt.Sprintf("%s (%s)", stop.Name, stop.ID)
	}
	return fmt.Sprintf("%s %s %s", stop.Name, arrow, direction)
}

// One group per stop and direction, soonest first. Groups without
// arrivals go last, in snapshot order.
func groups(s *stopboard.Snapshot, arrow string) []group {
	out := []group{}
	for _, stop := range s.Stops {
		for _, r := range stop.Results {
			out = append(out, group{
				title:    groupTitle(stop.Stop, r.Direction, arrow),
				fallback: r.Direction,
				arrivals: r.Arrivals,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if len(out[j].arrivals) == 0 {
			return len(out[i].arrivals) > 0
		}
		if len(out[i].arrivals) == 0 {
			return false
		}
		return out[i].arrivals[0].Time.Before(out[j].arrivals[0].Time)
	})

	return out
}

// Renders the snapshot into an image of the given size. Interval is
// mentioned in the footer.
func Render(snapshot *stopboard.Snapshot, bounds image.Rectangle, interval time.Duration) *image.Gray {
	bounds = bounds.Sub(bounds.Min)
	img := image.NewGray(bounds)
	fillRect(img, 0, 0, bounds.Dx()-1, bounds.Dy()-1, white)

	paint(img, snapshot, interval)

	// No gray on e-paper
	threshold(img)

	return img
}

func paint(img *image.Gray, snapshot *stopboard.Snapshot, interval time.Duration) {
	bounds := img.Bounds()

	var l *layout
	if bounds.Dx() >= LargeMinWidth {
		l = largeLayout(bounds)
	} else {
		l = compactLayout(bounds)
	}

	width := bounds.Dx()
	right := width - l.margin

	// Header
	clock := snapshot.Now.Format("15:04")
	clockX := right - textWidth(l.clock, clock)
	text(img, l.title, l.margin, l.titleTop, fit(l.title, snapshot.Title, clockX-l.margin-l.margin))
	text(img, l.clock, clockX, l.titleTop, clock)
	hline(img, l.margin, right, l.separatorY, l.separatorWidth)

	// Footer
	hline(img, l.margin, right, l.footerY, l.footerWidth)
	text(img, l.footer, l.margin, l.footerY+l.footerWidth+1, fit(l.footer, FooterLabel(interval), right-l.margin))

	y := l.bodyTop
	gs := groups(snapshot, l.arrow)
	if len(gs) == 0 {
		text(img, l.header, l.margin, y, NoData)
		return
	}

	for _, g := range gs {
		if y+l.groupHeight > l.footerY {
			break
		}
		text(img, l.header, l.margin, y, fit(l.header, g.title, right-l.margin))
		y += l.groupHeight

		if len(g.arrivals) == 0 {
			if y+l.rowHeight > l.footerY {
				break
			}
			text(img, l.row, l.destX, y, NoDepartures)
			y += l.rowHeight
			continue
		}

		for _, a := range g.arrivals {
			if y+l.rowHeight > l.footerY {
				break
			}
			drawRow(img, l, y, right, snapshot.Now, a, g.fallback)
			y += l.rowHeight
		}
	}
}

func drawRow(img *image.Gray, l *layout, y int, right int, now time.Time, a model.Arrival, fallback string) {
	rowMid := y + textHeight(l.row)/2

	// Line label inside a circle
	label := a.Line
	if label == "" {
		label = a.RouteID
	}
	ring(img, l.circleX, rowMid, l.circleR, l.circleWidth, black)
	label = fit(l.row, label, 2*l.circleR)
	text(img, l.row, l.circleX-textWidth(l.row, label)/2, y, label)

	// Minutes, right aligned
	minutes := MinutesLabel(now, a.Time)
	minutesX := right - textWidth(l.minutes, minutes)
	minutesY := rowMid - textHeight(l.minutes)/2
	text(img, l.minutes, minutesX, minutesY, minutes)

	// Destination in between
	dest := a.Headsign
	if dest == "" {
		dest = fallback
	}
	text(img, l.row, l.destX, y, fit(l.row, dest, minutesX-l.destX-l.margin))
}
