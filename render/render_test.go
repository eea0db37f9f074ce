package render

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/model"
)

var now = time.Date(2020, 2, 4, 8, 5, 0, 0, time.UTC)

func arrival(line string, headsign string, minutes int) model.Arrival {
	return model.Arrival{
		Time:     now.Add(time.Duration(minutes) * time.Minute),
		Line:     line,
		Headsign: headsign,
	}
}

func testSnapshot() *stopboard.Snapshot {
	return &stopboard.Snapshot{
		Title: "PIAZZA FERRAVILLA",
		Now:   now,
		Stops: []stopboard.StopArrivals{
			{
				Stop: model.BoardStop{ID: "12422", Name: "Niguarda", Line: "5"},
				Results: []model.ArrivalResult{
					{StopID: "12422", Direction: "Niguarda", Arrivals: []model.Arrival{
						arrival("5", "Niguarda", 7),
						arrival("5", "Niguarda", 19),
					}},
				},
			},
			{
				Stop: model.BoardStop{ID: "19236", Name: "Fake1", Line: "F1"},
				Results: []model.ArrivalResult{
					{StopID: "19236", Arrivals: []model.Arrival{}},
				},
			},
			{
				Stop: model.BoardStop{ID: "12424", Line: "90"},
				Results: []model.ArrivalResult{
					{StopID: "12424", Direction: "Lodi", Arrivals: []model.Arrival{
						arrival("90", "Lodi", 1),
					}},
				},
			},
		},
	}
}

func TestMinutesLabel(t *testing.T) {
	for _, tc := range []struct {
		In       time.Duration
		Expected string
	}{
		{-time.Minute, "Due"},
		{0, "Due"},
		{59 * time.Second, "Due"},
		{time.Minute, "1 min"},
		{119 * time.Second, "1 min"},
		{2 * time.Minute, "2 min"},
		{42*time.Minute + 30*time.Second, "42 min"},
	} {
		assert.Equal(t, tc.Expected, MinutesLabel(now, now.Add(tc.In)), "%s", tc.In)
	}
}

func TestFooterLabel(t *testing.T) {
	assert.Equal(t, "Updates every 2 minutes", FooterLabel(120*time.Second))
	assert.Equal(t, "Updates every minute", FooterLabel(time.Minute))
	assert.Equal(t, "Updates every 30 seconds", FooterLabel(30*time.Second))
	assert.Equal(t, "", FooterLabel(0))
}

func TestGroups(t *testing.T) {
	gs := groups(testSnapshot(), ">")
	require.Equal(t, 3, len(gs))

	// Soonest first, empty groups last
	assert.Equal(t, "12424 > Lodi", gs[0].title)
	assert.Equal(t, "Niguarda (12422)", gs[1].title)
	assert.Equal(t, "Fake1 (19236)", gs[2].title)
	assert.Equal(t, 0, len(gs[2].arrivals))

	assert.Equal(t, []group{}, groups(&stopboard.Snapshot{}, ">"))
}

func TestGroupTitle(t *testing.T) {
	for _, tc := range []struct {
		Stop      model.BoardStop
		Direction string
		Expected  string
	}{
		{model.BoardStop{ID: "1"}, "", "1"},
		{model.BoardStop{ID: "1"}, "North", "1 → North"},
		{model.BoardStop{ID: "1", Name: "Main St"}, "", "Main St (1)"},
		{model.BoardStop{ID: "1", Name: "Main St"}, "Main St", "Main St (1)"},
		{model.BoardStop{ID: "1", Name: "Main St"}, "North", "Main St → North"},
	} {
		assert.Equal(t, tc.Expected, groupTitle(tc.Stop, tc.Direction, "→"))
	}
}

func inked(img *image.Gray, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if img.GrayAt(x, y).Y == black {
				n++
			}
		}
	}
	return n
}

func TestRenderLarge(t *testing.T) {
	bounds := image.Rect(0, 0, 800, 480)
	img := Render(testSnapshot(), bounds, 2*time.Minute)
	require.Equal(t, bounds, img.Bounds())

	// Only black and white
	for _, p := range img.Pix {
		require.True(t, p == black || p == white)
	}

	// Separator and footer rules
	assert.Equal(t, black, img.GrayAt(400, 80).Y)
	assert.Equal(t, black, img.GrayAt(400, 82).Y)
	assert.Equal(t, black, img.GrayAt(400, 420).Y)
	assert.Equal(t, white, img.GrayAt(400, 83).Y)

	// Something in the title, clock and body
	assert.True(t, inked(img, image.Rect(20, 20, 400, 80)) > 0)
	assert.True(t, inked(img, image.Rect(650, 20, 780, 80)) > 0)
	assert.True(t, inked(img, image.Rect(20, 100, 780, 420)) > 0)

	// Margins are clear
	assert.Equal(t, 0, inked(img, image.Rect(0, 0, 800, 15)))
	assert.Equal(t, 0, inked(img, image.Rect(0, 470, 800, 480)))
}

func TestRenderCompact(t *testing.T) {
	bounds := image.Rect(0, 0, 250, 122)
	img := Render(testSnapshot(), bounds, 2*time.Minute)
	require.Equal(t, bounds, img.Bounds())

	assert.Equal(t, black, img.GrayAt(100, 15).Y)
	assert.Equal(t, black, img.GrayAt(100, 107).Y)
	assert.True(t, inked(img, image.Rect(0, 17, 250, 107)) > 0)
}

func TestRenderEmpty(t *testing.T) {
	full := Render(testSnapshot(), image.Rect(0, 0, 800, 480), 2*time.Minute)
	empty := Render(&stopboard.Snapshot{Title: "PIAZZA FERRAVILLA", Now: now}, image.Rect(0, 0, 800, 480), 2*time.Minute)

	// Header and footer are identical, the body is not
	assert.Equal(t, inked(full, image.Rect(0, 0, 800, 100)), inked(empty, image.Rect(0, 0, 800, 100)))
	assert.Equal(t, inked(full, image.Rect(0, 420, 800, 480)), inked(empty, image.Rect(0, 420, 800, 480)))
	assert.True(t, inked(empty, image.Rect(20, 100, 780, 150)) > 0)
	assert.True(t, inked(full, image.Rect(0, 100, 800, 420)) > inked(empty, image.Rect(0, 100, 800, 420)))
}

func TestRenderIsDeterministic(t *testing.T) {
	a := Render(testSnapshot(), image.Rect(0, 0, 800, 480), 2*time.Minute)
	b := Render(testSnapshot(), image.Rect(0, 0, 800, 480), 2*time.Minute)
	assert.Equal(t, a.Pix, b.Pix)
}
