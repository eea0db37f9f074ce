package main

import (
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/config"
	"tidbyt.dev/stopboard/display"
)

// Panel recording what's done to it.
type recordingPanel struct {
	bounds  image.Rectangle
	pushErr error
	calls   []string
	frames  []image.Image
}

func (p *recordingPanel) Bounds() image.Rectangle { return p.bounds }

func (p *recordingPanel) Push(img image.Image) error {
	p.calls = append(p.calls, "push")
	if p.pushErr != nil {
		return p.pushErr
	}
	p.frames = append(p.frames, img)
	return nil
}

func (p *recordingPanel) Sleep() error {
	p.calls = append(p.calls, "sleep")
	return nil
}

func (p *recordingPanel) Close() error {
	p.calls = append(p.calls, "close")
	return nil
}

// Stop times at half past every hour, at the first of the
// configured stops.
func writeTimetable(t *testing.T, path string, extra ...string) {
	lines := []string{"trip_id,stop_id,stop_sequence,arrival_time,departure_time,stop_headsign"}
	for h := 0; h < 24; h++ {
		lines = append(lines, fmt.Sprintf("t%02d,12422,1,%02d:30:00,%02d:30:00,Niguarda", h, h, h))
	}
	lines = append(lines, extra...)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644))
}

func refreshFixture(t *testing.T) (*config.Config, *stopboard.Manager, *stopboard.Board) {
	cfg := config.Default()
	cfg.Timetable = filepath.Join(t.TempDir(), "stop_times.txt")
	writeTimetable(t, cfg.Timetable)

	m, err := newManager(cfg)
	require.NoError(t, err)

	board := &stopboard.Board{
		Title:    cfg.Title,
		Resolver: newResolver(cfg.Resolver),
	}

	return cfg, m, board
}

func TestRefreshPushesThenSleeps(t *testing.T) {
	cfg, m, board := refreshFixture(t)
	_, err := m.Load(cfg.Timetable)
	require.NoError(t, err)

	p := &recordingPanel{bounds: display.Size(display.Model2in13V4)}
	require.NoError(t, refresh(cfg, m, board, p))
	require.NoError(t, refresh(cfg, m, board, p))

	assert.Equal(t, []string{"push", "sleep", "push", "sleep"}, p.calls)
	require.Equal(t, 2, len(p.frames))
	assert.Equal(t, p.bounds, p.frames[0].Bounds())
}

func TestRefreshWithoutTimetable(t *testing.T) {
	cfg, m, board := refreshFixture(t)

	// Nothing loaded, and not asked to load
	p := &recordingPanel{bounds: display.Size(display.Model7in5V2)}
	err := refresh(cfg, m, board, p)
	assert.True(t, errors.Is(err, stopboard.ErrNoTimetable))
	assert.Equal(t, 0, len(p.calls))

	// With reload on, the timetable is loaded on the spot
	cfg.Reload = true
	require.NoError(t, refresh(cfg, m, board, p))
	assert.Equal(t, []string{"push", "sleep"}, p.calls)

	_, err = m.Static()
	assert.NoError(t, err)
}

func TestRefreshReload(t *testing.T) {
	cfg, m, board := refreshFixture(t)
	loaded, err := m.Load(cfg.Timetable)
	require.NoError(t, err)

	p := &recordingPanel{bounds: display.Size(display.Model7in5V2)}

	// Changes are ignored unless reloading
	writeTimetable(t, cfg.Timetable, "late,12422,1,25:00:00,25:00:00,Niguarda")
	require.NoError(t, refresh(cfg, m, board, p))
	current, err := m.Static()
	require.NoError(t, err)
	assert.Same(t, loaded, current)

	cfg.Reload = true
	require.NoError(t, refresh(cfg, m, board, p))
	current, err = m.Static()
	require.NoError(t, err)
	assert.NotSame(t, loaded, current)
	assert.Equal(t, 25, current.Metadata.StopTimeCount)

	// A broken file keeps the board going on the previous one
	require.NoError(t, os.WriteFile(cfg.Timetable, []byte("trip_id,stop_id,stop_sequence,arrival_time\nt,12422,1,8am"), 0644))
	require.NoError(t, refresh(cfg, m, board, p))
	again, err := m.Static()
	require.NoError(t, err)
	assert.Same(t, current, again)
}

func TestRefreshPushFailure(t *testing.T) {
	cfg, m, board := refreshFixture(t)
	_, err := m.Load(cfg.Timetable)
	require.NoError(t, err)

	p := &recordingPanel{
		bounds:  display.Size(display.Model7in5V2),
		pushErr: errors.New("panel on fire"),
	}
	err = refresh(cfg, m, board, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panel on fire")

	// No sleep after a failed push
	assert.Equal(t, []string{"push"}, p.calls)
}

func TestRefreshToFile(t *testing.T) {
	cfg, m, board := refreshFixture(t)
	_, err := m.Load(cfg.Timetable)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "board.png")
	sink := display.NewFileSink(path, display.Size(display.Model7in5V2))
	require.NoError(t, refresh(cfg, m, board, sink))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, _, err := image.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 480), img.Bounds())
}
