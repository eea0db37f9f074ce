package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/display"
	"tidbyt.dev/stopboard/render"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Renders the board once to an image file",
	Args:  cobra.NoArgs,
	RunE:  renderOnce,
}

var at string

func init() {
	renderCmd.Flags().StringVarP(&panel, "panel", "p", "", "Panel model whose size is used")
	renderCmd.Flags().StringVarP(&output, "output", "o", "", "Image file (.png or .bmp)")
	renderCmd.Flags().StringVarP(&at, "at", "", "", "Render as of this time (RFC 3339) instead of now")
}

func renderOnce(cmd *cobra.Command, args []string) error {
	cfg, static, err := loadStatic(cmd)
	if err != nil {
		return err
	}

	now := time.Now()
	if at != "" {
		now, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid time: %w", err)
		}
	}
	now = now.In(static.Location())

	board := &stopboard.Board{
		Title:    cfg.Title,
		Resolver: newResolver(cfg.Resolver),
	}
	snapshot, err := board.Snapshot(static, now)
	if err != nil {
		return err
	}

	sink := display.NewFileSink(cfg.Display.Output, display.Size(cfg.Display.Panel))
	if err := sink.Push(render.Render(snapshot, sink.Bounds(), cfg.Interval)); err != nil {
		return err
	}

	log.Info().
		Str("path", cfg.Display.Output).
		Int("arrivals", snapshot.Count()).
		Msg("Board rendered")

	return nil
}
