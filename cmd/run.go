package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/config"
	"tidbyt.dev/stopboard/display"
	"tidbyt.dev/stopboard/render"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refreshes the board until interrupted",
	Args:  cobra.NoArgs,
	RunE:  run,
}

var (
	panel  string
	output string
)

func init() {
	runCmd.Flags().StringVarP(&panel, "panel", "p", "", "Panel model (7in5v2, 2in13v4 or file)")
	runCmd.Flags().StringVarP(&output, "output", "o", "", "Image file written when there's no panel")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	manager, err := newManager(cfg)
	if err != nil {
		return err
	}

	if _, err := manager.Load(cfg.Timetable); err != nil {
		return fmt.Errorf("loading timetable: %w", err)
	}

	p := display.OpenOrFallback(cfg.Display.Panel, cfg.Display.Output)
	defer func() {
		if err := p.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing panel")
		}
	}()

	board := &stopboard.Board{
		Title:    cfg.Title,
		Resolver: newResolver(cfg.Resolver),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("panel", cfg.Display.Panel).
		Dur("interval", cfg.Interval).
		Msg("Board running")

	for {
		wait := cfg.Interval
		if err := refresh(cfg, manager, board, p); err != nil {
			log.Error().Err(err).Dur("retry_in", cfg.ErrorBackoff).Msg("Refresh failed")
			wait = cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down")
			return nil
		case <-time.After(wait):
		}
	}
}

// One refresh cycle.
func refresh(cfg *config.Config, manager *stopboard.Manager, board *stopboard.Board, p display.Panel) error {
	var static *stopboard.Static
	var err error
	if cfg.Reload {
		static, err = manager.Load(cfg.Timetable)
	} else {
		static, err = manager.Static()
	}
	if err != nil {
		return err
	}

	now := time.Now().In(static.Location())
	snapshot, err := board.Snapshot(static, now)
	if err != nil {
		return fmt.Errorf("looking up arrivals: %w", err)
	}

	img := render.Render(snapshot, p.Bounds(), cfg.Interval)
	if err := p.Push(img); err != nil {
		return fmt.Errorf("pushing frame: %w", err)
	}

	if err := p.Sleep(); err != nil {
		log.Warn().Err(err).Msg("Putting panel to sleep")
	}

	log.Debug().
		Int("stops", len(snapshot.Stops)).
		Int("arrivals", snapshot.Count()).
		Msg("Board refreshed")

	return nil
}
