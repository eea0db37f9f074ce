package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"tidbyt.dev/stopboard"
	"tidbyt.dev/stopboard/config"
	"tidbyt.dev/stopboard/model"
	"tidbyt.dev/stopboard/storage"

	_ "time/tzdata"
)

var rootCmd = &cobra.Command{
	Use:               "stopboard",
	Short:             "Transit arrival board",
	Long:              "Shows upcoming scheduled arrivals for nearby stops on an e-paper panel",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath  string
	timetable   string
	storageName string
	debug       bool
	logFormat   string
	nextDay     bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&timetable, "timetable", "t", "", "GTFS zip, directory or stop_times file")
	rootCmd.PersistentFlags().StringVarP(&storageName, "storage", "", "", "Timetable storage (memory or sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", "console", "Log format (console or json)")
	rootCmd.PersistentFlags().BoolVarP(&nextDay, "next-day", "", false, "Fill up with the next day's arrivals after the last run")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(arrivalsCmd)
	rootCmd.AddCommand(stopsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	switch logFormat {
	case "json":
	case "console":
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}

	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	return nil
}

// Config file, then command line flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("timetable") {
		cfg.Timetable = timetable
	}
	if flags.Changed("storage") {
		cfg.Storage = storageName
	}
	if flags.Changed("next-day") {
		cfg.NextDay = nextDay
	}
	if flags.Changed("panel") {
		cfg.Display.Panel = panel
	}
	if flags.Changed("output") {
		cfg.Display.Output = output
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func newStorage(name string) (storage.Storage, error) {
	switch name {
	case "sqlite":
		return storage.NewSQLiteStorage()
	case "memory":
		return storage.NewMemoryStorage(), nil
	}
	return nil, fmt.Errorf("unknown storage %q", name)
}

func newManager(cfg *config.Config) (*stopboard.Manager, error) {
	s, err := newStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}

	m := stopboard.NewManager(s)
	m.PerDirection = cfg.PerDirection
	m.NextDay = cfg.NextDay

	return m, nil
}

func newResolver(cfg config.ResolverConfig) stopboard.Resolver {
	if cfg.Mode == config.ResolverNearby {
		return &stopboard.NearbyResolver{
			Lat:          cfg.Lat,
			Lon:          cfg.Lon,
			RadiusMeters: cfg.RadiusMeters,
			Limit:        cfg.Limit,
		}
	}

	stops := make([]model.BoardStop, 0, len(cfg.Stops))
	for _, s := range cfg.Stops {
		stops = append(stops, model.BoardStop{ID: s.ID, Name: s.Name, Line: s.Line})
	}
	return &stopboard.FixedResolver{Stops: stops}
}

// Loads the configured timetable once.
func loadStatic(cmd *cobra.Command) (*config.Config, *stopboard.Static, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	m, err := newManager(cfg)
	if err != nil {
		return nil, nil, err
	}

	static, err := m.Load(cfg.Timetable)
	if err != nil {
		return nil, nil, fmt.Errorf("loading timetable: %w", err)
	}

	return cfg, static, nil
}
