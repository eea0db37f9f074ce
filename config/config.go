// Package config holds the board's settings.
//
// Every setting has a compiled-in default. A YAML file may override
// any of them, and the result is validated using struct tags.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"tidbyt.dev/stopboard/display"
)

const (
	ResolverFixed  = "fixed"
	ResolverNearby = "nearby"
)

type Config struct {
	Title string `yaml:"title" validate:"required"`

	// GTFS zip, directory or bare stop_times.txt.
	Timetable string `yaml:"timetable" validate:"required"`
	Storage   string `yaml:"storage" validate:"oneof=memory sqlite"`

	// Re-read the timetable every refresh, picking up changes.
	Reload bool `yaml:"reload"`

	Interval     time.Duration `yaml:"interval" validate:"gte=1s"`
	ErrorBackoff time.Duration `yaml:"error_backoff" validate:"gte=1s"`

	PerDirection int  `yaml:"per_direction" validate:"gte=1,lte=10"`
	NextDay      bool `yaml:"next_day"`

	Resolver ResolverConfig `yaml:"resolver"`
	Display  DisplayConfig  `yaml:"display"`
}

type ResolverConfig struct {
	Mode         string       `yaml:"mode" validate:"oneof=fixed nearby"`
	Lat          float64      `yaml:"lat" validate:"gte=-90,lte=90"`
	Lon          float64      `yaml:"lon" validate:"gte=-180,lte=180"`
	RadiusMeters float64      `yaml:"radius_meters" validate:"gt=0"`
	Limit        int          `yaml:"limit" validate:"gte=0"`
	Stops        []StopConfig `yaml:"stops" validate:"dive"`
}

type StopConfig struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name"`
	Line string `yaml:"line"`
}

type DisplayConfig struct {
	// One of the display.Model* constants.
	Panel string `yaml:"panel" validate:"oneof=7in5v2 2in13v4 file"`

	// Where the board goes when there's no panel.
	Output string `yaml:"output" validate:"required"`
}

// The board at Piazza Ferravilla, Milan.
func Default() *Config {
	return &Config{
		Title:        "PIAZZA FERRAVILLA",
		Timetable:    "data/stop_times.txt",
		Storage:      "memory",
		Interval:     120 * time.Second,
		ErrorBackoff: 60 * time.Second,
		PerDirection: 2,
		Resolver: ResolverConfig{
			Mode:         ResolverFixed,
			Lat:          45.5016,
			Lon:          9.1585,
			RadiusMeters: 300,
			Stops: []StopConfig{
				{ID: "12422", Name: "Niguarda", Line: "5"},
				{ID: "12423", Name: "Ortica", Line: "5"},
				{ID: "12424", Name: "Lodi", Line: "90"},
				{ID: "12425", Name: "Lotto", Line: "91"},
				{ID: "19236", Name: "Fake1", Line: "F1"},
				{ID: "19279", Name: "Fake2", Line: "F2"},
			},
		},
		Display: DisplayConfig{
			Panel:  display.Model7in5V2,
			Output: "test_display.png",
		},
	}
}

// Loads the defaults, overridden by the YAML file at path if path is
// non-empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}

		// Lists are replaced, not merged
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Resolver.Mode == ResolverFixed && len(c.Resolver.Stops) == 0 {
		return fmt.Errorf("invalid config: fixed resolver has no stops")
	}
	return nil
}
