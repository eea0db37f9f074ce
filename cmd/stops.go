package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var stopsCmd = &cobra.Command{
	Use:   "stops [lat lng] [radius_meters] [limit]",
	Short: "Lists stops near a geographical location",
	Long:  "Lists stops near a geographical location, or the stops the board resolves to",
	Args:  cobra.RangeArgs(0, 4),
	RunE:  stops,
}

func stops(cmd *cobra.Command, args []string) error {
	var lat, lng, radius float64
	var limit int
	var err error

	if len(args) == 1 {
		return fmt.Errorf("missing lng")
	}
	if len(args) >= 2 {
		lat, err = strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid lat: %w", err)
		}
		lng, err = strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid lng: %w", err)
		}
	}
	if len(args) >= 3 {
		radius, err = strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("invalid radius: %w", err)
		}
	}
	if len(args) == 4 {
		limit, err = strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("invalid limit: %w", err)
		}
		if limit < 0 {
			return fmt.Errorf("limit must be >= 0")
		}
	}

	cfg, static, err := loadStatic(cmd)
	if err != nil {
		return err
	}

	if len(args) < 2 {
		for _, stop := range newResolver(cfg.Resolver).Resolve(static) {
			fmt.Printf("%s: %s\n", stop.ID, stop.Name)
		}
		return nil
	}

	stops, err := static.NearbyStops(lat, lng, radius, limit)
	if err != nil {
		return err
	}

	for _, stop := range stops {
		fmt.Printf("%s: %s\n", stop.ID, stop.Name)
	}

	return nil
}
