package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var arrivalsCmd = &cobra.Command{
	Use:   "arrivals [stop_id...]",
	Short: "Lists upcoming arrivals at stops",
	Long:  "Lists upcoming arrivals at the given stops, or at the board's stops if none are given",
	RunE:  arrivals,
}

var perDirection int

func init() {
	arrivalsCmd.Flags().IntVarP(&perDirection, "limit", "l", 0, "Arrivals per direction (default from config)")
}

func arrivals(cmd *cobra.Command, args []string) error {
	cfg, static, err := loadStatic(cmd)
	if err != nil {
		return err
	}

	stopIDs := args
	if len(stopIDs) == 0 {
		for _, s := range newResolver(cfg.Resolver).Resolve(static) {
			stopIDs = append(stopIDs, s.ID)
		}
	}

	if perDirection > 0 {
		static.PerDirection = perDirection
	}

	now := time.Now().In(static.Location())
	results, err := static.Arrivals(stopIDs, now)
	if err != nil {
		return err
	}

	for _, r := range results {
		fmt.Printf("%s %q\n", r.StopID, r.Direction)
		for _, a := range r.Arrivals {
			fmt.Printf("  %s %s %s\n", a.Time.Format("15:04"), a.Line, a.Headsign)
		}
	}

	return nil
}
