package parse

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"tidbyt.dev/stopboard/model"
	"tidbyt.dev/stopboard/storage"
)

type TripCSV struct {
	ID          string `csv:"trip_id"`
	RouteID     string `csv:"route_id"`
	ServiceID   string `csv:"service_id"`
	Headsign    string `csv:"trip_headsign"`
	DirectionID string `csv:"direction_id"`
	// ShortName            string `csv:"trip_short_name"`
	// BlockID              string `csv:"block_id"`
	// ShapeID              string `csv:"shape_id"`
}

// What stop_times parsing needs to know about a trip.
type TripInfo struct {
	Headsign    string
	DirectionID int8
}

// Parses trips.txt. If routes is non-nil, every trip must reference
// a known route_id.
func ParseTrips(
	writer storage.FeedWriter,
	data io.Reader,
	routes map[string]bool,
) (map[string]*TripInfo, error) {
	tripCsv := []*TripCSV{}
	if err := gocsv.Unmarshal(data, &tripCsv); err != nil {
		return nil, fmt.Errorf("unmarshaling trips csv: %w", err)
	}

	trips := map[string]*TripInfo{}
	for _, t := range tripCsv {
		if t.ID == "" {
			return nil, fmt.Errorf("empty trip_id")
		}
		if trips[t.ID] != nil {
			return nil, fmt.Errorf("repeated trip_id '%s'", t.ID)
		}

		if routes != nil {
			if t.RouteID == "" {
				return nil, fmt.Errorf("empty route_id for trip_id '%s'", t.ID)
			}
			if !routes[t.RouteID] {
				return nil, fmt.Errorf("unknown route_id '%s'", t.RouteID)
			}
		}

		directionID := int8(-1)
		if d := strings.TrimSpace(t.DirectionID); d != "" {
			n, err := strconv.Atoi(d)
			if err != nil || (n != 0 && n != 1) {
				return nil, fmt.Errorf("invalid direction_id '%s'", t.DirectionID)
			}
			directionID = int8(n)
		}

		trips[t.ID] = &TripInfo{
			Headsign:    t.Headsign,
			DirectionID: directionID,
		}

		err := writer.WriteTrip(&model.Trip{
			ID:          t.ID,
			RouteID:     t.RouteID,
			ServiceID:   t.ServiceID,
			Headsign:    t.Headsign,
			DirectionID: directionID,
		})
		if err != nil {
			return nil, fmt.Errorf("writing trip: %w", err)
		}
	}

	return trips, nil
}
