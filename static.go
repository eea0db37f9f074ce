package stopboard

import (
	"fmt"
	"sort"
	"time"

	"tidbyt.dev/stopboard/model"
	"tidbyt.dev/stopboard/storage"
)

// Number of upcoming arrivals kept per stop and direction.
const DefaultPerDirection = 2

type Static struct {
	Metadata *storage.FeedMetadata
	Reader   storage.FeedReader

	// Max arrivals per (stop, direction). Defaults to
	// DefaultPerDirection.
	PerDirection int

	// When set, directions running out of arrivals for the day
	// are topped up with the next day's first arrivals.
	NextDay bool

	location *time.Location
}

// Creates a Static on top of a parsed feed. Feeds without
// agency_timezone are interpreted in time.Local.
func NewStatic(reader storage.FeedReader, metadata *storage.FeedMetadata) (*Static, error) {
	location := time.Local
	if metadata.Timezone != "" {
		var err error
		location, err = time.LoadLocation(metadata.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
	}

	return &Static{
		Metadata:     metadata,
		Reader:       reader,
		PerDirection: DefaultPerDirection,
		location:     location,
	}, nil
}

func (s *Static) Location() *time.Location {
	return s.location
}

// Returns stops within radiusMeters of lat,lon, ordered by
// distance. If limit is >0, at most limit stops are returned.
//
// Only stations (location_type=1) and stops (location_type=0)
// _without_ parent station are returned.
func (s *Static) NearbyStops(lat float64, lon float64, radiusMeters float64, limit int) ([]model.Stop, error) {
	stops, err := s.Reader.NearbyStops(lat, lon, radiusMeters/1000, limit)
	if err != nil {
		return nil, fmt.Errorf("getting nearby stops: %w", err)
	}
	return stops, nil
}

// Looks up stops by ID. Unknown IDs are left out.
func (s *Static) Stops(stopIDs []string) (map[string]model.Stop, error) {
	want := map[string]bool{}
	for _, id := range stopIDs {
		want[id] = true
	}

	all, err := s.Reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting stops: %w", err)
	}

	stops := map[string]model.Stop{}
	for _, stop := range all {
		if want[stop.ID] {
			stops[stop.ID] = *stop
		}
	}
	return stops, nil
}

// Translates a time offset into a GTFS style HHMMSS string.
func gtfsTime(offset time.Duration) string {
	h := int(offset.Hours())
	m := int(offset.Minutes()) - h*60
	sec := int(offset.Seconds()) - h*3600 - m*60
	return fmt.Sprintf("%02d%02d%02d", h, m, sec)
}

// Start of the service day containing t. GTFS times are relative to
// noon minus 12h, which only differs from midnight on DST change
// days.
func serviceDay(t time.Time) time.Time {
	noon := time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, t.Location())
	return noon.Add(-12 * time.Hour)
}

// Offset of t into its service day, rounded up to a whole second so
// that nothing earlier than t is matched.
func serviceOffset(day time.Time, t time.Time) time.Duration {
	offset := t.Sub(day)
	if rem := offset % time.Second; rem > 0 {
		offset += time.Second - rem
	}
	return offset
}

func toArrival(event *storage.StopTimeEvent, day time.Time, tz *time.Location) model.Arrival {
	a := model.Arrival{
		Time:     day.Add(event.StopTime.ArrivalTime()).In(tz),
		TripID:   event.StopTime.TripID,
		Headsign: event.StopTime.Headsign,
	}
	if event.Trip != nil {
		a.RouteID = event.Trip.RouteID
		if a.Headsign == "" {
			a.Headsign = event.Trip.Headsign
		}
	}
	if event.Route != nil {
		a.Line = event.Route.Label()
	}
	return a
}

// Sorts a by time, keeping the order of equal times, and keeps the
// first n.
func soonest(a []model.Arrival, n int) []model.Arrival {
	sort.SliceStable(a, func(i, j int) bool {
		return a[i].Time.Before(a[j].Time)
	})
	if len(a) > n {
		a = a[:n]
	}
	return a
}

// Returns the next arrivals for every (stop, direction) pair served
// at the requested stops, relative to now.
//
// Results follow the order of stopIDs, and for each stop, the order
// in which directions first appear in the timetable. Each result
// holds at most PerDirection arrivals, soonest first, none earlier
// than now. Arrivals with equal times keep their timetable order.
//
// Trips of the previous service day running past midnight are
// included, for as long as the feed's latest arrival allows.
//
// A stop missing from the timetable produces a single result with
// blank direction and no arrivals. A direction with no arrivals left
// for the day produces a result without arrivals, unless NextDay is
// set.
//
// Arrival times are returned in now's timezone.
func (s *Static) Arrivals(stopIDs []string, now time.Time) ([]model.ArrivalResult, error) {
	perDirection := s.PerDirection
	if perDirection <= 0 {
		perDirection = DefaultPerDirection
	}

	// Deduplicate, keeping order
	seen := map[string]bool{}
	ids := []string{}
	for _, id := range stopIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	results := []model.ArrivalResult{}
	if len(ids) == 0 {
		return results, nil
	}

	directions, err := s.Reader.StopDirections(ids)
	if err != nil {
		return nil, fmt.Errorf("getting stop directions: %w", err)
	}

	// All computations are done in the feed's timezone, but
	// Arrival.Time is returned in the timezone used by caller.
	origTz := now.Location()
	local := now.In(s.location)
	day := serviceDay(local)
	offset := serviceOffset(day, local)

	type key struct {
		StopID    string
		Direction string
	}

	arrivals := map[key][]model.Arrival{}
	collect := func(events []*storage.StopTimeEvent, day time.Time) {
		n := map[key]int{}
		for _, event := range events {
			k := key{event.StopTime.StopID, event.StopTime.Direction}
			if n[k] >= perDirection {
				continue
			}
			n[k]++
			arrivals[k] = append(arrivals[k], toArrival(event, day, origTz))
		}
	}

	// The previous service day's trips may still be running past
	// midnight.
	yesterday := serviceDay(day.Add(-12 * time.Hour))
	yesterdayOffset := gtfsTime(serviceOffset(yesterday, local))
	overlap := s.Metadata != nil && yesterdayOffset <= s.Metadata.MaxArrival
	if overlap {
		events, err := s.Reader.StopTimeEvents(storage.StopTimeEventFilter{
			StopIDs:      ids,
			ArrivalStart: yesterdayOffset,
		})
		if err != nil {
			return nil, fmt.Errorf("getting previous day stop time events: %w", err)
		}
		collect(events, yesterday)
	}

	events, err := s.Reader.StopTimeEvents(storage.StopTimeEventFilter{
		StopIDs:      ids,
		ArrivalStart: gtfsTime(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("getting stop time events: %w", err)
	}
	collect(events, day)

	if overlap {
		for k, a := range arrivals {
			arrivals[k] = soonest(a, perDirection)
		}
	}

	if s.NextDay {
		short := false
		for _, d := range directions {
			if len(arrivals[key{d.StopID, d.Direction}]) < perDirection {
				short = true
				break
			}
		}

		if short {
			tomorrow := serviceDay(day.Add(36 * time.Hour))
			next, err := s.Reader.StopTimeEvents(storage.StopTimeEventFilter{
				StopIDs: ids,
			})
			if err != nil {
				return nil, fmt.Errorf("getting next day stop time events: %w", err)
			}

			topped := map[key]bool{}
			added := map[key]int{}
			for _, event := range next {
				k := key{event.StopTime.StopID, event.StopTime.Direction}
				if len(arrivals[k])-added[k] >= perDirection || added[k] >= perDirection {
					continue
				}
				a := toArrival(event, tomorrow, origTz)
				if a.Time.Before(now) {
					continue
				}
				arrivals[k] = append(arrivals[k], a)
				added[k]++
				topped[k] = true
			}

			// Today's overflow trips (past 24:00) may run later
			// than tomorrow's first ones.
			for k := range topped {
				arrivals[k] = soonest(arrivals[k], perDirection)
			}
		}
	}

	directionsByStop := map[string][]string{}
	for _, d := range directions {
		directionsByStop[d.StopID] = append(directionsByStop[d.StopID], d.Direction)
	}

	for _, id := range ids {
		dirs, found := directionsByStop[id]
		if !found {
			results = append(results, model.ArrivalResult{
				StopID:   id,
				Arrivals: []model.Arrival{},
			})
			continue
		}
		for _, dir := range dirs {
			a := arrivals[key{id, dir}]
			if a == nil {
				a = []model.Arrival{}
			}
			results = append(results, model.ArrivalResult{
				StopID:    id,
				Direction: dir,
				Arrivals:  a,
			})
		}
	}

	return results, nil
}
