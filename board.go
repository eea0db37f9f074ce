package stopboard

import (
	"fmt"
	"time"

	"tidbyt.dev/stopboard/model"
)

// What's on the board at a given time.
type Snapshot struct {
	Title string
	Now   time.Time
	Stops []StopArrivals
}

type StopArrivals struct {
	Stop    model.BoardStop
	Results []model.ArrivalResult
}

// Number of arrivals across all stops and directions.
func (s *Snapshot) Count() int {
	n := 0
	for _, stop := range s.Stops {
		for _, r := range stop.Results {
			n += len(r.Arrivals)
		}
	}
	return n
}

// Board ties stop resolution and arrival lookup together.
type Board struct {
	Title    string
	Resolver Resolver
}

// Resolves stops and looks up their upcoming arrivals.
func (b *Board) Snapshot(static *Static, now time.Time) (*Snapshot, error) {
	snapshot := &Snapshot{
		Title: b.Title,
		Now:   now,
		Stops: []StopArrivals{},
	}

	if b.Resolver == nil {
		return snapshot, nil
	}

	stops := b.Resolver.Resolve(static)
	if len(stops) == 0 {
		return snapshot, nil
	}

	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.ID)
	}

	results, err := static.Arrivals(ids, now)
	if err != nil {
		return nil, fmt.Errorf("looking up arrivals: %w", err)
	}

	byStop := map[string][]model.ArrivalResult{}
	for _, r := range results {
		byStop[r.StopID] = append(byStop[r.StopID], r)
	}

	seen := map[string]bool{}
	for _, stop := range stops {
		if seen[stop.ID] {
			continue
		}
		seen[stop.ID] = true

		stopResults := byStop[stop.ID]
		if stop.Line != "" {
			stopResults = withLine(stopResults, stop.Line)
		}

		snapshot.Stops = append(snapshot.Stops, StopArrivals{
			Stop:    stop,
			Results: stopResults,
		})
	}

	return snapshot, nil
}

// Copies results, labeling arrivals lacking a line.
func withLine(results []model.ArrivalResult, line string) []model.ArrivalResult {
	out := make([]model.ArrivalResult, 0, len(results))
	for _, r := range results {
		arrivals := make([]model.Arrival, 0, len(r.Arrivals))
		for _, a := range r.Arrivals {
			if a.Line == "" {
				a.Line = line
			}
			arrivals = append(arrivals, a)
		}
		r.Arrivals = arrivals
		out = append(out, r)
	}
	return out
}
