package storage

import (
	"fmt"
	"sort"

	"tidbyt.dev/stopboard/model"
)

// In memory implementation of Storage below

type MemoryStorage struct {
	Feeds map[string]*MemoryStorageFeed
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds: map[string]*MemoryStorageFeed{},
	}
}

func (s *MemoryStorage) GetReader(feedID string) (FeedReader, error) {
	f, ok := s.Feeds[feedID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(feed string) (FeedWriter, error) {
	f := &MemoryStorageFeed{
		routes:          map[string]*model.Route{},
		agency:          map[string]*model.Agency{},
		stops:           map[string]*model.Stop{},
		trips:           map[string]*model.Trip{},
		stopTimesByStop: map[string][]*model.StopTime{},
	}

	s.Feeds[feed] = f

	return f, nil
}

func (s *MemoryStorage) DeleteFeed(feed string) error {
	if _, found := s.Feeds[feed]; !found {
		return fmt.Errorf("%w: %s", ErrFeedNotFound, feed)
	}
	delete(s.Feeds, feed)
	return nil
}

type MemoryStorageFeed struct {
	routes          map[string]*model.Route
	agency          map[string]*model.Agency
	stops           map[string]*model.Stop
	trips           map[string]*model.Trip
	stopTimes       []*model.StopTime
	stopTimesByStop map[string][]*model.StopTime
}

func (f *MemoryStorageFeed) WriteAgency(agency *model.Agency) error {
	f.agency[agency.ID] = agency
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop *model.Stop) error {
	f.stops[stop.ID] = stop
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route *model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) WriteTrip(trip *model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) BeginStopTimes() error {
	return nil
}

func (f *MemoryStorageFeed) WriteStopTime(stopTime *model.StopTime) error {
	f.stopTimes = append(f.stopTimes, stopTime)
	f.stopTimesByStop[stopTime.StopID] = append(f.stopTimesByStop[stopTime.StopID], stopTime)
	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error {
	// Writers may hand us records out of order. Keep everything
	// in file order.
	byRow := func(sts []*model.StopTime) {
		sort.SliceStable(sts, func(i, j int) bool {
			return sts[i].Row < sts[j].Row
		})
	}
	byRow(f.stopTimes)
	for _, sts := range f.stopTimesByStop {
		byRow(sts)
	}
	return nil
}

func (f *MemoryStorageFeed) Close() error {
	return nil
}

func (f *MemoryStorageFeed) Agencies() ([]*model.Agency, error) {
	agencies := []*model.Agency{}
	for _, v := range f.agency {
		agencies = append(agencies, v)
	}
	sort.Slice(agencies, func(i, j int) bool {
		return agencies[i].ID < agencies[j].ID
	})
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]*model.Stop, error) {
	stops := []*model.Stop{}
	for _, v := range f.stops {
		stops = append(stops, v)
	}
	sort.Slice(stops, func(i, j int) bool {
		return stops[i].ID < stops[j].ID
	})
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]*model.Route, error) {
	routes := []*model.Route{}
	for _, v := range f.routes {
		routes = append(routes, v)
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]*model.Trip, error) {
	trips := []*model.Trip{}
	for _, v := range f.trips {
		trips = append(trips, v)
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].ID < trips[j].ID
	})
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]*model.StopTime, error) {
	stoptimes := make([]*model.StopTime, len(f.stopTimes))
	copy(stoptimes, f.stopTimes)
	return stoptimes, nil
}

func (f *MemoryStorageFeed) NearbyStops(lat float64, lng float64, radiusKm float64, limit int) ([]model.Stop, error) {
	stops, err := f.Stops()
	if err != nil {
		return nil, err
	}
	return nearest(stops, lat, lng, radiusKm, limit), nil
}

func (f *MemoryStorageFeed) StopDirections(stopIDs []string) ([]model.StopDirection, error) {
	type key struct {
		StopID    string
		Direction string
	}
	type seen struct {
		dir model.StopDirection
		row int
	}

	first := map[key]seen{}
	for _, stopID := range stopIDs {
		for _, st := range f.stopTimesByStop[stopID] {
			k := key{st.StopID, st.Direction}
			if _, found := first[k]; found {
				continue
			}
			first[k] = seen{model.StopDirection{StopID: st.StopID, Direction: st.Direction}, st.Row}
		}
	}

	all := []seen{}
	for _, s := range first {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].row < all[j].row
	})

	directions := []model.StopDirection{}
	for _, s := range all {
		directions = append(directions, s.dir)
	}
	return directions, nil
}

func (f *MemoryStorageFeed) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	var candidates []*model.StopTime
	if len(filter.StopIDs) > 0 {
		seen := map[string]bool{}
		for _, stopID := range filter.StopIDs {
			if seen[stopID] {
				continue
			}
			seen[stopID] = true
			candidates = append(candidates, f.stopTimesByStop[stopID]...)
		}
	} else {
		candidates = f.stopTimes
	}

	events := []*StopTimeEvent{}
	for _, st := range candidates {
		if filter.ArrivalStart != "" && st.Arrival < filter.ArrivalStart {
			continue
		}
		if filter.ArrivalEnd != "" && st.Arrival > filter.ArrivalEnd {
			continue
		}

		event := &StopTimeEvent{StopTime: st}
		if trip, found := f.trips[st.TripID]; found {
			event.Trip = trip
			if route, found := f.routes[trip.RouteID]; found {
				event.Route = route
			}
		}
		events = append(events, event)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].StopTime.Arrival == events[j].StopTime.Arrival {
			return events[i].StopTime.Row < events[j].StopTime.Row
		}
		return events[i].StopTime.Arrival < events[j].StopTime.Arrival
	})

	return events, nil
}
