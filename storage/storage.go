package storage

import (
	"errors"

	"tidbyt.dev/stopboard/model"
)

var ErrFeedNotFound = errors.New("feed not found")

type Storage interface {
	// Gets a reader for the feed with the given hash.
	GetReader(feed string) (FeedReader, error)

	// Gets a writer for the feed with the given hash. Any
	// existing data for the feed is discarded.
	GetWriter(feed string) (FeedWriter, error)

	// Drops all data for the feed with the given hash.
	DeleteFeed(feed string) error
}

// Metadata for a parsed timetable. The parsed data can be accessed via
// FeedReader.
type FeedMetadata struct {
	Hash          string
	Path          string
	Timezone      string
	MaxArrival    string
	StopTimeCount int
}

// Writes GTFS records for a single feed.
//
// As stop_times.txt tends to be very large, BeginStopTimes() and
// EndStopTimes() are called before and after all calls to
// WriteStopTime(), allowing transactions/batching/whathaveyou.
type FeedWriter interface {
	WriteAgency(agency *model.Agency) error
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	WriteTrip(trip *model.Trip) error
	WriteStopTime(stopTime *model.StopTime) error
	BeginStopTimes() error
	EndStopTimes() error
	Close() error
}

type FeedReader interface {
	Agencies() ([]*model.Agency, error)
	Stops() ([]*model.Stop, error)
	Routes() ([]*model.Route, error)
	Trips() ([]*model.Trip, error)

	// All stop_times, in file order.
	StopTimes() ([]*model.StopTime, error)

	// List of stops near given lat/lng, ordered by distance. At
	// most limit results (pass 0 for no limit), and only stops
	// within radiusKm (pass 0 for no radius).
	//
	// Stations are returned when available. Stops that lack a
	// parent_station are also included, to accommodate feeds
	// without stations.
	NearbyStops(lat float64, lng float64, radiusKm float64, limit int) ([]model.Stop, error)

	// Distinct directions served at the given stops, in the order
	// they first appear in stop_times.
	StopDirections(stopIDs []string) ([]model.StopDirection, error)

	// List of stop_times and associated data matching the
	// provided filter, ordered by arrival time and then by
	// position in stop_times.txt.
	StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error)
}

// Filter for StopTimeEvents()
type StopTimeEventFilter struct {
	// Limit results to events at the given stops.
	StopIDs []string

	// Limit results to stop_times with arrival within a certain
	// range (inclusive.) Times given as "HHMMSS".
	ArrivalStart string
	ArrivalEnd   string
}

// Holds information about a stop_time record. Trip and Route are nil
// when the feed lacks trips.txt or routes.txt.
type StopTimeEvent struct {
	StopTime *model.StopTime
	Trip     *model.Trip
	Route    *model.Route
}
