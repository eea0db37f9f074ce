package model

import (
	"strconv"
	"time"
)

// Holds all external facing types and constants.

type LocationType int

const (
	LocationTypeStop LocationType = iota
	LocationTypeStation
	LocationTypeEntranceExit
	LocationTypeGenericNode
	LocationTypeBoardingArea
)

type RouteType int

const (
	RouteTypeTram       RouteType = 0
	RouteTypeSubway               = 1
	RouteTypeRail                 = 2
	RouteTypeBus                  = 3
	RouteTypeFerry                = 4
	RouteTypeCable                = 5
	RouteTypeAerial               = 6
	RouteTypeFunicular            = 7
	RouteTypeTrolleybus           = 11
	RouteTypeMonorail             = 12
)

// Labels used when a trip only carries a direction_id.
const (
	DirectionOutbound = "Outbound"
	DirectionInbound  = "Inbound"
)

type Agency struct {
	ID       string
	Name     string
	URL      string
	Timezone string
}

type Stop struct {
	ID            string
	Code          string
	Name          string
	Desc          string
	Lat           float64
	Lon           float64
	LocationType  LocationType
	ParentStation string
}

// DirectionID is -1 when trips.txt doesn't provide one.
type Trip struct {
	ID          string
	RouteID     string
	ServiceID   string
	Headsign    string
	DirectionID int8
}

type Route struct {
	ID        string
	AgencyID  string
	ShortName string
	LongName  string
	Type      RouteType
}

// Label shown for the route on the board.
func (r *Route) Label() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	if r.LongName != "" {
		return r.LongName
	}
	return r.ID
}

// A single timetable entry. Arrival and Departure are GTFS style
// HHMMSS strings, with hours possibly exceeding 23. Row is the
// (1-based) position of the record in stop_times.txt and breaks ties
// between equal arrival times.
type StopTime struct {
	TripID       string
	StopID       string
	Headsign     string
	Direction    string
	StopSequence uint32
	Arrival      string
	Departure    string
	Row          int
}

func (st *StopTime) ArrivalTime() time.Duration {
	return hhmmss(st.Arrival)
}

func (st *StopTime) DepartureTime() time.Duration {
	return hhmmss(st.Departure)
}

func hhmmss(s string) time.Duration {
	if len(s) != 6 {
		return 0
	}
	h, _ := strconv.Atoi(s[0:2])
	m, _ := strconv.Atoi(s[2:4])
	sec, _ := strconv.Atoi(s[4:6])
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
}

// A stop selected for display. Name and Line, when set, take
// precedence over what the timetable says.
type BoardStop struct {
	ID   string
	Name string
	Line string
}

// A distinct direction served at a stop.
type StopDirection struct {
	StopID    string
	Direction string
}

// A vehicle scheduled to arrive at a stop.
type Arrival struct {
	Time     time.Time
	TripID   string
	RouteID  string
	Line     string
	Headsign string
}

// Upcoming arrivals for a (stop, direction) pair, soonest first.
type ArrivalResult struct {
	StopID    string
	Direction string
	Arrivals  []Arrival
}

// Arrival times only, soonest first.
func (r ArrivalResult) Times() []time.Time {
	times := make([]time.Time, 0, len(r.Arrivals))
	for _, a := range r.Arrivals {
		times = append(times, a.Time)
	}
	return times
}
