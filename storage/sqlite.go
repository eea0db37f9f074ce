package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"tidbyt.dev/stopboard/model"
)

// Keeps each feed in its own in-memory SQLite database. Nothing is
// written to disk.
type SQLiteStorage struct {
	feeds map[string]*sql.DB
}

type SQLiteFeedWriter struct {
	db                  *sql.DB
	stopTimeInsertQuery *sql.Stmt
	stopTimeInsertTx    *sql.Tx
}

type SQLiteFeedReader struct {
	db *sql.DB
}

func NewSQLiteStorage() (*SQLiteStorage, error) {
	return &SQLiteStorage{
		feeds: map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) GetReader(feedID string) (FeedReader, error) {
	db, found := s.feeds[feedID]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return &SQLiteFeedReader{
		db: db,
	}, nil
}

func (s *SQLiteStorage) DeleteFeed(feedID string) error {
	db, found := s.feeds[feedID]
	if !found {
		return fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	delete(s.feeds, feedID)
	return db.Close()
}

func (s *SQLiteStorage) GetWriter(feedID string) (FeedWriter, error) {
	if old, found := s.feeds[feedID]; found {
		old.Close()
		delete(s.feeds, feedID)
	}

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a database of its own, so
	// stick to exactly one.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	for _, table := range []struct {
		name  string
		query string
	}{
		{"agency", `
CREATE TABLE agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);`},
		{"stops", `
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    code TEXT,
    name TEXT NOT NULL,
    description TEXT,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    location_type INTEGER NOT NULL,
    parent_station TEXT
);`},
		{"routes", `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT,
    type INTEGER NOT NULL
);`},
		{"trips", `
CREATE TABLE trips (
    id TEXT PRIMARY KEY,
    route_id TEXT,
    service_id TEXT,
    headsign TEXT,
    direction_id INTEGER
);
CREATE INDEX trips_route_id ON trips (route_id);
`},
		{"stop_times", `
CREATE TABLE stop_times (
    file_row INTEGER NOT NULL,
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT,
    direction TEXT NOT NULL
);
CREATE INDEX stop_times_stop_id ON stop_times (stop_id);
CREATE INDEX stop_times_arrival_time ON stop_times (arrival_time, file_row);
`},
	} {
		_, err = db.Exec(table.query)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", table.name, err)
		}
	}

	s.feeds[feedID] = db

	return &SQLiteFeedWriter{
		db: db,
	}, nil
}

func (f *SQLiteFeedWriter) WriteAgency(a *model.Agency) error {
	_, err := f.db.Exec(`
INSERT INTO agency (id, name, url, timezone)
VALUES (?, ?, ?, ?)`,
		a.ID,
		a.Name,
		a.URL,
		a.Timezone,
	)
	if err != nil {
		return fmt.Errorf("inserting agency: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := f.db.Exec(`
INSERT INTO stops (id, code, name, description, lat, lon, location_type, parent_station)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		stop.ID,
		stop.Code,
		stop.Name,
		stop.Desc,
		stop.Lat,
		stop.Lon,
		stop.LocationType,
		stop.ParentStation,
	)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteRoute(route *model.Route) error {
	_, err := f.db.Exec(`
INSERT INTO routes (id, agency_id, short_name, long_name, type)
VALUES (?, ?, ?, ?, ?)`,
		route.ID,
		route.AgencyID,
		route.ShortName,
		route.LongName,
		route.Type,
	)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteTrip(trip *model.Trip) error {
	_, err := f.db.Exec(`
INSERT INTO trips (id, route_id, service_id, headsign, direction_id)
VALUES (?, ?, ?, ?, ?)`,
		trip.ID,
		trip.RouteID,
		trip.ServiceID,
		trip.Headsign,
		trip.DirectionID,
	)
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) BeginStopTimes() error {
	// transaction with prepared statement.
	var err error
	f.stopTimeInsertTx, err = f.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_time insert transaction: %w", err)
	}

	f.stopTimeInsertQuery, err = f.stopTimeInsertTx.Prepare(`
INSERT INTO stop_times (file_row, trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign, direction)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		return fmt.Errorf("preparing stop_time insert: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	if f.stopTimeInsertQuery == nil {
		return fmt.Errorf("inserting stop_time: BeginStopTimes not called")
	}

	_, err := f.stopTimeInsertQuery.Exec(
		stopTime.Row,
		stopTime.TripID,
		stopTime.StopID,
		stopTime.StopSequence,
		stopTime.Arrival,
		stopTime.Departure,
		stopTime.Headsign,
		stopTime.Direction,
	)
	if err != nil {
		f.stopTimeInsertQuery.Close()
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		f.stopTimeInsertQuery = nil
		return fmt.Errorf("inserting stop_time: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) EndStopTimes() error {
	if f.stopTimeInsertTx == nil {
		return fmt.Errorf("committing stop_times: no transaction in progress")
	}

	// commit transaction and clean up
	f.stopTimeInsertQuery.Close()
	err := f.stopTimeInsertTx.Commit()
	if err != nil {
		return fmt.Errorf("committing stop_time insert transaction: %w", err)
	}
	f.stopTimeInsertTx = nil
	f.stopTimeInsertQuery = nil

	return nil
}

func (f *SQLiteFeedWriter) Close() error {
	// The database stays open for readers. A transaction left
	// behind by a failed parse is rolled back.
	if f.stopTimeInsertTx != nil {
		f.stopTimeInsertQuery.Close()
		err := f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		f.stopTimeInsertQuery = nil
		if err != nil {
			return fmt.Errorf("rolling back stop_times: %w", err)
		}
	}
	return nil
}

func (f *SQLiteFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := f.db.Query(`
SELECT id, name, url, timezone
FROM agency
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying agencies: %w", err)
	}
	defer rows.Close()

	agencies := []*model.Agency{}
	for rows.Next() {
		a := &model.Agency{}
		err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scanning agency: %w", err)
		}
		agencies = append(agencies, a)
	}

	return agencies, rows.Err()
}

func (f *SQLiteFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := f.db.Query(`
SELECT id, code, name, description, lat, lon, location_type, parent_station
FROM stops
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	stops := []*model.Stop{}
	for rows.Next() {
		s := &model.Stop{}
		err := rows.Scan(
			&s.ID,
			&s.Code,
			&s.Name,
			&s.Desc,
			&s.Lat,
			&s.Lon,
			&s.LocationType,
			&s.ParentStation,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}

	return stops, rows.Err()
}

func (f *SQLiteFeedReader) Routes() ([]*model.Route, error) {
	rows, err := f.db.Query(`
SELECT id, agency_id, short_name, long_name, type
FROM routes
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	routes := []*model.Route{}
	for rows.Next() {
		r := &model.Route{}
		err := rows.Scan(&r.ID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Type)
		if err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, r)
	}

	return routes, rows.Err()
}

func (f *SQLiteFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := f.db.Query(`
SELECT id, route_id, service_id, headsign, direction_id
FROM trips
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	trips := []*model.Trip{}
	for rows.Next() {
		t := &model.Trip{}
		err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.DirectionID)
		if err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, t)
	}

	return trips, rows.Err()
}

func (f *SQLiteFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := f.db.Query(`
SELECT file_row, trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign, direction
FROM stop_times
ORDER BY file_row`)
	if err != nil {
		return nil, fmt.Errorf("querying stop_times: %w", err)
	}
	defer rows.Close()

	stopTimes := []*model.StopTime{}
	for rows.Next() {
		st := &model.StopTime{}
		err := rows.Scan(
			&st.Row,
			&st.TripID,
			&st.StopID,
			&st.StopSequence,
			&st.Arrival,
			&st.Departure,
			&st.Headsign,
			&st.Direction,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop_time: %w", err)
		}
		stopTimes = append(stopTimes, st)
	}

	return stopTimes, rows.Err()
}

func (f *SQLiteFeedReader) NearbyStops(lat float64, lng float64, radiusKm float64, limit int) ([]model.Stop, error) {
	stops, err := f.Stops()
	if err != nil {
		return nil, fmt.Errorf("getting all stops: %w", err)
	}

	return nearest(stops, lat, lng, radiusKm, limit), nil
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "?"
	}
	return strings.Join(p, ", ")
}

func (f *SQLiteFeedReader) StopDirections(stopIDs []string) ([]model.StopDirection, error) {
	if len(stopIDs) == 0 {
		return []model.StopDirection{}, nil
	}

	args := []interface{}{}
	for _, id := range stopIDs {
		args = append(args, id)
	}

	rows, err := f.db.Query(`
SELECT stop_id, direction, MIN(file_row) AS first_row
FROM stop_times
WHERE stop_id IN (`+placeholders(len(stopIDs))+`)
GROUP BY stop_id, direction
ORDER BY first_row`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stop directions: %w", err)
	}
	defer rows.Close()

	directions := []model.StopDirection{}
	for rows.Next() {
		var d model.StopDirection
		var firstRow int
		err := rows.Scan(&d.StopID, &d.Direction, &firstRow)
		if err != nil {
			return nil, fmt.Errorf("scanning stop direction: %w", err)
		}
		directions = append(directions, d)
	}

	return directions, rows.Err()
}

func (f *SQLiteFeedReader) StopTimeEvents(filter StopTimeEventFilter) ([]*StopTimeEvent, error) {
	baseQuery := `
SELECT
    stop_times.file_row,
    stop_times.trip_id,
    stop_times.stop_id,
    stop_times.stop_sequence,
    stop_times.arrival_time,
    stop_times.departure_time,
    stop_times.headsign,
    stop_times.direction,
    trips.id,
    trips.route_id,
    trips.service_id,
    trips.headsign,
    trips.direction_id,
    routes.id,
    routes.agency_id,
    routes.short_name,
    routes.long_name,
    routes.type
FROM stop_times
LEFT JOIN trips ON stop_times.trip_id = trips.id
LEFT JOIN routes ON trips.route_id = routes.id
`

	// Apply filters to query
	fParams, fVals := []string{}, []interface{}{}

	if len(filter.StopIDs) > 0 {
		fParams = append(fParams, "stop_times.stop_id IN ("+placeholders(len(filter.StopIDs))+")")
		for _, id := range filter.StopIDs {
			fVals = append(fVals, id)
		}
	}

	if filter.ArrivalStart != "" {
		fParams = append(fParams, "stop_times.arrival_time >= ?")
		fVals = append(fVals, filter.ArrivalStart)
	}

	if filter.ArrivalEnd != "" {
		fParams = append(fParams, "stop_times.arrival_time <= ?")
		fVals = append(fVals, filter.ArrivalEnd)
	}

	query := baseQuery
	if len(fParams) > 0 {
		query += " WHERE " + strings.Join(fParams, " AND ")
	}
	query += " ORDER BY stop_times.arrival_time, stop_times.file_row"

	rows, err := f.db.Query(query, fVals...)
	if err != nil {
		return nil, fmt.Errorf("querying for stop time events: %w", err)
	}
	defer rows.Close()

	events := []*StopTimeEvent{}
	for rows.Next() {
		st := &model.StopTime{}
		var tripID, tripRouteID, tripServiceID, tripHeadsign sql.NullString
		var tripDirectionID sql.NullInt64
		var routeID, routeAgencyID, routeShortName, routeLongName sql.NullString
		var routeType sql.NullInt64

		err := rows.Scan(
			&st.Row,
			&st.TripID,
			&st.StopID,
			&st.StopSequence,
			&st.Arrival,
			&st.Departure,
			&st.Headsign,
			&st.Direction,
			&tripID,
			&tripRouteID,
			&tripServiceID,
			&tripHeadsign,
			&tripDirectionID,
			&routeID,
			&routeAgencyID,
			&routeShortName,
			&routeLongName,
			&routeType,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning stop time event: %w", err)
		}

		event := &StopTimeEvent{StopTime: st}
		if tripID.Valid {
			event.Trip = &model.Trip{
				ID:          tripID.String,
				RouteID:     tripRouteID.String,
				ServiceID:   tripServiceID.String,
				Headsign:    tripHeadsign.String,
				DirectionID: int8(tripDirectionID.Int64),
			}
		}
		if routeID.Valid {
			event.Route = &model.Route{
				ID:        routeID.String,
				AgencyID:  routeAgencyID.String,
				ShortName: routeShortName.String,
				LongName:  routeLongName.String,
				Type:      model.RouteType(routeType.Int64),
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}
