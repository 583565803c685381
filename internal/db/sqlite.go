package db

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ptes-fixtures/seeder/internal/models"

	_ "modernc.org/sqlite"
)

// schemaSQL is the single source of truth for the SQLite schema.
//
//go:embed schema.sql
var schemaSQL string

// sqliteTables lists every table in drop order (dependents first)
var sqliteTables = []string{"journey_legs", "journeys", "stops", "routes", "locations", "transport_modes"}

// SQLiteStore keeps the fixture in a single SQLite file with foreign keys enforced
type SQLiteStore struct {
	conn *sql.DB
}

// ConnectSQLite opens (creating if needed) a SQLite database file
func ConnectSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Paths from file: URIs may already carry query parameters
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	dsn := dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, connectionError("failed to open database", err)
	}

	// SQLite only supports one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, connectionError("failed to ping database", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Reset drops every fixture table and recreates the schema, including the
// location index
func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, table := range sqliteTables {
		if _, err := s.conn.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return writeError("failed to drop "+table, err)
		}
	}
	if _, err := s.conn.ExecContext(ctx, schemaSQL); err != nil {
		return writeError("failed to create schema", err)
	}
	return nil
}

// InsertTransportModes inserts the transport mode catalog
func (s *SQLiteStore) InsertTransportModes(ctx context.Context, modes []models.TransportMode) error {
	return s.inTx(ctx, "transport modes", `
		INSERT INTO transport_modes (mode_id, name, description) VALUES (?, ?, ?)
	`, len(modes), func(i int) []any {
		m := modes[i]
		return []any{m.ModeID, m.Name, m.Description}
	})
}

// TransportModes returns every transport mode
func (s *SQLiteStore) TransportModes(ctx context.Context) ([]models.TransportMode, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT mode_id, name, description FROM transport_modes ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transport modes: %w", err)
	}
	defer rows.Close()

	var modes []models.TransportMode
	for rows.Next() {
		var m models.TransportMode
		if err := rows.Scan(&m.ModeID, &m.Name, &m.Description); err != nil {
			return nil, fmt.Errorf("failed to scan transport mode: %w", err)
		}
		modes = append(modes, m)
	}
	return modes, rows.Err()
}

// InsertLocations inserts locations and returns their new IDs
func (s *SQLiteStore) InsertLocations(ctx context.Context, locations []models.Location) ([]string, error) {
	ids := newIDs(len(locations))
	err := s.inTx(ctx, "locations", `
		INSERT INTO locations (id, name, type, category, address, longitude, latitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, len(locations), func(i int) []any {
		l := locations[i]
		return []any{ids[i], l.Name, string(l.Type), string(l.Category), l.Address,
			l.Location.Longitude(), l.Location.Latitude()}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Locations returns every location
func (s *SQLiteStore) Locations(ctx context.Context) ([]models.Location, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, type, category, address, longitude, latitude
		FROM locations ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var (
			l        models.Location
			lon, lat float64
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.Category, &l.Address, &lon, &lat); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		l.Location = models.NewGeoPoint(lon, lat)
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// InsertRoutes inserts routes and returns their new IDs
func (s *SQLiteStore) InsertRoutes(ctx context.Context, routes []models.Route) ([]string, error) {
	ids := newIDs(len(routes))
	stops := make([]string, len(routes))
	for i, r := range routes {
		encoded, err := encodeIDList(r.Stops)
		if err != nil {
			return nil, writeError("failed to encode route stops", err)
		}
		stops[i] = encoded
	}

	err := s.inTx(ctx, "routes", `
		INSERT INTO routes (
			id, route_number, mode_id, start_location_id, end_location_id, stops,
			fare, estimated_time, service_type,
			timetable_start_time, timetable_end_time, timetable_frequency
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, len(routes), func(i int) []any {
		r := routes[i]
		return []any{ids[i], r.RouteNumber, r.ModeID, r.StartLocationID, r.EndLocationID, stops[i],
			r.Fare.StringFixed(2), r.EstimatedTime, string(r.ServiceType),
			r.Timetable.StartTime, r.Timetable.EndTime, r.Timetable.Frequency}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

const sqliteRouteColumns = `
	id, route_number, mode_id, start_location_id, end_location_id, stops,
	fare, estimated_time, service_type,
	timetable_start_time, timetable_end_time, timetable_frequency
`

// Routes returns every route
func (s *SQLiteStore) Routes(ctx context.Context) ([]models.Route, error) {
	return s.queryRoutes(ctx, "SELECT "+sqliteRouteColumns+" FROM routes ORDER BY rowid")
}

// RoutesByID returns the routes with the given IDs, in the same order
func (s *SQLiteStore) RoutesByID(ctx context.Context, ids []string) ([]models.Route, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	found, err := s.queryRoutes(ctx, "SELECT "+sqliteRouteColumns+" FROM routes WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	return orderRoutes(ids, found)
}

func (s *SQLiteStore) queryRoutes(ctx context.Context, query string, args ...any) ([]models.Route, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var (
			r           models.Route
			stops, fare string
		)
		err := rows.Scan(&r.ID, &r.RouteNumber, &r.ModeID, &r.StartLocationID, &r.EndLocationID, &stops,
			&fare, &r.EstimatedTime, &r.ServiceType,
			&r.Timetable.StartTime, &r.Timetable.EndTime, &r.Timetable.Frequency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		if r.Stops, err = decodeIDList(stops); err != nil {
			return nil, fmt.Errorf("failed to decode stops of route %s: %w", r.ID, err)
		}
		if r.Fare, err = decimal.NewFromString(fare); err != nil {
			return nil, fmt.Errorf("failed to parse fare of route %s: %w", r.ID, err)
		}
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// SetRouteStops replaces the stop list of one route
func (s *SQLiteStore) SetRouteStops(ctx context.Context, routeID string, locationIDs []string) error {
	encoded, err := encodeIDList(locationIDs)
	if err != nil {
		return writeError("failed to encode route stops", err)
	}
	result, err := s.conn.ExecContext(ctx, "UPDATE routes SET stops = ? WHERE id = ?", encoded, routeID)
	if err != nil {
		return writeError("failed to update stops of route "+routeID, err)
	}
	if n, _ := result.RowsAffected(); n != 1 {
		return writeError("failed to update stops", fmt.Errorf("route %s not found", routeID))
	}
	return nil
}

// InsertStops inserts stops and returns their new IDs
func (s *SQLiteStore) InsertStops(ctx context.Context, stops []models.Stop) ([]string, error) {
	ids := newIDs(len(stops))
	err := s.inTx(ctx, "stops", `
		INSERT INTO stops (id, route_id, stop_sequence, location_id, arrival_time, departure_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, len(stops), func(i int) []any {
		st := stops[i]
		return []any{ids[i], st.RouteID, st.StopSequence, st.LocationID, st.ArrivalTime, st.DepartureTime}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Stops returns every stop
func (s *SQLiteStore) Stops(ctx context.Context) ([]models.Stop, error) {
	return s.queryStops(ctx, `
		SELECT id, route_id, stop_sequence, location_id, arrival_time, departure_time
		FROM stops ORDER BY rowid
	`)
}

// StopsByRoute returns one route's stops ordered by stop_sequence
func (s *SQLiteStore) StopsByRoute(ctx context.Context, routeID string) ([]models.Stop, error) {
	return s.queryStops(ctx, `
		SELECT id, route_id, stop_sequence, location_id, arrival_time, departure_time
		FROM stops WHERE route_id = ? ORDER BY stop_sequence
	`, routeID)
}

func (s *SQLiteStore) queryStops(ctx context.Context, query string, args ...any) ([]models.Stop, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stops: %w", err)
	}
	defer rows.Close()

	var stops []models.Stop
	for rows.Next() {
		var st models.Stop
		if err := rows.Scan(&st.ID, &st.RouteID, &st.StopSequence, &st.LocationID, &st.ArrivalTime, &st.DepartureTime); err != nil {
			return nil, fmt.Errorf("failed to scan stop: %w", err)
		}
		stops = append(stops, st)
	}
	return stops, rows.Err()
}

// InsertJourneys inserts journeys with their legs and returns their new IDs
func (s *SQLiteStore) InsertJourneys(ctx context.Context, journeys []models.Journey) ([]string, error) {
	ids := newIDs(len(journeys))

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, writeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	journeyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journeys (id, origin_id, destination_id, total_fare, total_time, number_of_interchanges)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, writeError("failed to prepare journey statement", err)
	}
	defer journeyStmt.Close()

	legStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO journey_legs (
			journey_id, leg_index, route_id, mode_id, boarding_stop_id, alighting_stop_id,
			fare, estimated_time, interchanges
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, writeError("failed to prepare journey leg statement", err)
	}
	defer legStmt.Close()

	for i, j := range journeys {
		_, err := journeyStmt.ExecContext(ctx, ids[i], j.OriginID, j.DestinationID,
			j.TotalFare.StringFixed(2), j.TotalTime, j.NumberOfInterchanges)
		if err != nil {
			return nil, writeError("failed to insert journey", err)
		}
		for idx, leg := range j.Routes {
			_, err := legStmt.ExecContext(ctx, ids[i], idx, leg.RouteID, leg.ModeID,
				leg.BoardingStopID, leg.AlightingStopID, leg.Fare.StringFixed(2), leg.EstimatedTime, leg.Interchanges)
			if err != nil {
				return nil, writeError("failed to insert journey leg", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, writeError("failed to commit journeys", err)
	}
	return ids, nil
}

// Journeys returns every journey with its legs
func (s *SQLiteStore) Journeys(ctx context.Context) ([]models.Journey, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, origin_id, destination_id, total_fare, total_time, number_of_interchanges
		FROM journeys ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journeys: %w", err)
	}
	defer rows.Close()

	var journeys []models.Journey
	index := make(map[string]int)
	for rows.Next() {
		var (
			j    models.Journey
			fare string
		)
		if err := rows.Scan(&j.ID, &j.OriginID, &j.DestinationID, &fare, &j.TotalTime, &j.NumberOfInterchanges); err != nil {
			return nil, fmt.Errorf("failed to scan journey: %w", err)
		}
		if j.TotalFare, err = decimal.NewFromString(fare); err != nil {
			return nil, fmt.Errorf("failed to parse fare of journey %s: %w", j.ID, err)
		}
		index[j.ID] = len(journeys)
		journeys = append(journeys, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	legRows, err := s.conn.QueryContext(ctx, `
		SELECT journey_id, route_id, mode_id, boarding_stop_id, alighting_stop_id,
			fare, estimated_time, interchanges
		FROM journey_legs ORDER BY journey_id, leg_index
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query journey legs: %w", err)
	}
	defer legRows.Close()

	for legRows.Next() {
		var (
			journeyID, fare string
			leg             models.JourneyLeg
		)
		err := legRows.Scan(&journeyID, &leg.RouteID, &leg.ModeID, &leg.BoardingStopID, &leg.AlightingStopID,
			&fare, &leg.EstimatedTime, &leg.Interchanges)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journey leg: %w", err)
		}
		if leg.Fare, err = decimal.NewFromString(fare); err != nil {
			return nil, fmt.Errorf("failed to parse leg fare of journey %s: %w", journeyID, err)
		}
		if i, ok := index[journeyID]; ok {
			journeys[i].Routes = append(journeys[i].Routes, leg)
		}
	}
	return journeys, legRows.Err()
}

// Counts returns the number of rows per collection
func (s *SQLiteStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.Collections()))
	for _, name := range models.Collections() {
		var n int64
		if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+name).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// GeoIndexes lists the location indexes on the locations table
func (s *SQLiteStore) GeoIndexes(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND tbl_name = 'locations' AND name LIKE 'idx_locations_location%'
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// inTx runs one prepared insert n times inside a transaction
func (s *SQLiteStore) inTx(ctx context.Context, what, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return writeError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return writeError("failed to prepare "+what+" statement", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return writeError(fmt.Sprintf("failed to insert %s #%d", what, i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return writeError("failed to commit "+what, err)
	}
	return nil
}

func newIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = uuid.New().String()
	}
	return ids
}

func encodeIDList(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return string(b), err
}

func decodeIDList(s string) ([]string, error) {
	ids := []string{}
	if s == "" {
		return ids, nil
	}
	err := json.Unmarshal([]byte(s), &ids)
	return ids, err
}

// orderRoutes arranges found in the order of ids, failing on any missing ID
func orderRoutes(ids []string, found []models.Route) ([]models.Route, error) {
	byID := make(map[string]models.Route, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	ordered := make([]models.Route, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("route %s not found", id)
		}
		ordered = append(ordered, r)
	}
	return ordered, nil
}
