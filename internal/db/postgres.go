package db

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ptes-fixtures/seeder/internal/models"
)

//go:embed postgres_schema.sql
var postgresSchemaSQL string

// PostgresStore keeps the fixture in PostgreSQL tables with foreign keys
// and a GiST index on the location point
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a connection pool and verifies it with a ping
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, connectionError("failed to create connection pool", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, connectionError("failed to ping database", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the pool
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// Reset drops every fixture table and recreates the schema
func (p *PostgresStore) Reset(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		DROP TABLE IF EXISTS journey_legs, journeys, stops, routes, locations, transport_modes
	`)
	if err != nil {
		return writeError("failed to drop tables", err)
	}
	if _, err := p.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return writeError("failed to create schema", err)
	}
	return nil
}

// InsertTransportModes inserts the transport mode catalog
func (p *PostgresStore) InsertTransportModes(ctx context.Context, modes []models.TransportMode) error {
	batch := &pgx.Batch{}
	for _, m := range modes {
		batch.Queue(`INSERT INTO transport_modes (mode_id, name, description) VALUES ($1, $2, $3)`,
			m.ModeID, m.Name, m.Description)
	}
	return p.sendBatch(ctx, "transport modes", batch)
}

// TransportModes returns every transport mode
func (p *PostgresStore) TransportModes(ctx context.Context) ([]models.TransportMode, error) {
	rows, err := p.pool.Query(ctx, `SELECT mode_id, name, description FROM transport_modes ORDER BY seq`)
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
func (p *PostgresStore) InsertLocations(ctx context.Context, locations []models.Location) ([]string, error) {
	ids := newIDs(len(locations))
	batch := &pgx.Batch{}
	for i, l := range locations {
		point := pgtype.Point{
			P:     pgtype.Vec2{X: l.Location.Longitude(), Y: l.Location.Latitude()},
			Valid: true,
		}
		batch.Queue(`
			INSERT INTO locations (id, name, type, category, address, location)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ids[i], l.Name, string(l.Type), string(l.Category), l.Address, point)
	}
	if err := p.sendBatch(ctx, "locations", batch); err != nil {
		return nil, err
	}
	return ids, nil
}

// Locations returns every location
func (p *PostgresStore) Locations(ctx context.Context) ([]models.Location, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, type, category, address, location[0], location[1]
		FROM locations ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var (
			l                   models.Location
			typ, category       string
			longitude, latitude float64
		)
		if err := rows.Scan(&l.ID, &l.Name, &typ, &category, &l.Address, &longitude, &latitude); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		l.Type = models.LocationType(typ)
		l.Category = models.LocationCategory(category)
		l.Location = models.NewGeoPoint(longitude, latitude)
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// InsertRoutes inserts routes and returns their new IDs
func (p *PostgresStore) InsertRoutes(ctx context.Context, routes []models.Route) ([]string, error) {
	ids := newIDs(len(routes))
	batch := &pgx.Batch{}
	for i, r := range routes {
		batch.Queue(`
			INSERT INTO routes (
				id, route_number, mode_id, start_location_id, end_location_id, stops,
				fare, estimated_time, service_type,
				timetable_start_time, timetable_end_time, timetable_frequency
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, ids[i], r.RouteNumber, r.ModeID, r.StartLocationID, r.EndLocationID, nonNil(r.Stops),
			r.Fare.StringFixed(2), r.EstimatedTime, string(r.ServiceType),
			r.Timetable.StartTime, r.Timetable.EndTime, r.Timetable.Frequency)
	}
	if err := p.sendBatch(ctx, "routes", batch); err != nil {
		return nil, err
	}
	return ids, nil
}

const postgresRouteColumns = `
	id, route_number, mode_id, start_location_id, end_location_id, stops,
	fare::text, estimated_time, service_type,
	timetable_start_time, timetable_end_time, timetable_frequency
`

// Routes returns every route
func (p *PostgresStore) Routes(ctx context.Context) ([]models.Route, error) {
	return p.queryRoutes(ctx, "SELECT "+postgresRouteColumns+" FROM routes ORDER BY seq")
}

// RoutesByID returns the routes with the given IDs, in the same order
func (p *PostgresStore) RoutesByID(ctx context.Context, ids []string) ([]models.Route, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	found, err := p.queryRoutes(ctx, "SELECT "+postgresRouteColumns+" FROM routes WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, err
	}
	return orderRoutes(ids, found)
}

func (p *PostgresStore) queryRoutes(ctx context.Context, query string, args ...any) ([]models.Route, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		var (
			r                 models.Route
			fare, serviceType string
		)
		err := rows.Scan(&r.ID, &r.RouteNumber, &r.ModeID, &r.StartLocationID, &r.EndLocationID, &r.Stops,
			&fare, &r.EstimatedTime, &serviceType,
			&r.Timetable.StartTime, &r.Timetable.EndTime, &r.Timetable.Frequency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		if r.Fare, err = decimal.NewFromString(fare); err != nil {
			return nil, fmt.Errorf("failed to parse fare of route %s: %w", r.ID, err)
		}
		r.ServiceType = models.ServiceType(serviceType)
		r.Stops = nonNil(r.Stops)
		routes = append(routes, r)
	}
	return routes, rows.Err()
}

// SetRouteStops replaces the stop list of one route
func (p *PostgresStore) SetRouteStops(ctx context.Context, routeID string, locationIDs []string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE routes SET stops = $1 WHERE id = $2`, nonNil(locationIDs), routeID)
	if err != nil {
		return writeError("failed to update stops of route "+routeID, err)
	}
	if tag.RowsAffected() != 1 {
		return writeError("failed to update stops", fmt.Errorf("route %s not found", routeID))
	}
	return nil
}

// InsertStops inserts stops and returns their new IDs
func (p *PostgresStore) InsertStops(ctx context.Context, stops []models.Stop) ([]string, error) {
	ids := newIDs(len(stops))
	batch := &pgx.Batch{}
	for i, st := range stops {
		batch.Queue(`
			INSERT INTO stops (id, route_id, stop_sequence, location_id, arrival_time, departure_time)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ids[i], st.RouteID, st.StopSequence, st.LocationID, st.ArrivalTime, st.DepartureTime)
	}
	if err := p.sendBatch(ctx, "stops", batch); err != nil {
		return nil, err
	}
	return ids, nil
}

// Stops returns every stop
func (p *PostgresStore) Stops(ctx context.Context) ([]models.Stop, error) {
	return p.queryStops(ctx, `
		SELECT id, route_id, stop_sequence, location_id, arrival_time, departure_time
		FROM stops ORDER BY seq
	`)
}

// StopsByRoute returns one route's stops ordered by stop_sequence
func (p *PostgresStore) StopsByRoute(ctx context.Context, routeID string) ([]models.Stop, error) {
	return p.queryStops(ctx, `
		SELECT id, route_id, stop_sequence, location_id, arrival_time, departure_time
		FROM stops WHERE route_id = $1 ORDER BY stop_sequence
	`, routeID)
}

func (p *PostgresStore) queryStops(ctx context.Context, query string, args ...any) ([]models.Stop, error) {
	rows, err := p.pool.Query(ctx, query, args...)
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
func (p *PostgresStore) InsertJourneys(ctx context.Context, journeys []models.Journey) ([]string, error) {
	ids := newIDs(len(journeys))
	batch := &pgx.Batch{}
	for i, j := range journeys {
		batch.Queue(`
			INSERT INTO journeys (id, origin_id, destination_id, total_fare, total_time, number_of_interchanges)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ids[i], j.OriginID, j.DestinationID, j.TotalFare.StringFixed(2), j.TotalTime, j.NumberOfInterchanges)
		for idx, leg := range j.Routes {
			batch.Queue(`
				INSERT INTO journey_legs (
					journey_id, leg_index, route_id, mode_id, boarding_stop_id, alighting_stop_id,
					fare, estimated_time, interchanges
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, ids[i], idx, leg.RouteID, leg.ModeID, leg.BoardingStopID, leg.AlightingStopID,
				leg.Fare.StringFixed(2), leg.EstimatedTime, leg.Interchanges)
		}
	}
	if err := p.sendBatch(ctx, "journeys", batch); err != nil {
		return nil, err
	}
	return ids, nil
}

// Journeys returns every journey with its legs
func (p *PostgresStore) Journeys(ctx context.Context) ([]models.Journey, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, origin_id, destination_id, total_fare::text, total_time, number_of_interchanges
		FROM journeys ORDER BY seq
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
		return nil, fmt.Errorf("error iterating journey rows: %w", err)
	}

	legRows, err := p.pool.Query(ctx, `
		SELECT journey_id, route_id, mode_id, boarding_stop_id, alighting_stop_id,
			fare::text, estimated_time, interchanges
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
func (p *PostgresStore) Counts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(models.Collections()))
	for _, name := range models.Collections() {
		var n int64
		if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+pgx.Identifier{name}.Sanitize()).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// GeoIndexes lists the GiST indexes on locations
func (p *PostgresStore) GeoIndexes(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT indexname FROM pg_indexes
		WHERE schemaname = current_schema() AND tablename = 'locations' AND indexdef ILIKE '%USING gist%'
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

// sendBatch runs batch inside one transaction
func (p *PostgresStore) sendBatch(ctx context.Context, what string, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return writeError("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return writeError("failed to insert "+what, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return writeError("failed to commit "+what, err)
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
