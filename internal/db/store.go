package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ptes-fixtures/seeder/internal/models"
)

var (
	// ErrConnection means the store could not be reached
	ErrConnection = errors.New("store connection failed")

	// ErrWrite means an insert, update, drop or index operation failed
	ErrWrite = errors.New("store write failed")
)

// Store is the document store the fixture is written to. Every backend
// assigns identifiers on insertion and returns them in input order.
// List methods return documents in insertion order.
type Store interface {
	// Reset drops every fixture collection and recreates the single
	// geospatial index on locations.location. Safe to call repeatedly.
	Reset(ctx context.Context) error

	InsertTransportModes(ctx context.Context, modes []models.TransportMode) error
	TransportModes(ctx context.Context) ([]models.TransportMode, error)

	InsertLocations(ctx context.Context, locations []models.Location) ([]string, error)
	Locations(ctx context.Context) ([]models.Location, error)

	InsertRoutes(ctx context.Context, routes []models.Route) ([]string, error)
	Routes(ctx context.Context) ([]models.Route, error)
	// RoutesByID returns the routes in the order of ids
	RoutesByID(ctx context.Context, ids []string) ([]models.Route, error)
	// SetRouteStops replaces the stop list of one route
	SetRouteStops(ctx context.Context, routeID string, locationIDs []string) error

	InsertStops(ctx context.Context, stops []models.Stop) ([]string, error)
	Stops(ctx context.Context) ([]models.Stop, error)
	// StopsByRoute returns one route's stops ordered by stop_sequence
	StopsByRoute(ctx context.Context, routeID string) ([]models.Stop, error)

	InsertJourneys(ctx context.Context, journeys []models.Journey) ([]string, error)
	Journeys(ctx context.Context) ([]models.Journey, error)

	// Counts returns the number of documents per collection
	Counts(ctx context.Context) (map[string]int64, error)
	// GeoIndexes lists the geospatial indexes present on locations
	GeoIndexes(ctx context.Context) ([]string, error)

	Close() error
}

// Open connects to the backend selected by the URI scheme:
// mongodb:// and mongodb+srv:// for MongoDB, postgres:// and postgresql://
// for PostgreSQL, sqlite:// and file: for SQLite. database names the MongoDB
// database; the SQL backends take it from the URI.
func Open(ctx context.Context, uri, database string) (Store, error) {
	switch {
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		store, err := ConnectMongo(ctx, uri, database)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		store, err := ConnectPostgres(ctx, uri)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(uri, "sqlite://"), strings.HasPrefix(uri, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(uri, "sqlite://"), "file:")
		store, err := ConnectSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unsupported database URI scheme in %q", ErrConnection, redact(uri))
	}
}

func writeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrWrite, err)
}

func connectionError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConnection, err)
}

// redact hides credentials in a connection string before it is logged
func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***@" + rest[at+1:]
}

// Redact is exported for callers that log the configured URI
func Redact(uri string) string {
	return redact(uri)
}
