// Package generator runs the fixture pipeline: reset the store, seed the
// transport mode catalog, then generate locations, routes, stops and
// journeys. Stages run one after another; each commits before the next one
// re-reads what it needs from the store.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/db"
	"github.com/ptes-fixtures/seeder/internal/metrics"
	"github.com/ptes-fixtures/seeder/internal/models"
	"github.com/ptes-fixtures/seeder/internal/sample"
)

// ErrInsufficientData means a stage lacks the records it must draw from
var ErrInsufficientData = errors.New("insufficient data")

// progressEvery is how often route and stop preparation is logged
const progressEvery = 100

// Generator writes one fixture into a store
type Generator struct {
	store db.Store
	cfg   *config.Config
	src   *sample.Source
	log   zerolog.Logger
}

// Summary describes a completed run
type Summary struct {
	Seed     uint64
	Counts   map[string]int64
	Fares    metrics.Running // route fares
	Times    metrics.Running // route estimated times, minutes
	Duration time.Duration
}

// New creates a Generator. src supplies every random draw, so two runs with
// the same seed and config produce the same fixture.
func New(store db.Store, cfg *config.Config, src *sample.Source, log zerolog.Logger) *Generator {
	return &Generator{
		store: store,
		cfg:   cfg,
		src:   src,
		log:   log,
	}
}

// Run executes every stage in order and summarizes the result
func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	g.log.Info().Uint64("seed", g.src.Seed()).Msg("Starting fixture generation")

	if err := g.Reset(ctx); err != nil {
		return nil, err
	}
	if err := g.SeedTransportModes(ctx); err != nil {
		return nil, err
	}
	if _, err := g.GenerateLocations(ctx); err != nil {
		return nil, err
	}
	routeIDs, err := g.GenerateRoutes(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := g.GenerateStops(ctx, routeIDs); err != nil {
		return nil, err
	}
	if _, err := g.GenerateJourneys(ctx); err != nil {
		return nil, err
	}

	summary, err := g.summarize(ctx)
	if err != nil {
		return nil, err
	}
	summary.Duration = time.Since(started)

	g.log.Info().
		Uint64("seed", summary.Seed).
		Interface("counts", summary.Counts).
		Dur("duration", summary.Duration).
		Msg("Reset and data generation completed successfully")
	return summary, nil
}

// Reset drops the fixture collections and recreates the geospatial index
func (g *Generator) Reset(ctx context.Context) error {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	if err := g.store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	for _, name := range models.Collections() {
		g.log.Info().Str("collection", name).Msg("Dropped collection")
	}
	g.log.Info().Str("index", db.GeoIndexName).Msg("Created geospatial index")
	return nil
}

// SeedTransportModes inserts the fixed transport mode catalog
func (g *Generator) SeedTransportModes(ctx context.Context) error {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	modes := TransportModes()
	if err := g.store.InsertTransportModes(ctx, modes); err != nil {
		return fmt.Errorf("seed transport modes: %w", err)
	}
	g.log.Info().Int("count", len(modes)).Msg("Inserted transport modes")
	return nil
}

// GenerateLocations inserts NumberOfLocations random locations
func (g *Generator) GenerateLocations(ctx context.Context) ([]string, error) {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	locations := make([]models.Location, 0, g.cfg.NumberOfLocations)
	for i := 0; i < g.cfg.NumberOfLocations; i++ {
		locations = append(locations, NewLocation(g.src, g.cfg.BoundingBox))
	}

	ids, err := g.store.InsertLocations(ctx, locations)
	if err != nil {
		return nil, fmt.Errorf("generate locations: %w", err)
	}
	g.log.Info().Int("count", len(ids)).Msg("Inserted locations")
	return ids, nil
}

// GenerateRoutes inserts NumberOfRoutes random routes over the stored modes
// and locations. Routes are written with an empty stop list.
func (g *Generator) GenerateRoutes(ctx context.Context) ([]string, error) {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	n := g.cfg.NumberOfRoutes
	if n == 0 {
		g.log.Info().Int("count", 0).Msg("Inserted routes")
		return nil, nil
	}

	modes, err := g.store.TransportModes(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate routes: %w", err)
	}
	locations, err := g.store.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate routes: %w", err)
	}
	if len(modes) == 0 || len(locations) == 0 {
		return nil, fmt.Errorf("generate routes: %w: %d transport modes, %d locations",
			ErrInsufficientData, len(modes), len(locations))
	}

	routes := make([]models.Route, 0, n)
	for i := 0; i < n; i++ {
		routes = append(routes, NewRoute(g.src, modes, locations))
		if (i+1)%progressEvery == 0 {
			g.log.Info().Int("prepared", i+1).Msg("Prepared routes")
		}
	}

	ids, err := g.store.InsertRoutes(ctx, routes)
	if err != nil {
		return nil, fmt.Errorf("generate routes: %w", err)
	}
	g.log.Info().Int("count", len(ids)).Msg("Inserted routes")
	return ids, nil
}

// GenerateStops gives each route in routeIDs between MinStopsPerRoute and
// MaxStopsPerRoute distinct stops, inserts them in one batch and then
// records each route's stop list on the route.
func (g *Generator) GenerateStops(ctx context.Context, routeIDs []string) ([]string, error) {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	routes, err := g.store.RoutesByID(ctx, routeIDs)
	if err != nil {
		return nil, fmt.Errorf("generate stops: %w", err)
	}
	locations, err := g.store.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate stops: %w", err)
	}

	var stops []models.Stop
	routeStops := make([][]string, len(routes))
	for i, r := range routes {
		k, err := StopCount(g.src, g.cfg.MinStopsPerRoute, g.cfg.MaxStopsPerRoute, len(locations), g.cfg.StopSamplePolicy)
		if err != nil {
			return nil, fmt.Errorf("generate stops for route %s: %w", r.ID, err)
		}
		chosen, err := sample.Sample(g.src, locations, k)
		if err != nil {
			return nil, fmt.Errorf("generate stops for route %s: %w", r.ID, err)
		}

		ids := make([]string, len(chosen))
		for j, loc := range chosen {
			ids[j] = loc.ID
		}
		routeStops[i] = ids
		stops = append(stops, NewStops(g.src, r.ID, chosen)...)

		if (i+1)%progressEvery == 0 {
			g.log.Info().Int("routes", i+1).Msg("Prepared stops")
		}
	}

	stopIDs, err := g.store.InsertStops(ctx, stops)
	if err != nil {
		return nil, fmt.Errorf("generate stops: %w", err)
	}
	g.log.Info().Int("count", len(stopIDs)).Msg("Inserted stops")

	for i, r := range routes {
		if err := g.store.SetRouteStops(ctx, r.ID, routeStops[i]); err != nil {
			return nil, fmt.Errorf("generate stops: %w", err)
		}
	}
	g.log.Info().Int("routes", len(routes)).Msg("Updated routes with stop references")
	return stopIDs, nil
}

// GenerateJourneys draws NumberOfJourneys candidates and inserts the ones
// served by a direct route. Discarded candidates are not reported
// individually; when none survive nothing is inserted.
func (g *Generator) GenerateJourneys(ctx context.Context) ([]string, error) {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	locations, err := g.store.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate journeys: %w", err)
	}
	routes, err := g.store.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate journeys: %w", err)
	}
	stops, err := g.store.Stops(ctx)
	if err != nil {
		return nil, fmt.Errorf("generate journeys: %w", err)
	}
	ix := NewRouteIndex(routes, stops)

	var journeys []models.Journey
	for i := 0; i < g.cfg.NumberOfJourneys; i++ {
		if j, ok := BuildJourney(g.src, locations, ix); ok {
			journeys = append(journeys, j)
		}
	}

	if len(journeys) == 0 {
		g.log.Warn().Int("candidates", g.cfg.NumberOfJourneys).Msg("No journeys were inserted")
		return nil, nil
	}

	ids, err := g.store.InsertJourneys(ctx, journeys)
	if err != nil {
		return nil, fmt.Errorf("generate journeys: %w", err)
	}
	g.log.Info().
		Int("count", len(ids)).
		Int("candidates", g.cfg.NumberOfJourneys).
		Msg("Inserted journeys")
	return ids, nil
}

func (g *Generator) summarize(ctx context.Context) (*Summary, error) {
	ctx, cancel := g.stageContext(ctx)
	defer cancel()

	counts, err := g.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}
	routes, err := g.store.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	summary := &Summary{Seed: g.src.Seed(), Counts: counts}
	for _, r := range routes {
		fare, _ := r.Fare.Float64()
		summary.Fares.Update(fare)
		summary.Times.Update(float64(r.EstimatedTime))
	}

	g.log.Info().
		Int("routes", summary.Fares.Count).
		Float64("fare_mean", summary.Fares.Mean).
		Float64("fare_stddev", summary.Fares.StdDev()).
		Float64("time_mean", summary.Times.Mean).
		Float64("time_stddev", summary.Times.StdDev()).
		Msg("Route statistics")
	return summary, nil
}

// stageContext bounds one stage by the configured stage timeout
func (g *Generator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.cfg.StageTimeout)
}
