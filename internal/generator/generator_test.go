package generator

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/db"
	"github.com/ptes-fixtures/seeder/internal/models"
	"github.com/ptes-fixtures/seeder/internal/sample"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.DatabaseURI = "sqlite://unused"
	cfg.NumberOfLocations = 30
	cfg.NumberOfRoutes = 60
	cfg.NumberOfJourneys = 2000
	cfg.Seed = 42
	cfg.StageTimeout = 30 * time.Second
	return cfg
}

func newTestStore(t *testing.T) db.Store {
	t.Helper()

	store, err := db.ConnectSQLite(context.Background(), filepath.Join(t.TempDir(), "ptes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestGenerator(t *testing.T, store db.Store, cfg *config.Config, log zerolog.Logger) *Generator {
	t.Helper()
	return New(store, cfg, sample.New(cfg.Seed), log)
}

func TestRunProducesConsistentFixture(t *testing.T) {
	cfg := testConfig()
	store := newTestStore(t)
	ctx := context.Background()

	summary, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), summary.Seed)
	assert.Equal(t, int64(9), summary.Counts[models.CollectionTransportModes])
	assert.Equal(t, int64(30), summary.Counts[models.CollectionLocations])
	assert.Equal(t, int64(60), summary.Counts[models.CollectionRoutes])
	assert.Positive(t, summary.Counts[models.CollectionJourneys])
	assert.LessOrEqual(t, summary.Counts[models.CollectionJourneys], int64(2000))

	assert.Equal(t, 60, summary.Fares.Count)
	assert.GreaterOrEqual(t, summary.Fares.Min, 5.0)
	assert.LessOrEqual(t, summary.Fares.Max, 100.0)
	assert.GreaterOrEqual(t, summary.Times.Min, float64(MinEstimatedTime))
	assert.LessOrEqual(t, summary.Times.Max, float64(MaxEstimatedTime))

	report, err := Verify(ctx, store, cfg)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
}

func TestRunStoresRouteStopsInSequenceOrder(t *testing.T) {
	cfg := testConfig()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	routes, err := store.Routes(ctx)
	require.NoError(t, err)
	for _, r := range routes {
		stops, err := store.StopsByRoute(ctx, r.ID)
		require.NoError(t, err)
		require.Len(t, r.Stops, len(stops))
		for i, st := range stops {
			assert.Equal(t, i+1, st.StopSequence)
			assert.Equal(t, r.Stops[i], st.LocationID)
		}
	}
}

func TestRunIsReproducibleForASeed(t *testing.T) {
	cfg := testConfig()
	ctx := context.Background()

	fingerprint := func() []string {
		store := newTestStore(t)
		_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
		require.NoError(t, err)

		locations, err := store.Locations(ctx)
		require.NoError(t, err)
		position := make(map[string]int, len(locations))
		var out []string
		for i, l := range locations {
			position[l.ID] = i
			out = append(out, l.Name)
		}

		routes, err := store.Routes(ctx)
		require.NoError(t, err)
		for _, r := range routes {
			out = append(out, r.RouteNumber, r.Fare.String(), r.Timetable.StartTime)
			for _, id := range r.Stops {
				out = append(out, string(rune('A'+position[id])))
			}
		}

		counts, err := store.Counts(ctx)
		require.NoError(t, err)
		out = append(out, fmt.Sprint(counts[models.CollectionJourneys]))
		return out
	}

	assert.Equal(t, fingerprint(), fingerprint())
}

func TestRunResetsPreviousFixture(t *testing.T) {
	cfg := testConfig()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	_, err = newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), counts[models.CollectionLocations])
	assert.Equal(t, int64(60), counts[models.CollectionRoutes])

	indexes, err := store.GeoIndexes(ctx)
	require.NoError(t, err)
	assert.Len(t, indexes, 1)
}

// Ten locations, five routes and twenty journey candidates. Stop counts come
// from the default range and are capped at the ten available locations.
func TestSmallNetwork(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfLocations = 10
	cfg.NumberOfRoutes = 5
	cfg.NumberOfJourneys = 20
	require.Greater(t, cfg.MaxStopsPerRoute, cfg.NumberOfLocations)
	require.Equal(t, config.StopSampleCap, cfg.StopSamplePolicy)
	store := newTestStore(t)
	ctx := context.Background()

	summary, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), summary.Counts[models.CollectionLocations])
	assert.Equal(t, int64(5), summary.Counts[models.CollectionRoutes])
	assert.LessOrEqual(t, summary.Counts[models.CollectionJourneys], int64(20))

	routes, err := store.Routes(ctx)
	require.NoError(t, err)
	for _, r := range routes {
		assert.GreaterOrEqual(t, len(r.Stops), 5)
		assert.LessOrEqual(t, len(r.Stops), 10)
	}

	report, err := Verify(ctx, store, cfg)
	require.NoError(t, err)
	assert.True(t, report.OK(), "violations: %v", report.Violations)
}

func TestRunLogsProgress(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfRoutes = 250
	cfg.NumberOfJourneys = 100
	store := newTestStore(t)

	var buf bytes.Buffer
	_, err := newTestGenerator(t, store, cfg, zerolog.New(&buf)).Run(context.Background())
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "Prepared routes"))
	assert.Equal(t, 2, strings.Count(out, "Prepared stops"))
	assert.Contains(t, out, `"prepared":200`)
	assert.Contains(t, out, `"routes":200`)
}

func TestResetLogsEachCollection(t *testing.T) {
	cfg := testConfig()
	store := newTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, newTestGenerator(t, store, cfg, zerolog.New(&buf)).Reset(context.Background()))

	out := buf.String()
	assert.Equal(t, len(models.Collections()), strings.Count(out, "Dropped collection"))
	for _, name := range models.Collections() {
		assert.Contains(t, out, `"collection":"`+name+`"`)
	}
	assert.Contains(t, out, "Created geospatial index")
}

// Two locations where every route starts and ends at the same place: no
// candidate can be served, so nothing is inserted and a warning is logged.
func TestNoServableJourneys(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfJourneys = 50
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Reset(ctx))
	require.NoError(t, store.InsertTransportModes(ctx, TransportModes()))
	locationIDs, err := store.InsertLocations(ctx, []models.Location{
		{Name: "A", Type: models.LocationBoarding, Category: models.CategoryPark, Address: "a", Location: models.NewGeoPoint(114, 22.3)},
		{Name: "B", Type: models.LocationAlighting, Category: models.CategoryPark, Address: "b", Location: models.NewGeoPoint(114.1, 22.4)},
	})
	require.NoError(t, err)

	var routes []models.Route
	for _, id := range locationIDs {
		routes = append(routes, models.Route{
			RouteNumber: "Bus-100", ModeID: "Bus", StartLocationID: id, EndLocationID: id,
			Fare: decimal.New(500, -2), EstimatedTime: 15, ServiceType: models.ServiceRegular,
		})
	}
	routeIDs, err := store.InsertRoutes(ctx, routes)
	require.NoError(t, err)

	var buf bytes.Buffer
	g := newTestGenerator(t, store, cfg, zerolog.New(&buf))
	_, err = g.GenerateStops(ctx, routeIDs)
	require.NoError(t, err)

	ids, err := g.GenerateJourneys(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Zero(t, counts[models.CollectionJourneys])
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "No journeys were inserted")
}

// Three locations cannot supply five distinct stops
func TestStopOversampling(t *testing.T) {
	newConfig := func(policy string) *config.Config {
		cfg := testConfig()
		cfg.NumberOfLocations = 3
		cfg.NumberOfRoutes = 1
		cfg.MinStopsPerRoute = 5
		cfg.MaxStopsPerRoute = 5
		cfg.StopSamplePolicy = policy
		return cfg
	}

	t.Run("fail", func(t *testing.T) {
		store := newTestStore(t)
		_, err := newTestGenerator(t, store, newConfig(config.StopSampleFail), zerolog.Nop()).Run(context.Background())
		assert.ErrorIs(t, err, ErrInsufficientData)
	})

	t.Run("cap", func(t *testing.T) {
		cfg := newConfig(config.StopSampleCap)
		store := newTestStore(t)
		ctx := context.Background()

		_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
		require.NoError(t, err)

		routes, err := store.Routes(ctx)
		require.NoError(t, err)
		require.Len(t, routes, 1)
		assert.Len(t, routes[0].Stops, 3)

		report, err := Verify(ctx, store, cfg)
		require.NoError(t, err)
		assert.True(t, report.OK(), "violations: %v", report.Violations)
	})
}

func TestGenerateRoutesNeedsLocations(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfLocations = 0
	store := newTestStore(t)

	_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestEmptyFixture(t *testing.T) {
	cfg := testConfig()
	cfg.NumberOfLocations = 0
	cfg.NumberOfRoutes = 0
	cfg.NumberOfJourneys = 0
	store := newTestStore(t)
	ctx := context.Background()

	summary, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), summary.Counts[models.CollectionTransportModes])
	assert.Zero(t, summary.Counts[models.CollectionRoutes])
	assert.Zero(t, summary.Fares.Count)
}

func TestVerifyReportsBrokenStopList(t *testing.T) {
	cfg := testConfig()
	store := newTestStore(t)
	ctx := context.Background()

	_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	routes, err := store.Routes(ctx)
	require.NoError(t, err)
	require.NoError(t, store.SetRouteStops(ctx, routes[0].ID, []string{}))

	report, err := Verify(ctx, store, cfg)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Contains(t, report.Violations[0], routes[0].ID)
}

func TestStageTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.StageTimeout = time.Nanosecond
	store := newTestStore(t)

	_, err := newTestGenerator(t, store, cfg, zerolog.Nop()).Run(context.Background())
	assert.Error(t, err)
}
