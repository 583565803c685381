package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptes-fixtures/seeder/internal/models"
)

// openIntegrationStore connects to the server named by env, or skips the test
func openIntegrationStore(t *testing.T, env string) Store {
	t.Helper()

	uri := os.Getenv(env)
	if uri == "" {
		t.Skipf("%s not set - skipping integration test", env)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, uri, "ptes_test")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Reset(ctx))
	return store
}

func checkStoreRoundTrip(t *testing.T, store Store) {
	ctx := context.Background()

	locationIDs, routeID := seedMinimal(t, store)

	require.NoError(t, store.SetRouteStops(ctx, routeID, locationIDs))
	_, err := store.InsertStops(ctx, []models.Stop{
		{RouteID: routeID, StopSequence: 1, LocationID: locationIDs[0], ArrivalTime: "5:00", DepartureTime: "5:01"},
		{RouteID: routeID, StopSequence: 2, LocationID: locationIDs[1], ArrivalTime: "5:20", DepartureTime: "5:21"},
	})
	require.NoError(t, err)

	routes, err := store.RoutesByID(ctx, []string{routeID})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, locationIDs, routes[0].Stops)
	assert.Equal(t, "12.30", routes[0].Fare.StringFixed(2))

	_, err = store.InsertJourneys(ctx, []models.Journey{
		models.NewDirectJourney(locationIDs[0], locationIDs[1], models.JourneyLeg{
			RouteID:         routeID,
			ModeID:          "MTR",
			BoardingStopID:  locationIDs[0],
			AlightingStopID: locationIDs[1],
			Fare:            routes[0].Fare,
			EstimatedTime:   routes[0].EstimatedTime,
		}),
	})
	require.NoError(t, err)

	journeys, err := store.Journeys(ctx)
	require.NoError(t, err)
	require.Len(t, journeys, 1)
	assert.True(t, journeys[0].TotalFare.Equal(routes[0].Fare))

	locations, err := store.Locations(ctx)
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, locationIDs[0], locations[0].ID)
	assert.InDelta(t, 114.17, locations[0].Location.Longitude(), 1e-9)

	require.NoError(t, store.Reset(ctx))
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	for name, n := range counts {
		assert.Zero(t, n, "collection %s should be empty after reset", name)
	}

	indexes, err := store.GeoIndexes(ctx)
	require.NoError(t, err)
	assert.Len(t, indexes, 1)
}

func TestPostgresRoundTrip(t *testing.T) {
	store := openIntegrationStore(t, "TEST_POSTGRES_URL")
	assert.IsType(t, &PostgresStore{}, store)
	checkStoreRoundTrip(t, store)
}

func TestMongoRoundTrip(t *testing.T) {
	store := openIntegrationStore(t, "TEST_MONGO_URI")
	assert.IsType(t, &MongoStore{}, store)
	checkStoreRoundTrip(t, store)

	indexes, err := store.GeoIndexes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{GeoIndexName}, indexes)
}

func TestMongoListsInInsertionOrder(t *testing.T) {
	store := openIntegrationStore(t, "TEST_MONGO_URI")
	ctx := context.Background()

	batch := func(names ...string) []models.Location {
		out := make([]models.Location, len(names))
		for i, name := range names {
			out[i] = models.Location{
				Name: name, Type: models.LocationBoarding, Category: models.CategoryPark,
				Address: name, Location: models.NewGeoPoint(114.1, 22.3),
			}
		}
		return out
	}

	first, err := store.InsertLocations(ctx, batch("a", "b", "c"))
	require.NoError(t, err)
	second, err := store.InsertLocations(ctx, batch("d", "e"))
	require.NoError(t, err)

	locations, err := store.Locations(ctx)
	require.NoError(t, err)
	var got []string
	for _, l := range locations {
		got = append(got, l.ID)
	}
	assert.Equal(t, append(first, second...), got)
}

func TestMongoRejectsMalformedIDs(t *testing.T) {
	store := openIntegrationStore(t, "TEST_MONGO_URI")

	err := store.SetRouteStops(context.Background(), "not-an-object-id", nil)
	assert.ErrorIs(t, err, ErrWrite)
}
