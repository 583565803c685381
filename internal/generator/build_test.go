package generator

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/models"
	"github.com/ptes-fixtures/seeder/internal/sample"
)

func TestTransportModesCatalog(t *testing.T) {
	modes := TransportModes()
	require.Len(t, modes, 9)

	seen := make(map[string]bool)
	for _, m := range modes {
		assert.NotEmpty(t, m.Name)
		assert.NotEmpty(t, m.Description)
		assert.False(t, seen[m.ModeID], "duplicate mode %s", m.ModeID)
		seen[m.ModeID] = true
	}
	assert.Equal(t, "MTR", modes[0].ModeID)
	assert.Equal(t, "BusToMaWan", modes[8].ModeID)
}

func TestNewLocationStaysInBox(t *testing.T) {
	src := sample.New(7)
	box := config.Default().BoundingBox

	for i := 0; i < 500; i++ {
		l := NewLocation(src, box)
		assert.True(t, box.Contains(l.Location.Longitude(), l.Location.Latitude()))
		assert.Equal(t, "Point", l.Location.Type)
		assert.NotEmpty(t, l.Name)
		assert.NotEmpty(t, l.Address)
		assert.Contains(t, models.LocationTypes(), l.Type)
		assert.Contains(t, models.LocationCategories(), l.Category)
	}
}

func TestNewRouteRanges(t *testing.T) {
	src := sample.New(11)
	modes := TransportModes()
	locations := []models.Location{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	for i := 0; i < 500; i++ {
		r := NewRoute(src, modes, locations)

		assert.True(t, strings.HasPrefix(r.RouteNumber, r.ModeID+"-"), r.RouteNumber)
		assert.Contains(t, []string{"a", "b", "c"}, r.StartLocationID)
		assert.Contains(t, []string{"a", "b", "c"}, r.EndLocationID)
		assert.NotNil(t, r.Stops)
		assert.Empty(t, r.Stops)

		assert.False(t, r.Fare.LessThan(MinFare), r.Fare.String())
		assert.False(t, r.Fare.GreaterThan(MaxFare), r.Fare.String())
		assert.True(t, r.Fare.Equal(r.Fare.Round(2)), r.Fare.String())

		assert.GreaterOrEqual(t, r.EstimatedTime, MinEstimatedTime)
		assert.LessOrEqual(t, r.EstimatedTime, MaxEstimatedTime)
		assert.Contains(t, models.ServiceTypes(), r.ServiceType)

		assert.True(t, clockInRange(r.Timetable.StartTime, 4, 6), r.Timetable.StartTime)
		assert.True(t, clockInRange(r.Timetable.EndTime, 22, 23), r.Timetable.EndTime)
		assert.True(t, strings.HasSuffix(r.Timetable.Frequency, " mins"), r.Timetable.Frequency)
	}
}

func TestStopCount(t *testing.T) {
	src := sample.New(3)

	k, err := StopCount(src, 5, 5, 10, config.StopSampleFail)
	require.NoError(t, err)
	assert.Equal(t, 5, k)

	k, err = StopCount(src, 5, 5, 3, config.StopSampleCap)
	require.NoError(t, err)
	assert.Equal(t, 3, k)

	_, err = StopCount(src, 5, 5, 3, config.StopSampleFail)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestNewStopsSequence(t *testing.T) {
	src := sample.New(5)
	chosen := []models.Location{{ID: "x"}, {ID: "y"}, {ID: "z"}}

	stops := NewStops(src, "route-1", chosen)
	require.Len(t, stops, 3)
	for i, st := range stops {
		assert.Equal(t, "route-1", st.RouteID)
		assert.Equal(t, i+1, st.StopSequence)
		assert.Equal(t, chosen[i].ID, st.LocationID)
		assert.True(t, clockInRange(st.ArrivalTime, MinStopHour, MaxStopHour), st.ArrivalTime)
		assert.True(t, clockInRange(st.DepartureTime, MinStopHour, MaxStopHour), st.DepartureTime)
	}
}

func TestBuildJourney(t *testing.T) {
	locations := []models.Location{{ID: "a"}, {ID: "b"}}
	route := models.Route{
		ID: "r1", ModeID: "Ferry", StartLocationID: "a", EndLocationID: "b",
		Stops: []string{"a", "b"}, Fare: decimal.RequireFromString("42.50"), EstimatedTime: 33,
	}
	stops := []models.Stop{
		{RouteID: "r1", StopSequence: 1, LocationID: "a"},
		{RouteID: "r1", StopSequence: 2, LocationID: "b"},
	}
	ix := NewRouteIndex([]models.Route{route}, stops)
	src := sample.New(9)

	built := 0
	for i := 0; i < 200; i++ {
		j, ok := BuildJourney(src, locations, ix)
		if !ok {
			continue
		}
		built++
		assert.Equal(t, "a", j.OriginID)
		assert.Equal(t, "b", j.DestinationID)
		require.Len(t, j.Routes, 1)
		leg := j.Routes[0]
		assert.Equal(t, "r1", leg.RouteID)
		assert.Equal(t, "Ferry", leg.ModeID)
		assert.Contains(t, route.Stops, leg.BoardingStopID)
		assert.Contains(t, route.Stops, leg.AlightingStopID)
		assert.Zero(t, leg.Interchanges)
		assert.True(t, j.TotalFare.Equal(route.Fare))
		assert.Equal(t, 33, j.TotalTime)
		assert.Zero(t, j.NumberOfInterchanges)
	}
	// roughly a quarter of candidates draw a -> b
	assert.Positive(t, built)
}

func TestBuildJourneyDiscards(t *testing.T) {
	src := sample.New(13)

	_, ok := BuildJourney(src, nil, NewRouteIndex(nil, nil))
	assert.False(t, ok, "no locations")

	single := []models.Location{{ID: "a"}}
	_, ok = BuildJourney(src, single, NewRouteIndex(nil, nil))
	assert.False(t, ok, "origin equals destination")

	// a route without stops is never used
	pair := []models.Location{{ID: "a"}, {ID: "b"}}
	ix := NewRouteIndex([]models.Route{{ID: "r", StartLocationID: "a", EndLocationID: "b"}}, nil)
	for i := 0; i < 100; i++ {
		_, ok := BuildJourney(src, pair, ix)
		assert.False(t, ok)
	}
}

func TestClockInRange(t *testing.T) {
	assert.True(t, clockInRange("5:07", 4, 6))
	assert.True(t, clockInRange("23:59", 22, 23))
	assert.False(t, clockInRange("7:00", 4, 6))
	assert.False(t, clockInRange("5:7", 4, 6))
	assert.False(t, clockInRange("5:60", 4, 6))
	assert.False(t, clockInRange("five", 4, 6))
}
