package generator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/models"
	"github.com/ptes-fixtures/seeder/internal/sample"
)

// Value ranges for synthetic routes and stops, bounds inclusive
var (
	MinFare = decimal.New(500, -2)
	MaxFare = decimal.New(10000, -2)
)

const (
	MinEstimatedTime = 15
	MaxEstimatedTime = 120

	minRouteNumber = 100
	maxRouteNumber = 999

	minFrequency = 1
	maxFrequency = 10

	// Timetable hour windows
	firstServiceFrom, firstServiceTo = 4, 6
	lastServiceFrom, lastServiceTo   = 22, 23

	// Stop arrival and departure hours
	MinStopHour = 5
	MaxStopHour = 23
)

// NewLocation draws one location inside box
func NewLocation(src *sample.Source, box config.BoundingBox) models.Location {
	name := src.StreetName()
	locType := sample.Pick(src, models.LocationTypes())
	lon := src.Float64Range(box.MinLongitude, box.MaxLongitude)
	lat := src.Float64Range(box.MinLatitude, box.MaxLatitude)
	address := src.Address()
	category := sample.Pick(src, models.LocationCategories())

	return models.Location{
		Name:     name,
		Type:     locType,
		Category: category,
		Address:  address,
		Location: models.NewGeoPoint(lon, lat),
	}
}

// NewRoute draws one route between two locations sampled with replacement.
// The stop list starts empty. modes and locations must not be empty.
func NewRoute(src *sample.Source, modes []models.TransportMode, locations []models.Location) models.Route {
	mode := sample.Pick(src, modes)
	start := sample.Pick(src, locations)
	end := sample.Pick(src, locations)

	fare := src.Amount(MinFare, MaxFare)
	estimatedTime := src.IntRange(MinEstimatedTime, MaxEstimatedTime)
	serviceType := sample.Pick(src, models.ServiceTypes())
	timetable := models.Timetable{
		StartTime: src.ClockTime(firstServiceFrom, firstServiceTo),
		EndTime:   src.ClockTime(lastServiceFrom, lastServiceTo),
		Frequency: fmt.Sprintf("%d mins", src.IntRange(minFrequency, maxFrequency)),
	}

	return models.Route{
		RouteNumber:     fmt.Sprintf("%s-%d", mode.ModeID, src.IntRange(minRouteNumber, maxRouteNumber)),
		ModeID:          mode.ModeID,
		StartLocationID: start.ID,
		EndLocationID:   end.ID,
		Stops:           []string{},
		Fare:            fare,
		EstimatedTime:   estimatedTime,
		ServiceType:     serviceType,
		Timetable:       timetable,
	}
}

// StopCount draws how many stops a route gets. When the draw exceeds the
// location population the cap policy lowers it and the fail policy returns
// ErrInsufficientData.
func StopCount(src *sample.Source, minStops, maxStops, population int, policy string) (int, error) {
	k := src.IntRange(minStops, maxStops)
	if k <= population {
		return k, nil
	}
	if policy == config.StopSampleFail {
		return 0, fmt.Errorf("%w: route needs %d distinct stops but only %d locations exist",
			ErrInsufficientData, k, population)
	}
	return population, nil
}

// NewStops places the chosen locations along a route with stop_sequence 1..k.
// Arrival and departure times are drawn independently.
func NewStops(src *sample.Source, routeID string, chosen []models.Location) []models.Stop {
	stops := make([]models.Stop, 0, len(chosen))
	for i, loc := range chosen {
		stops = append(stops, models.Stop{
			RouteID:       routeID,
			StopSequence:  i + 1,
			LocationID:    loc.ID,
			ArrivalTime:   src.ClockTime(MinStopHour, MaxStopHour),
			DepartureTime: src.ClockTime(MinStopHour, MaxStopHour),
		})
	}
	return stops
}

// RouteIndex answers the two lookups journey generation needs: direct routes
// between two locations and the stops of one route.
type RouteIndex struct {
	direct map[[2]string][]models.Route
	stops  map[string][]models.Stop
}

// NewRouteIndex indexes routes by (start, end) and stops by route
func NewRouteIndex(routes []models.Route, stops []models.Stop) *RouteIndex {
	ix := &RouteIndex{
		direct: make(map[[2]string][]models.Route),
		stops:  make(map[string][]models.Stop),
	}
	for _, r := range routes {
		key := [2]string{r.StartLocationID, r.EndLocationID}
		ix.direct[key] = append(ix.direct[key], r)
	}
	for _, st := range stops {
		ix.stops[st.RouteID] = append(ix.stops[st.RouteID], st)
	}
	return ix
}

// Direct returns the routes starting at origin and ending at destination
func (ix *RouteIndex) Direct(originID, destinationID string) []models.Route {
	return ix.direct[[2]string{originID, destinationID}]
}

// Stops returns the stops of one route
func (ix *RouteIndex) Stops(routeID string) []models.Stop {
	return ix.stops[routeID]
}

// BuildJourney draws one journey candidate. ok is false when the candidate is
// discarded: same origin and destination, no direct route, or a route without
// stops. Boarding and alighting are sampled independently from the route's
// stops, so they may coincide or run against the stop order.
func BuildJourney(src *sample.Source, locations []models.Location, ix *RouteIndex) (journey models.Journey, ok bool) {
	if len(locations) == 0 {
		return models.Journey{}, false
	}

	origin := sample.Pick(src, locations)
	destination := sample.Pick(src, locations)
	if origin.ID == destination.ID {
		return models.Journey{}, false
	}

	candidates := ix.Direct(origin.ID, destination.ID)
	if len(candidates) == 0 {
		return models.Journey{}, false
	}
	route := sample.Pick(src, candidates)

	stops := ix.Stops(route.ID)
	if len(stops) == 0 {
		return models.Journey{}, false
	}
	boarding := sample.Pick(src, stops)
	alighting := sample.Pick(src, stops)

	return models.NewDirectJourney(origin.ID, destination.ID, models.JourneyLeg{
		RouteID:         route.ID,
		ModeID:          route.ModeID,
		BoardingStopID:  boarding.LocationID,
		AlightingStopID: alighting.LocationID,
		Fare:            route.Fare,
		EstimatedTime:   route.EstimatedTime,
		Interchanges:    0,
	}), true
}
