package generator

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ptes-fixtures/seeder/internal/config"
	"github.com/ptes-fixtures/seeder/internal/db"
	"github.com/ptes-fixtures/seeder/internal/models"
)

// maxReported bounds how many violations a Report keeps
const maxReported = 50

// Report lists the problems Verify found in a stored fixture
type Report struct {
	Violations []string
	// Total counts every violation, including ones past maxReported
	Total int
}

// OK reports whether the fixture passed every check
func (r *Report) OK() bool {
	return r.Total == 0
}

func (r *Report) addf(format string, args ...any) {
	r.Total++
	if len(r.Violations) < maxReported {
		r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
	}
}

// Verify re-reads a fixture and checks it against the generation rules:
// collection sizes, value ranges, reference integrity, the agreement between
// route stop lists and the stops collection, and journey endpoints.
func Verify(ctx context.Context, store db.Store, cfg *config.Config) (*Report, error) {
	modes, err := store.TransportModes(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	locations, err := store.Locations(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	routes, err := store.Routes(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	stops, err := store.Stops(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	journeys, err := store.Journeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}
	indexes, err := store.GeoIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	report := &Report{}

	if len(indexes) != 1 {
		report.addf("expected exactly one geospatial index on locations, found %d", len(indexes))
	}
	if len(modes) != len(TransportModes()) {
		report.addf("expected %d transport modes, found %d", len(TransportModes()), len(modes))
	}
	if len(locations) != cfg.NumberOfLocations {
		report.addf("expected %d locations, found %d", cfg.NumberOfLocations, len(locations))
	}
	if len(routes) != cfg.NumberOfRoutes {
		report.addf("expected %d routes, found %d", cfg.NumberOfRoutes, len(routes))
	}
	if len(journeys) > cfg.NumberOfJourneys {
		report.addf("expected at most %d journeys, found %d", cfg.NumberOfJourneys, len(journeys))
	}

	modeIDs := make(map[string]bool, len(modes))
	for _, m := range modes {
		modeIDs[m.ModeID] = true
	}
	locationIDs := make(map[string]bool, len(locations))
	for _, l := range locations {
		locationIDs[l.ID] = true
		verifyLocation(report, l, cfg.BoundingBox)
	}

	ix := NewRouteIndex(routes, stops)
	routesByID := make(map[string]models.Route, len(routes))
	for _, r := range routes {
		routesByID[r.ID] = r
		verifyRoute(report, r, modeIDs, locationIDs)
		verifyRouteStops(report, r, ix.Stops(r.ID), len(locations), cfg)
	}

	for _, st := range stops {
		if _, ok := routesByID[st.RouteID]; !ok {
			report.addf("stop %s references unknown route %s", st.ID, st.RouteID)
		}
		if !locationIDs[st.LocationID] {
			report.addf("stop %s references unknown location %s", st.ID, st.LocationID)
		}
		for _, clock := range []string{st.ArrivalTime, st.DepartureTime} {
			if !clockInRange(clock, MinStopHour, MaxStopHour) {
				report.addf("stop %s has time %q outside %d:00-%d:59", st.ID, clock, MinStopHour, MaxStopHour)
			}
		}
	}

	for _, j := range journeys {
		verifyJourney(report, j, routesByID)
	}

	return report, nil
}

func verifyLocation(report *Report, l models.Location, box config.BoundingBox) {
	if l.Location.Type != "Point" {
		report.addf("location %s has geometry type %q", l.ID, l.Location.Type)
	}
	if !box.Contains(l.Location.Longitude(), l.Location.Latitude()) {
		report.addf("location %s at %v lies outside the bounding box", l.ID, l.Location.Coordinates)
	}
	if !slices.Contains(models.LocationTypes(), l.Type) {
		report.addf("location %s has unknown type %q", l.ID, l.Type)
	}
	if !slices.Contains(models.LocationCategories(), l.Category) {
		report.addf("location %s has unknown category %q", l.ID, l.Category)
	}
}

func verifyRoute(report *Report, r models.Route, modeIDs, locationIDs map[string]bool) {
	if !modeIDs[r.ModeID] {
		report.addf("route %s references unknown mode %s", r.ID, r.ModeID)
	}
	if !locationIDs[r.StartLocationID] {
		report.addf("route %s references unknown start location %s", r.ID, r.StartLocationID)
	}
	if !locationIDs[r.EndLocationID] {
		report.addf("route %s references unknown end location %s", r.ID, r.EndLocationID)
	}

	prefix, number, ok := strings.Cut(r.RouteNumber, "-")
	n, err := strconv.Atoi(number)
	if !ok || prefix != r.ModeID || err != nil || n < minRouteNumber || n > maxRouteNumber {
		report.addf("route %s has malformed route number %q", r.ID, r.RouteNumber)
	}

	if r.Fare.LessThan(MinFare) || r.Fare.GreaterThan(MaxFare) || !r.Fare.Equal(r.Fare.Round(2)) {
		report.addf("route %s has fare %s outside %s-%s at cent resolution", r.ID, r.Fare, MinFare, MaxFare)
	}
	if r.EstimatedTime < MinEstimatedTime || r.EstimatedTime > MaxEstimatedTime {
		report.addf("route %s has estimated time %d", r.ID, r.EstimatedTime)
	}
	if !slices.Contains(models.ServiceTypes(), r.ServiceType) {
		report.addf("route %s has unknown service type %q", r.ID, r.ServiceType)
	}
	if !clockInRange(r.Timetable.StartTime, firstServiceFrom, firstServiceTo) {
		report.addf("route %s has start time %q", r.ID, r.Timetable.StartTime)
	}
	if !clockInRange(r.Timetable.EndTime, lastServiceFrom, lastServiceTo) {
		report.addf("route %s has end time %q", r.ID, r.Timetable.EndTime)
	}
}

// verifyRouteStops checks that a route's stop list matches its stop records
// in stop_sequence order and that the stop count respects the configured range
func verifyRouteStops(report *Report, r models.Route, stops []models.Stop, population int, cfg *config.Config) {
	ordered := slices.Clone(stops)
	slices.SortFunc(ordered, func(a, b models.Stop) int { return a.StopSequence - b.StopSequence })

	want := make([]string, len(ordered))
	seen := make(map[string]bool, len(ordered))
	for i, st := range ordered {
		if st.StopSequence != i+1 {
			report.addf("route %s has stop_sequence %d at position %d", r.ID, st.StopSequence, i+1)
		}
		if seen[st.LocationID] {
			report.addf("route %s visits location %s twice", r.ID, st.LocationID)
		}
		seen[st.LocationID] = true
		want[i] = st.LocationID
	}
	if !slices.Equal(r.Stops, want) {
		report.addf("route %s stop list %v does not match its stops %v", r.ID, r.Stops, want)
	}

	lo, hi := cfg.MinStopsPerRoute, cfg.MaxStopsPerRoute
	if cfg.StopSamplePolicy == config.StopSampleCap {
		lo, hi = min(lo, population), min(hi, population)
	}
	if len(ordered) < lo || len(ordered) > hi {
		report.addf("route %s has %d stops, want %d-%d", r.ID, len(ordered), lo, hi)
	}
}

func verifyJourney(report *Report, j models.Journey, routes map[string]models.Route) {
	if j.OriginID == j.DestinationID {
		report.addf("journey %s starts and ends at %s", j.ID, j.OriginID)
	}
	if len(j.Routes) != 1 {
		report.addf("journey %s has %d legs, want 1", j.ID, len(j.Routes))
		return
	}
	if j.NumberOfInterchanges != 0 {
		report.addf("journey %s has %d interchanges", j.ID, j.NumberOfInterchanges)
	}

	leg := j.Routes[0]
	if !j.TotalFare.Equal(leg.Fare) || j.TotalTime != leg.EstimatedTime {
		report.addf("journey %s totals do not mirror its leg", j.ID)
	}

	r, ok := routes[leg.RouteID]
	if !ok {
		report.addf("journey %s references unknown route %s", j.ID, leg.RouteID)
		return
	}
	if r.StartLocationID != j.OriginID || r.EndLocationID != j.DestinationID {
		report.addf("journey %s endpoints do not match route %s", j.ID, r.ID)
	}
	if leg.ModeID != r.ModeID || !leg.Fare.Equal(r.Fare) || leg.EstimatedTime != r.EstimatedTime {
		report.addf("journey %s leg does not copy route %s", j.ID, r.ID)
	}
	if !slices.Contains(r.Stops, leg.BoardingStopID) {
		report.addf("journey %s boards at %s which route %s does not serve", j.ID, leg.BoardingStopID, r.ID)
	}
	if !slices.Contains(r.Stops, leg.AlightingStopID) {
		report.addf("journey %s alights at %s which route %s does not serve", j.ID, leg.AlightingStopID, r.ID)
	}
}

// clockInRange parses "H:MM" and checks the hour lies in [loHour, hiHour]
func clockInRange(clock string, loHour, hiHour int) bool {
	h, m, ok := strings.Cut(clock, ":")
	if !ok || len(m) != 2 {
		return false
	}
	hour, err := strconv.Atoi(h)
	if err != nil {
		return false
	}
	minute, err := strconv.Atoi(m)
	if err != nil {
		return false
	}
	return hour >= loHour && hour <= hiHour && minute >= 0 && minute <= 59
}
