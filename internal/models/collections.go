package models

// Collection names shared by every store backend
const (
	CollectionLocations      = "locations"
	CollectionTransportModes = "transport_modes"
	CollectionRoutes         = "routes"
	CollectionStops          = "stops"
	CollectionJourneys       = "journeys"
)

// Collections returns the fixture collections in dependency order
func Collections() []string {
	return []string{
		CollectionTransportModes,
		CollectionLocations,
		CollectionRoutes,
		CollectionStops,
		CollectionJourneys,
	}
}
