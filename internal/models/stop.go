package models

// Stop places a location at a position along a route
type Stop struct {
	// Primary identifier, assigned by the store
	ID string `json:"id"`

	RouteID      string `json:"route_id"`
	StopSequence int    `json:"stop_sequence"` // 1-based, unique within a route
	LocationID   string `json:"location_id"`

	// "H:MM", not ordered relative to neighbouring stops
	ArrivalTime   string `json:"arrival_time"`
	DepartureTime string `json:"departure_time"`
}
