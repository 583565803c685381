package models

import "github.com/shopspring/decimal"

// ServiceType distinguishes express from all-stops services
type ServiceType string

const (
	ServiceExpress ServiceType = "Express"
	ServiceRegular ServiceType = "Regular"
)

// ServiceTypes returns every service type
func ServiceTypes() []ServiceType {
	return []ServiceType{ServiceExpress, ServiceRegular}
}

// Timetable holds the free-form operating hours of a route
type Timetable struct {
	StartTime string `json:"start_time"` // "5:07"
	EndTime   string `json:"end_time"`   // "23:41"
	Frequency string `json:"frequency"`  // "6 mins"
}

// Route connects a start and an end location with one transport mode.
// Routes are inserted with an empty Stops list which is filled in once the
// route's stops exist.
type Route struct {
	// Primary identifier, assigned by the store
	ID string `json:"id"`

	// Derived "{mode_id}-{nnn}", not unique
	RouteNumber string `json:"route_number"`

	// References
	ModeID          string `json:"mode_id"`
	StartLocationID string `json:"start_location_id"`
	EndLocationID   string `json:"end_location_id"`

	// Location IDs of the route's stops in stop_sequence order
	Stops []string `json:"stops"`

	Fare          decimal.Decimal `json:"fare"`
	EstimatedTime int             `json:"estimated_time"` // minutes
	ServiceType   ServiceType     `json:"service_type"`
	Timetable     Timetable       `json:"timetable"`
}
