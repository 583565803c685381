package models

import "github.com/shopspring/decimal"

// JourneyLeg is one route segment of a journey.
// Boarding and alighting IDs reference locations served by the route.
type JourneyLeg struct {
	RouteID         string          `json:"route_id"`
	ModeID          string          `json:"mode_id"`
	BoardingStopID  string          `json:"boarding_stop_id"`
	AlightingStopID string          `json:"alighting_stop_id"`
	Fare            decimal.Decimal `json:"fare"`
	EstimatedTime   int             `json:"estimated_time"`
	Interchanges    int             `json:"interchanges"`
}

// Journey is an origin to destination trip made of one or more legs
type Journey struct {
	// Primary identifier, assigned by the store
	ID string `json:"id"`

	OriginID      string `json:"origin_id"`
	DestinationID string `json:"destination_id"`

	// Ordered legs; stored under "routes"
	Routes []JourneyLeg `json:"routes"`

	// Aggregates over Routes
	TotalFare            decimal.Decimal `json:"total_fare"`
	TotalTime            int             `json:"total_time"`
	NumberOfInterchanges int             `json:"number_of_interchanges"`
}

// NewDirectJourney builds a single-leg journey whose totals mirror the leg
func NewDirectJourney(originID, destinationID string, leg JourneyLeg) Journey {
	return Journey{
		OriginID:             originID,
		DestinationID:        destinationID,
		Routes:               []JourneyLeg{leg},
		TotalFare:            leg.Fare,
		TotalTime:            leg.EstimatedTime,
		NumberOfInterchanges: leg.Interchanges,
	}
}
