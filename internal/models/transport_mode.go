package models

// TransportMode is a PTES mode of transport.
// ModeID is the business key that routes and journey legs reference.
type TransportMode struct {
	ModeID      string `json:"mode_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
