package models

// LocationType is the boarding role a location plays in the network
type LocationType string

const (
	LocationBoarding    LocationType = "Boarding"
	LocationAlighting   LocationType = "Alighting"
	LocationInterchange LocationType = "Interchange"
)

// LocationTypes returns every location type
func LocationTypes() []LocationType {
	return []LocationType{LocationBoarding, LocationAlighting, LocationInterchange}
}

// LocationCategory classifies the land use around a location
type LocationCategory string

const (
	CategoryResidential LocationCategory = "Residential"
	CategoryCommercial  LocationCategory = "Commercial"
	CategoryPark        LocationCategory = "Park"
	CategoryTerminal    LocationCategory = "Terminal"
	CategoryStation     LocationCategory = "Station"
)

// LocationCategories returns every location category
func LocationCategories() []LocationCategory {
	return []LocationCategory{CategoryResidential, CategoryCommercial, CategoryPark, CategoryTerminal, CategoryStation}
}

// GeoPoint is a GeoJSON Point. Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// NewGeoPoint builds a GeoJSON Point from a longitude/latitude pair
func NewGeoPoint(lon, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Longitude returns the x coordinate
func (p GeoPoint) Longitude() float64 {
	return p.Coordinates[0]
}

// Latitude returns the y coordinate
func (p GeoPoint) Latitude() float64 {
	return p.Coordinates[1]
}

// Location is a place that routes start, end or stop at.
// Stored in the locations collection; immutable once created.
type Location struct {
	// Primary identifier, assigned by the store
	ID string `json:"id"`

	Name     string           `json:"name"`
	Type     LocationType     `json:"type"`
	Category LocationCategory `json:"category"`
	Address  string           `json:"address"`

	// Geospatially indexed field
	Location GeoPoint `json:"location"`
}
