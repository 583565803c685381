package generator

import "github.com/ptes-fixtures/seeder/internal/models"

// TransportModes returns the fixed PTES transport mode catalog
func TransportModes() []models.TransportMode {
	return []models.TransportMode{
		{ModeID: "MTR", Name: "Mass Transit Railway", Description: "Hong Kong's rapid transit railway system."},
		{ModeID: "LRT", Name: "Light Rail Transit", Description: "Light rail system in Hong Kong."},
		{ModeID: "Bus", Name: "Franchised Bus", Description: "Standard franchised bus services."},
		{ModeID: "GreenMinibus", Name: "Green Minibus", Description: "Small-capacity bus services."},
		{ModeID: "Tram", Name: "Tram", Description: "Historic tram services on Hong Kong Island."},
		{ModeID: "PeakTram", Name: "Peak Tram", Description: "Cable funicular railway."},
		{ModeID: "Ferry", Name: "Ferry", Description: "Maritime ferry services."},
		{ModeID: "Coach", Name: "Cross Boundary Coach", Description: "Coaches to Lok Ma Chau/Huanggang."},
		{ModeID: "BusToMaWan", Name: "Bus to Ma Wan and Discovery Bay", Description: "Bus services to specific districts."},
	}
}
