package domain

// GeoLocation is a latitude/longitude pair. Values are not range checked.
type GeoLocation struct {
	latitude  float64
	longitude float64
}

func NewGeoLocation(latitude, longitude float64) GeoLocation {
	return GeoLocation{latitude: latitude, longitude: longitude}
}

func (g GeoLocation) Latitude() float64 {
	return g.latitude
}

func (g GeoLocation) Longitude() float64 {
	return g.longitude
}
