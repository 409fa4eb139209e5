package domain

import "fmt"

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports whether the coordinate lies within WGS84 bounds.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("lat must be between -90 and 90")
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("lng must be between -180 and 180")
	}
	return nil
}

// Site is a physical location returned by the site directory.
type Site struct {
	ID         int64
	Name       string
	Address    string
	Coordinate Coordinate
}

// EnrichedSite is a Site annotated with its rating aggregate. RatingUnavailable
// marks a site whose ratings could not be read; its aggregate is zero.
type EnrichedSite struct {
	Site
	Rating            RatingAggregate
	RatingUnavailable bool
}
