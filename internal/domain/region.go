package domain

import "strconv"

// Point is a WGS-84 coordinate in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// RegionBounds is an axis-aligned latitude/longitude rectangle. Bounds are
// inclusive on every edge.
type RegionBounds struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
}

// MoscowRegion covers Moscow and the surrounding Moscow Oblast, from south of
// Serpukhov to north of Dubna and from west of Mozhaysk to east of Yegoryevsk.
var MoscowRegion = RegionBounds{
	LatMin: 54.0,
	LatMax: 57.5,
	LonMin: 35.0,
	LonMax: 40.0,
}

// MoscowCenter is the reference point for distance scoring.
var MoscowCenter = Point{Lat: 55.7558, Lon: 37.6176}

// Contains reports whether the coordinate lies inside the bounds.
func (b RegionBounds) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// BBox encodes the bounds as a provider bbox parameter: "lon_min,lat_min~lon_max,lat_max".
func (b RegionBounds) BBox() string {
	return formatDeg(b.LonMin) + "," + formatDeg(b.LatMin) + "~" + formatDeg(b.LonMax) + "," + formatDeg(b.LatMax)
}

func formatDeg(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatCoord renders a coordinate with exactly six decimals and a period
// separator. strconv ignores the host locale.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
