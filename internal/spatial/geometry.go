package spatial

import (
	"math"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// Centroid calculates the geographic centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lon: sumLon / float64(len(points)),
	}
}

// RadiusOfGyration calculates the radius of gyration for a set of points:
// the RMS distance of the points from their centroid, in meters. A small
// radius over a long claimed path is the signature of GPS drift.
func RadiusOfGyration(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}

	center := Centroid(points)

	var sumSquaredDist float64
	for _, p := range points {
		dist := HaversineDistance(center.Lat, center.Lon, p.Lat, p.Lon)
		sumSquaredDist += dist * dist
	}

	return math.Sqrt(sumSquaredDist / float64(len(points)))
}

// BoundingBox calculates the bounding box of a set of points
// Returns (minLat, minLon, maxLat, maxLon)
func BoundingBox(points []Point) (float64, float64, float64, float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLon, maxLon := points[0].Lon, points[0].Lon

	for _, p := range points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}

	return minLat, minLon, maxLat, maxLon
}

// BoundingBoxDimensions calculates the width and height of the bounding box
// of a set of points, in meters.
func BoundingBoxDimensions(points []Point) (width, height float64) {
	minLat, minLon, maxLat, maxLon := BoundingBox(points)
	width = HaversineDistance(minLat, minLon, minLat, maxLon)
	height = HaversineDistance(minLat, minLon, maxLat, minLon)
	return width, height
}

// PathLength calculates the total length of a path (sequence of points) in meters
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		dist := HaversineDistance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		totalDist += dist
	}

	return totalDist
}

// NetDisplacement calculates the straight-line distance between the first and
// last point of a path, in meters.
func NetDisplacement(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	first := points[0]
	last := points[len(points)-1]
	return HaversineDistance(first.Lat, first.Lon, last.Lat, last.Lon)
}

// MaxDistanceFrom returns the maximum distance from origin to any point, in meters.
func MaxDistanceFrom(origin Point, points []Point) float64 {
	var max float64
	for _, p := range points {
		dist := HaversineDistance(origin.Lat, origin.Lon, p.Lat, p.Lon)
		if dist > max {
			max = dist
		}
	}
	return max
}

// Sinuosity calculates the sinuosity of a path:
// actual path length / straight-line distance.
// Value of 1 means straight line, >1 means curved/winding path.
// Rail and road travel tends toward 1; human movement wanders.
func Sinuosity(points []Point) float64 {
	if len(points) < 2 {
		return 1.0
	}

	pathLen := PathLength(points)
	straightDist := NetDisplacement(points)

	if straightDist == 0 {
		return 1.0
	}

	return pathLen / straightDist
}

// BearingChangesPerKm counts direction changes larger than threshold degrees
// between consecutive path legs, normalized by path length in kilometers.
// Vehicles on roads or rails change direction rarely; pedestrians often.
func BearingChangesPerKm(points []Point, thresholdDeg float64) float64 {
	if len(points) < 3 {
		return 0
	}

	pathLen := PathLength(points)
	if pathLen <= 0 {
		return 0
	}

	changes := 0
	prevBearing := Bearing(points[0].Lat, points[0].Lon, points[1].Lat, points[1].Lon)
	for i := 2; i < len(points); i++ {
		bearing := Bearing(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
		delta := math.Abs(bearing - prevBearing)
		if delta > 180 {
			delta = 360 - delta
		}
		if delta > thresholdDeg {
			changes++
		}
		prevBearing = bearing
	}

	return float64(changes) / (pathLen / 1000.0)
}
