package utils

import "math"

const (
	EarthRadiusKm = 6378.1
	EarthRadiusMi = 3963.2
)

func degToRad(d float64) float64 {
	return d * (math.Pi / 180)
}

// CentralAngle returns the angle in radians between two points on a sphere.
func CentralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := degToRad(lat2 - lat1)
	dLon := degToRad(lon2 - lon1)

	lat1Rad := degToRad(lat1)
	lat2Rad := degToRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// HaversineDistance returns the great-circle distance in kilometres.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return EarthRadiusKm * CentralAngle(lat1, lon1, lat2, lon2)
}

// RadiusInRadians converts a distance in the given unit ("mi" or "km") to
// the angular radius expected by $centerSphere.
func RadiusInRadians(distance float64, unit string) float64 {
	if unit == "mi" {
		return distance / EarthRadiusMi
	}
	return distance / EarthRadiusKm
}

// DistanceMultiplier converts metres to the given unit.
func DistanceMultiplier(unit string) float64 {
	if unit == "mi" {
		return 0.000621371
	}
	return 0.001
}
