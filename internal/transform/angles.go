package transform

import "math"

const (
	degToRad = math.Pi / 180.0
	radToDeg = 180.0 / math.Pi
)

// Radians converts degrees to radians.
func Radians(deg float64) float64 { return deg * degToRad }

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 { return rad * radToDeg }

// NormalizeLongitude maps any longitude in degrees into (-180, 180].
// It is idempotent. NaN and ±Inf come back as NaN so callers can treat
// the point as not drawable.
func NormalizeLongitude(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return math.NaN()
	}
	if deg > -180.0 && deg <= 180.0 {
		return deg
	}
	l := math.Mod(deg+180.0, 360.0)
	if l <= 0 {
		l += 360.0
	}
	return l - 180.0
}

// ClampLatitude limits a latitude in degrees to [-90, 90].
func ClampLatitude(deg float64) float64 {
	return math.Max(-90.0, math.Min(90.0, deg))
}

// AngularDistance returns the great-circle distance in radians between two
// points given as (longitude, latitude) degrees.
//
// Uses the Vincenty special case for a sphere, which stays well conditioned
// for coincident and antipodal points alike. The longitude difference is
// normalized into (-180, 180] first so seam crossings do not produce jumps.
func AngularDistance(lng1, lat1, lng2, lat2 float64) float64 {
	dLng := Radians(NormalizeLongitude(lng2 - lng1))
	phi1 := Radians(ClampLatitude(lat1))
	phi2 := Radians(ClampLatitude(lat2))

	sin1, cos1 := math.Sincos(phi1)
	sin2, cos2 := math.Sincos(phi2)
	sinL, cosL := math.Sincos(dLng)

	a := cos2 * sinL
	b := cos1*sin2 - sin1*cos2*cosL
	return math.Atan2(math.Sqrt(a*a+b*b), sin1*sin2+cos1*cos2*cosL)
}

// finite reports whether every value is a usable float.
func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
