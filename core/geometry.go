// core/geometry.go
package core

import (
	"errors"
	"fmt"
	"math"

	"github.com/platefleet/zone-engine/model"
)

// EarthRadiusM is the mean Earth radius used for all distance calculations
// in the containment layer (metres).
const EarthRadiusM = 6371000.0

// ErrInvalidGeometry wraps every geometry validation failure so callers can
// match the whole family with errors.Is.
var ErrInvalidGeometry = errors.New("invalid geometry")

// HaversineMeters returns the great-circle distance between two points in
// metres. This is the single distance formula for the whole engine: circle
// containment and circle derivation must agree near the radius boundary, so
// neither may substitute a different approximation.
func HaversineMeters(a, b model.Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusM * math.Asin(math.Sqrt(h))
}

// CircleContains reports whether p lies within the circle, boundary included.
func CircleContains(c model.Circle, p model.Point) bool {
	return HaversineMeters(c.Center, p) <= c.RadiusM
}

// PolygonContains runs an even-odd ray cast over the vertex ring, treating
// longitude/latitude as planar x/y. A point is inside iff the parity check is
// odd; points exactly on an edge get whichever answer the parity arithmetic
// produces. Rings with fewer than 3 vertices never contain anything.
func PolygonContains(poly model.Polygon, p model.Point) bool {
	vs := poly.Vertices
	if len(vs) < 3 {
		return false
	}

	inside := false
	j := len(vs) - 1
	for i := 0; i < len(vs); i++ {
		vi, vj := vs[i], vs[j]
		if (vi.Lat > p.Lat) != (vj.Lat > p.Lat) {
			crossLon := vi.Lon + (p.Lat-vi.Lat)/(vj.Lat-vi.Lat)*(vj.Lon-vi.Lon)
			if p.Lon < crossLon {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// ZoneContains resolves the zone's geometry variant and applies the matching
// containment predicate. A zone whose geometry is missing or malformed yields
// ErrInvalidGeometry so the caller can skip it without aborting a whole
// resolution pass.
func ZoneContains(z *model.Zone, p model.Point) (bool, error) {
	if z == nil {
		return false, fmt.Errorf("%w: zone is nil", ErrInvalidGeometry)
	}
	switch z.Kind {
	case model.ShapeCircle:
		if z.Circle == nil {
			return false, fmt.Errorf("%w: zone %q declares a circle but carries none", ErrInvalidGeometry, z.ID)
		}
		if err := ValidateCircle(*z.Circle); err != nil {
			return false, err
		}
		return CircleContains(*z.Circle, p), nil
	case model.ShapePolygon:
		if z.Polygon == nil {
			return false, fmt.Errorf("%w: zone %q declares a polygon but carries none", ErrInvalidGeometry, z.ID)
		}
		if err := ValidatePolygon(*z.Polygon); err != nil {
			return false, err
		}
		return PolygonContains(*z.Polygon, p), nil
	default:
		return false, fmt.Errorf("%w: zone %q has unknown shape kind %q", ErrInvalidGeometry, z.ID, z.Kind)
	}
}

// ValidateCircle enforces a finite, positive radius.
func ValidateCircle(c model.Circle) error {
	if math.IsNaN(c.RadiusM) || math.IsInf(c.RadiusM, 0) {
		return fmt.Errorf("%w: radius must be finite", ErrInvalidGeometry)
	}
	if c.RadiusM <= 0 {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidGeometry, c.RadiusM)
	}
	return nil
}

// ValidatePolygon enforces the minimum ring size. Self-intersection is
// deliberately not checked; the ray cast gives even-odd results for whatever
// ring the map surface produced.
func ValidatePolygon(poly model.Polygon) error {
	if len(poly.Vertices) < 3 {
		return fmt.Errorf("%w: polygon needs at least 3 vertices, got %d", ErrInvalidGeometry, len(poly.Vertices))
	}
	return nil
}

// DeriveCircle builds a circle from the two points of a free-hand circle
// gesture: the anchor and the rim point the user dragged to.
func DeriveCircle(center, edge model.Point) (model.Circle, error) {
	c := model.Circle{Center: center, RadiusM: HaversineMeters(center, edge)}
	if err := ValidateCircle(c); err != nil {
		return model.Circle{}, err
	}
	return c, nil
}

// DerivePolygon maps drawn vertices straight into a polygon, rejecting rings
// that are too small to enclose anything.
func DerivePolygon(points []model.Point) (model.Polygon, error) {
	poly := model.Polygon{Vertices: append([]model.Point(nil), points...)}
	if err := ValidatePolygon(poly); err != nil {
		return model.Polygon{}, err
	}
	return poly, nil
}
