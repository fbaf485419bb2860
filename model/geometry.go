package model

// Point is a position in WGS-84 degrees. It is treated as an immutable value
// throughout the engine.
type Point struct {
	Lat float64
	Lon float64
}

// Circle is a circular zone geometry: a center point plus a radius in metres.
type Circle struct {
	Center  Point
	RadiusM float64
}

// Polygon is an ordered vertex ring. The first vertex implicitly closes to
// the last one. Self-intersection and winding order are not validated; the
// containment test gives even-odd semantics for whatever ring it is handed.
type Polygon struct {
	Vertices []Point
}

// ShapeKind identifies which geometry variant a zone or draw session carries.
type ShapeKind string

const (
	ShapeCircle  ShapeKind = "circle"
	ShapePolygon ShapeKind = "polygon"
	// ShapeMarker is a single-point shape used for address picking, not for
	// zone geometry.
	ShapeMarker ShapeKind = "marker"
)
