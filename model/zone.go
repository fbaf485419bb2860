package model

// ZoneStatus mirrors the lifecycle the dashboard exposes. Zones are never
// removed once created; they are deactivated instead.
type ZoneStatus string

const (
	ZoneStatusActive   ZoneStatus = "active"
	ZoneStatusInactive ZoneStatus = "inactive"
	ZoneStatusPending  ZoneStatus = "pending"
)

// Zone is a named delivery area scoped to one restaurant address. Exactly one
// of Circle or Polygon is set, selected by Kind.
type Zone struct {
	ID     string
	Name   string
	Kind   ShapeKind // ShapeCircle or ShapePolygon
	Status ZoneStatus

	Circle  *Circle
	Polygon *Polygon

	// Pricing overrides the scope defaults for this zone. Nil means the zone
	// defers entirely to the defaults.
	Pricing *PricingOverride
}
