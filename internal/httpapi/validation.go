package httpapi

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/model"
)

func parseShapeKind(raw string) (model.ShapeKind, error) {
	switch model.ShapeKind(raw) {
	case model.ShapeCircle:
		return model.ShapeCircle, nil
	case model.ShapePolygon:
		return model.ShapePolygon, nil
	default:
		return "", fmt.Errorf("unsupported zone type %q (want circle or polygon)", raw)
	}
}

func parseZoneStatus(raw string) (model.ZoneStatus, error) {
	switch model.ZoneStatus(raw) {
	case model.ZoneStatusActive, model.ZoneStatusInactive, model.ZoneStatusPending:
		return model.ZoneStatus(raw), nil
	default:
		return "", fmt.Errorf("unsupported zone status %q", raw)
	}
}

// zoneFromCreateRequest validates the request and builds the zone, geometry
// included. Geometry is validated at the door here: the API is an authoring
// surface, so a malformed shape is a client error rather than something to
// silently skip later.
func zoneFromCreateRequest(req createZoneRequest) (*model.Zone, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("zone name is required")
	}
	kind, err := parseShapeKind(req.Type)
	if err != nil {
		return nil, err
	}

	status := model.ZoneStatusPending
	if req.Status != "" {
		status, err = parseZoneStatus(req.Status)
		if err != nil {
			return nil, err
		}
	}

	z := &model.Zone{
		ID:      req.ID,
		Name:    req.Name,
		Kind:    kind,
		Status:  status,
		Pricing: req.Pricing.toModel(),
	}

	switch kind {
	case model.ShapeCircle:
		if req.Center == nil || req.RadiusM == nil {
			return nil, fmt.Errorf("circle zone requires center and radius_m")
		}
		circle := model.Circle{Center: toPoint(*req.Center), RadiusM: *req.RadiusM}
		if err := core.ValidateCircle(circle); err != nil {
			return nil, err
		}
		z.Circle = &circle
	case model.ShapePolygon:
		if len(req.Points) == 0 {
			return nil, fmt.Errorf("polygon zone requires points")
		}
		vertices := make([]model.Point, 0, len(req.Points))
		for _, p := range req.Points {
			vertices = append(vertices, toPoint(p))
		}
		poly, err := core.DerivePolygon(vertices)
		if err != nil {
			return nil, err
		}
		z.Polygon = &poly
	}
	return z, nil
}

// patchFromUpdateRequest validates the request and translates it into a
// registry patch. A geometry change must be complete: type plus the matching
// geometry block.
func patchFromUpdateRequest(req updateZoneRequest) (core.ZonePatch, error) {
	var patch core.ZonePatch

	patch.Name = req.Name
	if req.Status != nil {
		status, err := parseZoneStatus(*req.Status)
		if err != nil {
			return core.ZonePatch{}, err
		}
		patch.Status = &status
	}

	if req.Type != nil {
		kind, err := parseShapeKind(*req.Type)
		if err != nil {
			return core.ZonePatch{}, err
		}
		patch.Kind = &kind

		switch kind {
		case model.ShapeCircle:
			if req.Center == nil || req.RadiusM == nil {
				return core.ZonePatch{}, fmt.Errorf("changing to a circle requires center and radius_m")
			}
		case model.ShapePolygon:
			if len(req.Points) == 0 {
				return core.ZonePatch{}, fmt.Errorf("changing to a polygon requires points")
			}
		}
	}

	if req.Center != nil || req.RadiusM != nil {
		if req.Center == nil || req.RadiusM == nil {
			return core.ZonePatch{}, fmt.Errorf("center and radius_m must be updated together")
		}
		circle := model.Circle{Center: toPoint(*req.Center), RadiusM: *req.RadiusM}
		if err := core.ValidateCircle(circle); err != nil {
			return core.ZonePatch{}, err
		}
		patch.Circle = &circle
	}
	if len(req.Points) > 0 {
		vertices := make([]model.Point, 0, len(req.Points))
		for _, p := range req.Points {
			vertices = append(vertices, toPoint(p))
		}
		poly, err := core.DerivePolygon(vertices)
		if err != nil {
			return core.ZonePatch{}, err
		}
		patch.Polygon = &poly
	}
	if patch.Circle != nil && patch.Polygon != nil {
		return core.ZonePatch{}, fmt.Errorf("a zone carries one geometry: send a circle or points, not both")
	}

	if req.ClearPricing {
		patch.ClearPricing = true
	} else if req.Pricing != nil {
		patch.Pricing = req.Pricing.toModel()
	}
	return patch, nil
}

// parseLatLng reads the lat/lng query parameters shared by the pricing and
// geocoding GET endpoints.
func parseLatLng(q url.Values) (model.Point, error) {
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return model.Point{}, fmt.Errorf("invalid lng %q", q.Get("lng"))
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return model.Point{}, fmt.Errorf("coordinates out of range: %v, %v", lat, lng)
	}
	return model.Point{Lat: lat, Lon: lng}, nil
}
