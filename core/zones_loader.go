// core/zones_loader.go
package core

import (
	"fmt"
	"io"

	"github.com/platefleet/zone-engine/model"
	"gopkg.in/yaml.v3"
)

// ZoneScenario is a small summary of what was loaded from YAML. It's mainly
// useful for logging from main() and for the delivery simulator.
type ZoneScenario struct {
	Scope    string
	Defaults model.DefaultPricing
	ZoneIDs  []string
}

// internal YAML shapes – kept unexported so we're free to evolve them.
type zoneScenarioYAML struct {
	Scope    string            `yaml:"scope"`
	Defaults scenarioPriceYAML `yaml:"defaults"`
	Zones    []zoneYAML        `yaml:"zones"`
}

type scenarioPriceYAML struct {
	FullCommission    float64 `yaml:"full_commission"`
	PartialCommission float64 `yaml:"partial_commission"`
	Fees              float64 `yaml:"user_fees"`
}

type zoneYAML struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"` // "circle" | "polygon"
	Status string `yaml:"status"`

	Center  *pointYAML  `yaml:"center"`   // circle
	RadiusM float64     `yaml:"radius_m"` // circle
	Points  []pointYAML `yaml:"points"`   // polygon

	Pricing *priceOverrideYAML `yaml:"pricing"`
}

type pointYAML struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type priceOverrideYAML struct {
	FullCommission    *float64 `yaml:"full_commission"`
	PartialCommission *float64 `yaml:"partial_commission"`
	Fees              *float64 `yaml:"user_fees"`
}

// LoadZoneScenario reads a YAML scenario from r, populates the registry with
// its zones, and returns the scope defaults plus a summary.
//
// It fails only on YAML / structural errors (missing IDs, duplicate IDs,
// unknown shape types). Geometry is deliberately not validated here: the
// resolver already skips malformed zones at matching time, and a fixture
// should load the same way the persistence API would deliver it.
func LoadZoneScenario(reg *ZoneRegistry, r io.Reader) (*ZoneScenario, error) {
	if reg == nil {
		return nil, fmt.Errorf("LoadZoneScenario: registry is nil")
	}

	var payload zoneScenarioYAML
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("LoadZoneScenario: decode failed: %w", err)
	}
	return populateScenario(reg, payload)
}

// LoadZoneRegistry is the file-to-registry convenience used by the binaries:
// it builds a fresh registry scoped to the scenario's own scope field.
func LoadZoneRegistry(r io.Reader) (*ZoneRegistry, *ZoneScenario, error) {
	var payload zoneScenarioYAML
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("LoadZoneRegistry: decode failed: %w", err)
	}

	reg := NewZoneRegistry(payload.Scope)
	scenario, err := populateScenario(reg, payload)
	if err != nil {
		return nil, nil, err
	}
	return reg, scenario, nil
}

func populateScenario(reg *ZoneRegistry, payload zoneScenarioYAML) (*ZoneScenario, error) {
	result := &ZoneScenario{
		Scope: payload.Scope,
		Defaults: model.DefaultPricing{
			FullCommission:    payload.Defaults.FullCommission,
			PartialCommission: payload.Defaults.PartialCommission,
			Fees:              payload.Defaults.Fees,
		},
		ZoneIDs: make([]string, 0, len(payload.Zones)),
	}

	for i, zy := range payload.Zones {
		if zy.ID == "" {
			return nil, fmt.Errorf("LoadZoneScenario: zones[%d] has empty id", i)
		}

		z := &model.Zone{
			ID:   zy.ID,
			Name: zy.Name,
		}
		// An empty status defaults to pending in AddZone; anything else must
		// be a known status, or a fixture typo would create a zone that
		// silently never matches.
		switch model.ZoneStatus(zy.Status) {
		case "":
		case model.ZoneStatusActive, model.ZoneStatusInactive, model.ZoneStatusPending:
			z.Status = model.ZoneStatus(zy.Status)
		default:
			return nil, fmt.Errorf("LoadZoneScenario: zone %q has unknown status %q", zy.ID, zy.Status)
		}
		switch zy.Type {
		case "circle":
			z.Kind = model.ShapeCircle
			c := model.Circle{RadiusM: zy.RadiusM}
			if zy.Center != nil {
				c.Center = model.Point{Lat: zy.Center.Lat, Lon: zy.Center.Lon}
			}
			z.Circle = &c
		case "polygon":
			z.Kind = model.ShapePolygon
			poly := model.Polygon{Vertices: make([]model.Point, 0, len(zy.Points))}
			for _, p := range zy.Points {
				poly.Vertices = append(poly.Vertices, model.Point{Lat: p.Lat, Lon: p.Lon})
			}
			z.Polygon = &poly
		default:
			return nil, fmt.Errorf("LoadZoneScenario: zone %q has unknown type %q", zy.ID, zy.Type)
		}

		if zy.Pricing != nil {
			z.Pricing = &model.PricingOverride{
				FullCommission:    zy.Pricing.FullCommission,
				PartialCommission: zy.Pricing.PartialCommission,
				Fees:              zy.Pricing.Fees,
			}
		}

		if err := reg.AddZone(z); err != nil {
			return nil, fmt.Errorf("LoadZoneScenario: zone %q: %w", zy.ID, err)
		}
		result.ZoneIDs = append(result.ZoneIDs, zy.ID)
	}

	return result, nil
}
