// Package httpapi serves the zone engine over REST: zone authoring, pricing
// resolution, and the geocoding endpoints the delivery form consumes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/internal/geocode"
	"github.com/platefleet/zone-engine/internal/logging"
)

// Service bundles the engine pieces behind the HTTP handlers.
type Service struct {
	registry *core.ZoneRegistry
	resolver *core.PricingResolver
	geocoder geocode.Provider

	log logging.Logger
}

// ServiceOption customises Service construction.
type ServiceOption func(*Service)

// WithServiceLogger attaches a structured logger.
func WithServiceLogger(log logging.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// NewService wires the handlers to a registry, resolver, and geocoding
// provider. The provider may be nil when geocoding endpoints are not served.
func NewService(reg *core.ZoneRegistry, resolver *core.PricingResolver, provider geocode.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		registry: reg,
		resolver: resolver,
		geocoder: provider,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) handleListZones(w http.ResponseWriter, r *http.Request) {
	zones := s.registry.ListZones()
	resp := zoneListResponse{
		Scope: s.registry.Scope(),
		Zones: make([]zoneWire, 0, len(zones)),
	}
	for _, z := range zones {
		resp.Zones = append(resp.Zones, zoneToWire(z))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleGetZone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	z := s.registry.GetZone(id)
	if z == nil {
		writeError(w, http.StatusNotFound, "zone not found")
		return
	}
	writeJSON(w, http.StatusOK, zoneToWire(z))
}

func (s *Service) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req createZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	z, err := zoneFromCreateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if z.ID == "" {
		z.ID = uuid.NewString()
	}

	if err := s.registry.AddZone(z); err != nil {
		if errors.Is(err, core.ErrZoneExists) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info(r.Context(), "zone created",
		logging.String("zone_id", z.ID),
		logging.String("kind", string(z.Kind)),
	)
	writeJSON(w, http.StatusCreated, zoneToWire(z))
}

func (s *Service) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req updateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch, err := patchFromUpdateRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.registry.UpdateZone(id, patch); err != nil {
		if errors.Is(err, core.ErrZoneNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info(r.Context(), "zone updated", logging.String("zone_id", id))
	writeJSON(w, http.StatusOK, zoneToWire(s.registry.GetZone(id)))
}

func (s *Service) handlePricingOptions(w http.ResponseWriter, r *http.Request) {
	p, err := parseLatLng(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"options": optionsToWire(s.resolver.Options(p)),
	})
}

func (s *Service) handleResolvePricing(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target.Lat < -90 || req.Target.Lat > 90 || req.Target.Lng < -180 || req.Target.Lng > 180 {
		writeError(w, http.StatusBadRequest, "target coordinates out of range")
		return
	}
	p := toPoint(req.Target)

	var (
		resolved core.ResolvedPricing
		opts     core.FieldOptions
		sel      core.Selection
	)
	if req.Selection == nil {
		resolved, opts, sel = s.resolver.ResolveInitial(p)
	} else {
		resolved, opts, sel = s.resolver.Resolve(p, selectionFromWire(req.Selection))
	}

	writeJSON(w, http.StatusOK, resolveResponse{
		Options:   optionsToWire(opts),
		Selection: selectionToWire(sel),
		Pricing:   pricingToWire(resolved),
	})
}

func (s *Service) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusNotImplemented, "geocoding is not configured")
		return
	}
	p, err := parseLatLng(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr, err := s.geocoder.ReverseGeocode(r.Context(), p)
	if err != nil {
		s.log.Warn(r.Context(), "reverse geocode failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "geocoding provider unavailable")
		return
	}
	writeJSON(w, http.StatusOK, addressToWire(addr))
}

func (s *Service) handleSearchPlaces(w http.ResponseWriter, r *http.Request) {
	if s.geocoder == nil {
		writeError(w, http.StatusNotImplemented, "geocoding is not configured")
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	city := r.URL.Query().Get("city")

	hits, err := s.geocoder.SearchPlaces(r.Context(), query, city)
	if err != nil {
		s.log.Warn(r.Context(), "place search failed", logging.Err(err))
		writeError(w, http.StatusBadGateway, "geocoding provider unavailable")
		return
	}

	resp := placeSearchResponse{Results: make([]placeWire, 0, len(hits))}
	for _, h := range hits {
		resp.Results = append(resp.Results, placeWire{
			Name:        h.Name,
			DisplayName: h.DisplayName,
			Position:    fromPoint(h.Position),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
