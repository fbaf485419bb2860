// core/registry.go
package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platefleet/zone-engine/model"
)

var (
	// ErrZoneExists indicates a zone with the same ID is already registered.
	ErrZoneExists = errors.New("zone already exists")
	// ErrZoneNotFound indicates a requested zone is not in the registry.
	ErrZoneNotFound = errors.New("zone not found")
)

// ZoneEventType indicates what kind of change happened in the registry.
type ZoneEventType int

const (
	ZoneEventAdded ZoneEventType = iota
	ZoneEventUpdated
)

// ZoneEvent is emitted to subscribers whenever the zone set changes.
type ZoneEvent struct {
	Type  ZoneEventType
	Zone  model.Zone
	Count int // total zones after the change
}

// ZonePatch describes a partial zone update. Nil fields are left untouched.
// Setting Kind requires the matching geometry field to be set as well.
type ZonePatch struct {
	Name    *string
	Status  *model.ZoneStatus
	Kind    *model.ShapeKind
	Circle  *model.Circle
	Polygon *model.Polygon

	Pricing      *model.PricingOverride
	ClearPricing bool
}

// ZoneRegistry is the in-memory zone set for one restaurant-address scope.
// It preserves insertion order for display and notifies subscribers of
// changes so the serving layer can keep counters current.
//
// Stored zones never escape: every read path hands out deep copies, so a
// resolver pass holds a consistent snapshot while the HTTP surface mutates
// zones concurrently.
type ZoneRegistry struct {
	mu    sync.RWMutex
	scope string
	zones map[string]*model.Zone
	order []string

	subs      map[int]func(ZoneEvent)
	nextSubID int
}

// NewZoneRegistry constructs an empty registry for the given scope.
func NewZoneRegistry(scope string) *ZoneRegistry {
	return &ZoneRegistry{
		scope: scope,
		zones: make(map[string]*model.Zone),
		subs:  make(map[int]func(ZoneEvent)),
	}
}

// cloneZone deep-copies a zone, giving readers their own geometry and
// pricing pointers.
func cloneZone(z *model.Zone) *model.Zone {
	cp := *z
	if z.Circle != nil {
		c := *z.Circle
		cp.Circle = &c
	}
	if z.Polygon != nil {
		cp.Polygon = &model.Polygon{Vertices: append([]model.Point(nil), z.Polygon.Vertices...)}
	}
	if z.Pricing != nil {
		p := *z.Pricing
		cp.Pricing = &p
	}
	return &cp
}

// Scope returns the restaurant-address scope this registry belongs to.
func (r *ZoneRegistry) Scope() string { return r.scope }

// AddZone registers a new zone. The ID must be non-empty and unique within
// the scope. The zone's geometry is not validated here: a malformed zone is
// skipped at resolution time instead of being rejected at the door, matching
// how the resolver degrades (one bad zone must not block pricing).
func (r *ZoneRegistry) AddZone(z *model.Zone) error {
	if z == nil || z.ID == "" {
		return fmt.Errorf("zone ID is required")
	}

	r.mu.Lock()
	if _, exists := r.zones[z.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrZoneExists, z.ID)
	}
	if z.Status == "" {
		z.Status = model.ZoneStatusPending
	}
	r.zones[z.ID] = cloneZone(z)
	r.order = append(r.order, z.ID)
	event := ZoneEvent{Type: ZoneEventAdded, Zone: *cloneZone(z), Count: len(r.order)}
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	// Notify outside the lock to avoid deadlocks with subscribers that read
	// back from the registry.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// UpdateZone applies a patch to an existing zone atomically: either every
// field of the patch lands, or none do.
func (r *ZoneRegistry) UpdateZone(id string, patch ZonePatch) error {
	r.mu.Lock()
	z, ok := r.zones[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrZoneNotFound, id)
	}

	if patch.Name != nil {
		z.Name = *patch.Name
	}
	if patch.Status != nil {
		z.Status = *patch.Status
	}
	if patch.Kind != nil {
		z.Kind = *patch.Kind
	}
	if patch.Circle != nil {
		c := *patch.Circle
		z.Circle = &c
		z.Polygon = nil
	}
	if patch.Polygon != nil {
		poly := model.Polygon{Vertices: append([]model.Point(nil), patch.Polygon.Vertices...)}
		z.Polygon = &poly
		z.Circle = nil
	}
	if patch.ClearPricing {
		z.Pricing = nil
	} else if patch.Pricing != nil {
		p := *patch.Pricing
		z.Pricing = &p
	}

	event := ZoneEvent{Type: ZoneEventUpdated, Zone: *cloneZone(z), Count: len(r.order)}
	subs := r.snapshotSubsLocked()
	r.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// SetStatus flips a zone's lifecycle status. Zones are never removed;
// deactivation is the only way to retire one.
func (r *ZoneRegistry) SetStatus(id string, status model.ZoneStatus) error {
	return r.UpdateZone(id, ZonePatch{Status: &status})
}

// GetZone returns a copy of the zone with the given ID, or nil if not found.
func (r *ZoneRegistry) GetZone(id string) *model.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()
	z, ok := r.zones[id]
	if !ok {
		return nil
	}
	return cloneZone(z)
}

// ListZones returns a snapshot of all zones in insertion order. The copies
// are taken under one read lock, so the slice is internally consistent even
// while updates land concurrently.
func (r *ZoneRegistry) ListZones() []*model.Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.Zone, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, cloneZone(r.zones[id]))
	}
	return res
}

// Len returns the number of registered zones.
func (r *ZoneRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Subscribe registers a callback for zone events. It returns an idempotent
// unsubscribe function. Subscribers are keyed by token, so unsubscribing one
// never disturbs the others.
func (r *ZoneRegistry) Subscribe(fn func(ZoneEvent)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSubID
	r.nextSubID++
	r.subs[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subs, id)
	}
}

func (r *ZoneRegistry) snapshotSubsLocked() []func(ZoneEvent) {
	subs := make([]func(ZoneEvent), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}
