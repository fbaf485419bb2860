// core/editor.go
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
)

// EditorState is the shape-authoring state machine's position.
type EditorState int

const (
	EditorIdle EditorState = iota
	EditorDrawing
	EditorEditing
)

func (s EditorState) String() string {
	switch s {
	case EditorIdle:
		return "idle"
	case EditorDrawing:
		return "drawing"
	case EditorEditing:
		return "editing"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition indicates a gesture arrived in a state where it is
// not legal. The editor's state is unchanged when this is returned.
var ErrInvalidTransition = errors.New("invalid editor transition")

// RawShape is the normalized payload of a map-surface draw event. The map
// library's created/edited/deleted callbacks are translated into this shape
// before they reach the editor, so the rendering library stays swappable.
type RawShape struct {
	Kind model.ShapeKind

	// Circle gestures: the anchor and the rim point the user dragged to.
	Center model.Point
	Edge   model.Point

	// Polygon gestures: the drawn vertex ring.
	Points []model.Point

	// Marker gestures: the picked position.
	Marker model.Point
}

// AddressSink receives reverse-geocoded addresses for marker sessions. In
// the dashboard this is the address form backing the client/restaurant
// address fields.
type AddressSink interface {
	SetAddress(model.Address)
	Clear()
}

// AddressLookup is the asynchronous geocoding channel used by marker
// sessions. Advance invalidates every outstanding lookup (last-gesture-wins);
// implementations must drop responses issued before the latest Advance.
type AddressLookup interface {
	Advance()
	ReverseGeocode(p model.Point, apply func(model.Address))
}

// DrawSession is the transient working state of one draw or edit. At most
// one geometry exists at a time; a second created shape replaces the first.
type DrawSession struct {
	ID     string
	Kind   model.ShapeKind
	ZoneID string // set when editing an existing zone's geometry

	Circle  *model.Circle
	Polygon *model.Polygon
	Marker  *model.Point
}

// HasGeometry reports whether the session currently holds a shape.
func (s *DrawSession) HasGeometry() bool {
	if s == nil {
		return false
	}
	return s.Circle != nil || s.Polygon != nil || s.Marker != nil
}

// DrawResult is the committed outcome of a finalized session.
type DrawResult struct {
	Kind   model.ShapeKind
	ZoneID string

	Circle  *model.Circle
	Polygon *model.Polygon
	Marker  *model.Point
}

// ShapeEditor drives the single-active-geometry authoring workflow:
//
//	Idle -> Drawing(kind) -> Finalized | Cancelled
//	Idle -> Editing(zone) -> Finalized | Cancelled | Deleted
//
// All mutations are applied atomically relative to the gesture being
// processed; a rejected gesture leaves the session exactly as it was.
type ShapeEditor struct {
	mu      sync.Mutex
	state   EditorState
	session *DrawSession

	lookup AddressLookup
	sink   AddressSink
	log    logging.Logger
}

// EditorOption customises ShapeEditor construction.
type EditorOption func(*ShapeEditor)

// WithAddressLookup wires the async geocoder and the address form it feeds.
// Only marker sessions use it; zone-geometry sessions never geocode.
func WithAddressLookup(lookup AddressLookup, sink AddressSink) EditorOption {
	return func(e *ShapeEditor) {
		e.lookup = lookup
		e.sink = sink
	}
}

// WithEditorLogger attaches a structured logger.
func WithEditorLogger(log logging.Logger) EditorOption {
	return func(e *ShapeEditor) { e.log = log }
}

// NewShapeEditor constructs an idle editor. One editor owns one map surface's
// draw state; nothing here is shared between surfaces.
func NewShapeEditor(opts ...EditorOption) *ShapeEditor {
	e := &ShapeEditor{log: logging.Noop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current machine state.
func (e *ShapeEditor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns a copy of the working session, or nil when idle.
func (e *ShapeEditor) Session() *DrawSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	cp := *e.session
	return &cp
}

// StartDrawing opens a fresh session for the given shape kind. Legal only
// from Idle.
func (e *ShapeEditor) StartDrawing(kind model.ShapeKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EditorIdle {
		return fmt.Errorf("%w: StartDrawing while %s", ErrInvalidTransition, e.state)
	}
	switch kind {
	case model.ShapeCircle, model.ShapePolygon, model.ShapeMarker:
	default:
		return fmt.Errorf("%w: unknown shape kind %q", ErrInvalidTransition, kind)
	}

	e.advanceLocked()
	e.session = &DrawSession{ID: uuid.NewString(), Kind: kind}
	e.state = EditorDrawing
	e.log.Debug(context.Background(), "draw session started",
		logging.String("session_id", e.session.ID),
		logging.String("kind", string(kind)),
	)
	return nil
}

// StartEditing opens a session seeded with an existing zone's geometry.
// Legal only from Idle. The zone's Kind must agree with the geometry it
// carries: the registry and the fixture loader accept malformed zones (the
// resolver skips them), but a session seeded from one would have no valid
// shape to edit, so it is rejected here instead of failing later.
func (e *ShapeEditor) StartEditing(zone *model.Zone) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EditorIdle {
		return fmt.Errorf("%w: StartEditing while %s", ErrInvalidTransition, e.state)
	}
	if zone == nil || zone.ID == "" {
		return fmt.Errorf("%w: StartEditing needs an existing zone", ErrInvalidTransition)
	}
	switch zone.Kind {
	case model.ShapeCircle:
		if zone.Circle == nil {
			return fmt.Errorf("%w: zone %q declares a circle but carries none", ErrInvalidGeometry, zone.ID)
		}
	case model.ShapePolygon:
		if zone.Polygon == nil {
			return fmt.Errorf("%w: zone %q declares a polygon but carries none", ErrInvalidGeometry, zone.ID)
		}
	default:
		return fmt.Errorf("%w: zone %q has unknown shape kind %q", ErrInvalidGeometry, zone.ID, zone.Kind)
	}

	session := &DrawSession{ID: uuid.NewString(), Kind: zone.Kind, ZoneID: zone.ID}
	if zone.Circle != nil {
		c := *zone.Circle
		session.Circle = &c
	}
	if zone.Polygon != nil {
		poly := model.Polygon{Vertices: append([]model.Point(nil), zone.Polygon.Vertices...)}
		session.Polygon = &poly
	}

	e.advanceLocked()
	e.session = session
	e.state = EditorEditing
	e.log.Debug(context.Background(), "edit session started",
		logging.String("session_id", session.ID),
		logging.String("zone_id", zone.ID),
	)
	return nil
}

// ShapeCreated accepts a freshly drawn shape. Legal only in Drawing. If a
// shape already exists it is discarded first: the canvas holds at most one
// geometry, so there is never an ambiguous "which shape is the zone" state.
func (e *ShapeEditor) ShapeCreated(raw RawShape) error {
	e.mu.Lock()

	if e.state != EditorDrawing {
		e.mu.Unlock()
		return fmt.Errorf("%w: ShapeCreated while %s", ErrInvalidTransition, e.state)
	}
	if raw.Kind != e.session.Kind {
		e.mu.Unlock()
		return fmt.Errorf("%w: session draws %q, event carries %q", ErrInvalidTransition, e.session.Kind, raw.Kind)
	}

	replaced := e.session.HasGeometry()
	if err := e.applyRawLocked(raw); err != nil {
		e.mu.Unlock()
		return err
	}
	if replaced {
		e.log.Debug(context.Background(), "replaced existing shape",
			logging.String("session_id", e.session.ID))
	}

	marker := e.markerForLookupLocked()
	e.mu.Unlock()

	e.dispatchGeocode(marker)
	return nil
}

// ShapeEdited updates the working geometry in place, re-deriving its
// parameters. Legal in Drawing and Editing. A malformed event is rejected
// and the previous geometry survives untouched.
func (e *ShapeEditor) ShapeEdited(raw RawShape) error {
	e.mu.Lock()

	if e.state != EditorDrawing && e.state != EditorEditing {
		e.mu.Unlock()
		return fmt.Errorf("%w: ShapeEdited while %s", ErrInvalidTransition, e.state)
	}
	if raw.Kind != e.session.Kind {
		e.mu.Unlock()
		return fmt.Errorf("%w: session holds %q, event carries %q", ErrInvalidTransition, e.session.Kind, raw.Kind)
	}
	if err := e.applyRawLocked(raw); err != nil {
		e.mu.Unlock()
		return err
	}

	marker := e.markerForLookupLocked()
	e.mu.Unlock()

	e.dispatchGeocode(marker)
	return nil
}

// ShapeDeleted clears the working geometry and its derived form fields. The
// session stays open so the user can draw again; Finalize will refuse until
// a new shape exists.
func (e *ShapeEditor) ShapeDeleted() error {
	e.mu.Lock()

	if e.state != EditorDrawing && e.state != EditorEditing {
		e.mu.Unlock()
		return fmt.Errorf("%w: ShapeDeleted while %s", ErrInvalidTransition, e.state)
	}
	e.session.Circle = nil
	e.session.Polygon = nil
	e.session.Marker = nil
	e.advanceLocked()
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.Clear()
	}
	return nil
}

// Finalize commits the working geometry and returns to Idle. It refuses when
// no valid geometry exists; the session survives so the user can fix the
// drawing instead of losing it.
func (e *ShapeEditor) Finalize() (*DrawResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EditorDrawing && e.state != EditorEditing {
		return nil, fmt.Errorf("%w: Finalize while %s", ErrInvalidTransition, e.state)
	}
	if !e.session.HasGeometry() {
		return nil, fmt.Errorf("%w: nothing drawn yet", ErrInvalidGeometry)
	}

	switch e.session.Kind {
	case model.ShapeCircle:
		if e.session.Circle == nil {
			return nil, fmt.Errorf("%w: session draws a circle but holds none", ErrInvalidGeometry)
		}
		if err := ValidateCircle(*e.session.Circle); err != nil {
			return nil, err
		}
	case model.ShapePolygon:
		if e.session.Polygon == nil {
			return nil, fmt.Errorf("%w: session draws a polygon but holds none", ErrInvalidGeometry)
		}
		if err := ValidatePolygon(*e.session.Polygon); err != nil {
			return nil, err
		}
	}

	result := &DrawResult{
		Kind:    e.session.Kind,
		ZoneID:  e.session.ZoneID,
		Circle:  e.session.Circle,
		Polygon: e.session.Polygon,
		Marker:  e.session.Marker,
	}
	e.log.Debug(context.Background(), "session finalized",
		logging.String("session_id", e.session.ID),
		logging.String("kind", string(result.Kind)),
	)
	e.advanceLocked()
	e.session = nil
	e.state = EditorIdle
	return result, nil
}

// Cancel discards the session and any in-progress edits, returning to Idle.
// Cancelling an idle editor is a no-op, so navigation-away handlers can call
// it unconditionally.
func (e *ShapeEditor) Cancel() {
	e.mu.Lock()
	if e.state == EditorIdle {
		e.mu.Unlock()
		return
	}
	e.advanceLocked()
	e.session = nil
	e.state = EditorIdle
	sink := e.sink
	e.mu.Unlock()

	if sink != nil {
		sink.Clear()
	}
}

// Delete ends an Editing session by removing the zone's geometry entirely.
// It returns the zone ID whose geometry the caller should drop.
func (e *ShapeEditor) Delete() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != EditorEditing {
		return "", fmt.Errorf("%w: Delete while %s", ErrInvalidTransition, e.state)
	}
	zoneID := e.session.ZoneID
	e.advanceLocked()
	e.session = nil
	e.state = EditorIdle
	return zoneID, nil
}

// applyRawLocked derives geometry from the raw event and stores it on the
// session. Rejection leaves the session untouched.
func (e *ShapeEditor) applyRawLocked(raw RawShape) error {
	switch raw.Kind {
	case model.ShapeCircle:
		c, err := DeriveCircle(raw.Center, raw.Edge)
		if err != nil {
			return err
		}
		e.session.Circle = &c
		e.session.Polygon = nil
		e.session.Marker = nil
	case model.ShapePolygon:
		poly, err := DerivePolygon(raw.Points)
		if err != nil {
			return err
		}
		e.session.Polygon = &poly
		e.session.Circle = nil
		e.session.Marker = nil
	case model.ShapeMarker:
		m := raw.Marker
		e.session.Marker = &m
		e.session.Circle = nil
		e.session.Polygon = nil
	default:
		return fmt.Errorf("%w: unknown shape kind %q", ErrInvalidGeometry, raw.Kind)
	}
	e.advanceLocked()
	return nil
}

// advanceLocked invalidates outstanding geocode lookups. Every gesture calls
// it so that late provider responses are dropped instead of overwriting
// newer state.
func (e *ShapeEditor) advanceLocked() {
	if e.lookup != nil {
		e.lookup.Advance()
	}
}

// markerForLookupLocked returns the marker point to geocode, or nil when the
// current gesture needs no lookup.
func (e *ShapeEditor) markerForLookupLocked() *model.Point {
	if e.lookup == nil || e.sink == nil {
		return nil
	}
	if e.session == nil || e.session.Marker == nil {
		return nil
	}
	m := *e.session.Marker
	return &m
}

func (e *ShapeEditor) dispatchGeocode(marker *model.Point) {
	if marker == nil {
		return
	}
	sink := e.sink
	e.lookup.ReverseGeocode(*marker, func(addr model.Address) {
		sink.SetAddress(addr)
	})
}
