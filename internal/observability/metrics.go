package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for the zone engine and provides
// helpers to wire them into the HTTP surface, the resolver, and the geocoding
// adapter.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	Resolutions       *prometheus.CounterVec
	ResolutionMatches prometheus.Histogram

	GeocodeRequests  *prometheus.CounterVec
	GeocodeDurations *prometheus.HistogramVec

	Zones prometheus.Gauge
}

// NewEngineCollector registers the engine's Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when nil.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zone_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route, method, and status code.",
	}, []string{"route", "method", "code"})
	requests, err := registerCounterVec(reg, requests, "zone_http_requests_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zone_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route"})
	durations, err = registerHistogramVec(reg, durations, "zone_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_resolutions_total",
		Help: "Total pricing resolutions, labeled by outcome (matched or fallback).",
	}, []string{"outcome"})
	resolutions, err = registerCounterVec(reg, resolutions, "pricing_resolutions_total")
	if err != nil {
		return nil, err
	}

	matches, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_resolution_zone_matches",
		Help:    "Number of zones matching a delivery point per resolution.",
		Buckets: []float64{0, 1, 2, 3, 5, 8},
	}), "pricing_resolution_zone_matches")
	if err != nil {
		return nil, err
	}

	geocodeRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_requests_total",
		Help: "Total geocoding provider calls, labeled by operation and outcome.",
	}, []string{"op", "outcome"})
	geocodeRequests, err = registerCounterVec(reg, geocodeRequests, "geocode_requests_total")
	if err != nil {
		return nil, err
	}

	geocodeDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocode_request_duration_seconds",
		Help:    "Geocoding provider latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"op"})
	geocodeDurations, err = registerHistogramVec(reg, geocodeDurations, "geocode_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	zones, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zone_registry_zones",
		Help: "Current number of zones in the registry.",
	}), "zone_registry_zones")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:          gatherer,
		HTTPRequests:      requests,
		HTTPDurations:     durations,
		Resolutions:       resolutions,
		ResolutionMatches: matches,
		GeocodeRequests:   geocodeRequests,
		GeocodeDurations:  geocodeDurations,
		Zones:             zones,
	}, nil
}

// Middleware records request counts and durations for an HTTP route.
func (c *EngineCollector) Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		}
		if c.HTTPDurations != nil {
			c.HTTPDurations.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveResolution satisfies core.ResolutionRecorder so the resolver can
// report outcomes without depending on Prometheus directly.
func (c *EngineCollector) ObserveResolution(matched, skipped int) {
	if c == nil {
		return
	}
	outcome := "fallback"
	if matched > 0 {
		outcome = "matched"
	}
	if c.Resolutions != nil {
		c.Resolutions.WithLabelValues(outcome).Inc()
	}
	if c.ResolutionMatches != nil {
		c.ResolutionMatches.Observe(float64(matched))
	}
}

// ObserveGeocode satisfies geocode.Recorder.
func (c *EngineCollector) ObserveGeocode(op string, d time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if c.GeocodeRequests != nil {
		c.GeocodeRequests.WithLabelValues(op, outcome).Inc()
	}
	if c.GeocodeDurations != nil {
		c.GeocodeDurations.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetZoneCount drives the registry gauge; wired to registry events in main.
func (c *EngineCollector) SetZoneCount(n int) {
	if c == nil || c.Zones == nil {
		return
	}
	c.Zones.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
