package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/internal/observability"
)

// NewRouter assembles the engine's REST surface. Every route runs behind the
// request-id middleware; metrics middleware is added per route so the route
// template, not the raw path, becomes the label.
func NewRouter(svc *Service, metrics *observability.EngineCollector, log logging.Logger) http.Handler {
	if log == nil {
		log = logging.Noop()
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware(log))

	handle := func(route, method string, h http.HandlerFunc) {
		r.Handle(route, metrics.Middleware(route, h)).Methods(method)
	}

	handle("/v1/zones", http.MethodGet, svc.handleListZones)
	handle("/v1/zones", http.MethodPost, svc.handleCreateZone)
	handle("/v1/zones/{id}", http.MethodGet, svc.handleGetZone)
	handle("/v1/zones/{id}", http.MethodPut, svc.handleUpdateZone)

	handle("/v1/pricing/options", http.MethodGet, svc.handlePricingOptions)
	handle("/v1/pricing/resolve", http.MethodPost, svc.handleResolvePricing)

	handle("/v1/geocode/reverse", http.MethodGet, svc.handleReverseGeocode)
	handle("/v1/places/search", http.MethodGet, svc.handleSearchPlaces)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return r
}

// requestIDMiddleware tags every request context with a request_id, echoes it
// back in the response headers, and logs the request at debug level.
func requestIDMiddleware(log logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, id := logging.EnsureRequestID(r.Context())
			w.Header().Set("X-Request-ID", id)

			log.Debug(ctx, "http request",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
