package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/model"
)

// Client is a Nominatim-style REST geocoding client. It tolerates partial
// provider results: whatever structured fields are present are mapped, the
// rest stay empty for the user to fill in manually.
type Client struct {
	BaseURL   string
	UserAgent string

	httpClient *http.Client
	log        logging.Logger
	metrics    Recorder
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient substitutes the HTTP client (shared transport, tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger attaches a structured logger.
func WithClientLogger(log logging.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithRecorder attaches a metrics recorder for provider calls.
func WithRecorder(rec Recorder) ClientOption {
	return func(c *Client) { c.metrics = rec }
}

// NewClient builds a provider client against the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    baseURL,
		UserAgent:  "zone-engine/1.0",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		log:        logging.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// reverse response shape; only the fields this engine needs are parsed.
type reverseJSON struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Postcode    string `json:"postcode"`
	} `json:"address"`
}

type searchHitJSON struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// ReverseGeocode resolves p into a structured address.
func (c *Client) ReverseGeocode(ctx context.Context, p model.Point) (model.Address, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 6, 64))

	t0 := time.Now()
	var payload reverseJSON
	err := c.getJSON(ctx, c.BaseURL+"/reverse?"+q.Encode(), &payload)
	c.observe("reverse", t0, err)
	if err != nil {
		c.log.Warn(ctx, "reverse geocode failed",
			logging.Float64("lat", p.Lat),
			logging.Float64("lon", p.Lon),
			logging.Err(err),
		)
		return model.Address{}, err
	}

	addr := model.Address{
		Street:     joinStreet(payload.Address.Road, payload.Address.HouseNumber),
		City:       firstNonEmpty(payload.Address.City, payload.Address.Town, payload.Address.Village),
		Province:   payload.Address.State,
		PostalCode: payload.Address.Postcode,
		Position:   p,
	}
	c.log.Debug(ctx, "reverse geocode ok",
		logging.Float64("lat", p.Lat),
		logging.Float64("lon", p.Lon),
		logging.String("city", addr.City),
	)
	return addr, nil
}

// SearchPlaces runs a forward search, scoping the query to nearCity when set.
func (c *Client) SearchPlaces(ctx context.Context, query, nearCity string) ([]model.PlaceCandidate, error) {
	text := query
	if nearCity != "" {
		text = query + ", " + nearCity
	}
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("q", text)
	q.Set("limit", "5")

	t0 := time.Now()
	var hits []searchHitJSON
	err := c.getJSON(ctx, c.BaseURL+"/search?"+q.Encode(), &hits)
	c.observe("search", t0, err)
	if err != nil {
		c.log.Warn(ctx, "place search failed", logging.String("query", text), logging.Err(err))
		return nil, err
	}

	candidates := make([]model.PlaceCandidate, 0, len(hits))
	for _, h := range hits {
		lat, latErr := strconv.ParseFloat(h.Lat, 64)
		lon, lonErr := strconv.ParseFloat(h.Lon, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		candidates = append(candidates, model.PlaceCandidate{
			Name:        h.Name,
			DisplayName: h.DisplayName,
			Position:    model.Point{Lat: lat, Lon: lon},
		})
	}
	return candidates, nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrProvider, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}
	return nil
}

func (c *Client) observe(op string, t0 time.Time, err error) {
	if c.metrics != nil {
		c.metrics.ObserveGeocode(op, time.Since(t0), err)
	}
}

func joinStreet(road, houseNumber string) string {
	if road == "" {
		return ""
	}
	if houseNumber == "" {
		return road
	}
	return road + " " + houseNumber
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
