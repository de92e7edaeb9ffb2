// Package mapbox geocodes free-text site and candidate locations with the
// Mapbox geocoding v5 API.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/config"
	"github.com/siteworks/recruitops/internal/web/cache"
)

var (
	// ErrNoToken is returned when no access token is configured
	ErrNoToken = errors.New("mapbox: access token not configured")
	// ErrNotFound is returned when a query matches no place
	ErrNotFound = errors.New("mapbox: location not found")
)

// Point is a geocoded location
type Point struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	PlaceName string  `json:"place_name"`
}

// Geocoder forward-geocodes addresses, caching results
type Geocoder struct {
	httpClient *http.Client
	baseURL    string
	token      string
	country    string
	ttl        time.Duration
	cache      cache.Cache
	logger     *zap.Logger
}

// New creates a geocoder. A nil cache disables caching.
func New(cfg config.MapboxConfig, c cache.Cache, logger *zap.Logger) *Geocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.mapbox.com"
	}
	return &Geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    base,
		token:      cfg.Token,
		country:    cfg.Country,
		ttl:        cfg.CacheTTL,
		cache:      c,
		logger:     logger.Named("mapbox"),
	}
}

type featureCollection struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
		Relevance float64   `json:"relevance"`
	} `json:"features"`
	Message string `json:"message"`
}

// Geocode resolves a free-text location to its best match
func (g *Geocoder) Geocode(ctx context.Context, query string) (Point, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Point{}, ErrNotFound
	}
	if g.token == "" {
		return Point{}, ErrNoToken
	}

	key := cache.Key("geocode", g.country, query)
	if g.cache != nil {
		var p Point
		err := cache.GetJSON(ctx, g.cache, key, &p)
		if err == nil {
			return p, nil
		}
		if !cache.IsMiss(err) {
			g.logger.Warn("geocode cache read failed", zap.String("query", query), zap.Error(err))
		}
	}

	p, err := g.lookup(ctx, query)
	if err != nil {
		return Point{}, err
	}

	if g.cache != nil {
		if err := cache.SetJSON(ctx, g.cache, key, p, g.ttl); err != nil {
			g.logger.Warn("geocode cache write failed", zap.String("query", query), zap.Error(err))
		}
	}
	return p, nil
}

func (g *Geocoder) lookup(ctx context.Context, query string) (Point, error) {
	params := url.Values{}
	params.Set("access_token", g.token)
	params.Set("limit", "1")
	params.Set("types", "address,postcode,locality,place")
	if g.country != "" {
		params.Set("country", g.country)
	}
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s",
		g.baseURL, url.PathEscape(query), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Point{}, fmt.Errorf("mapbox: failed to build request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("mapbox: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Point{}, fmt.Errorf("mapbox: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return Point{}, fmt.Errorf("mapbox: failed to decode response: %w", err)
	}
	if len(fc.Features) == 0 || len(fc.Features[0].Center) != 2 {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	f := fc.Features[0]
	g.logger.Debug("geocoded location",
		zap.String("query", query),
		zap.String("place", f.PlaceName),
		zap.Float64("relevance", f.Relevance))
	return Point{Lng: f.Center[0], Lat: f.Center[1], PlaceName: f.PlaceName}, nil
}
