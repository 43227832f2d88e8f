package reputation

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

const (
	geoCacheKeyPrefix    = "geolocation:"
	SourceIPGeolocation  = "ipgeolocation"
	SourceIPInfo         = "ipinfo"
	ipGeolocationBaseURL = "https://api.ipgeolocation.io"
	ipInfoBaseURL        = "https://ipinfo.io"
)

type Geolocation struct {
	IP          string  `json:"ip"`
	Country     string  `json:"country,omitempty"`
	CountryCode string  `json:"country_code,omitempty"`
	Region      string  `json:"region,omitempty"`
	City        string  `json:"city,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	ISP         string  `json:"isp,omitempty"`
	Timezone    string  `json:"timezone,omitempty"`
	Source      string  `json:"source"`
	Cached      bool    `json:"cached"`
}

func (g *Geolocation) empty() bool {
	return g.Country == "" && g.CountryCode == "" && g.City == ""
}

type GeolocatorConfig struct {
	IPGeolocationAPIKey string
	IPInfoToken         string
	TTL                 time.Duration
}

// Geolocator tries ipgeolocation.io first and ipinfo.io second.
type Geolocator struct {
	cfg       GeolocatorConfig
	client    *http.Client
	limiter   Limiter
	cache     Cache
	log       logger.Logger
	ipGeoURL  string
	ipInfoURL string
}

func NewGeolocator(cfg GeolocatorConfig, client *http.Client, limiter Limiter, cache Cache, log logger.Logger) *Geolocator {
	return &Geolocator{
		cfg:       cfg,
		client:    client,
		limiter:   limiter,
		cache:     cache,
		log:       log,
		ipGeoURL:  ipGeolocationBaseURL,
		ipInfoURL: ipInfoBaseURL,
	}
}

type ipGeolocationResponse struct {
	IP          string `json:"ip"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code2"`
	StateProv   string `json:"state_prov"`
	City        string `json:"city"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	ISP         string `json:"isp"`
	TimeZone    struct {
		Name string `json:"name"`
	} `json:"time_zone"`
}

type ipInfoResponse struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Loc      string `json:"loc"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
	Bogon    bool   `json:"bogon"`
}

// Geolocate returns ErrNotFound when no provider knows the address. Empty
// answers are not cached.
func (g *Geolocator) Geolocate(ctx context.Context, ip string) (*Geolocation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Geolocator.Geolocate")
	defer span.Finish()
	tracing.TagComponentService(span)

	ip, err := utils.ParseIP(ip)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagIP(span, ip)

	key := geoCacheKeyPrefix + ip
	var cached Geolocation
	err = g.cache.GetJSON(ctx, key, &cached)
	switch {
	case err == nil:
		cached.Cached = true
		return &cached, nil
	case !errors.Is(err, er.ErrCacheMiss):
		g.log.Warnf("geolocation cache read failed for %s: %v", ip, err)
	}

	var geo *Geolocation
	for _, lookup := range []func(context.Context, string) (*Geolocation, error){g.fromIPGeolocation, g.fromIPInfo} {
		res, err := lookup(ctx, ip)
		if err != nil {
			g.log.Debugf("geolocation provider failed for %s: %v", ip, err)
			continue
		}
		if res != nil && !res.empty() {
			geo = res
			break
		}
	}
	if geo == nil {
		span.LogKV("result.found", false)
		return nil, er.ErrNotFound
	}

	if err := g.cache.SetJSON(ctx, key, geo, g.cfg.TTL); err != nil {
		g.log.Warnf("geolocation cache write failed for %s: %v", ip, err)
	}
	return geo, nil
}

func (g *Geolocator) allow(ctx context.Context, source string) error {
	if g.limiter == nil {
		return nil
	}
	ok, err := g.limiter.Allow(ctx, source)
	if err != nil {
		return err
	}
	if !ok {
		return er.New(er.KindQuota, source, er.ErrQuotaExceeded)
	}
	return nil
}

func (g *Geolocator) fromIPGeolocation(ctx context.Context, ip string) (*Geolocation, error) {
	if g.cfg.IPGeolocationAPIKey == "" {
		return nil, er.ErrSourceDisabled
	}
	if err := g.allow(ctx, SourceIPGeolocation); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("apiKey", g.cfg.IPGeolocationAPIKey)
	q.Set("ip", ip)

	var resp ipGeolocationResponse
	if err := getJSON(ctx, g.client, "IPGeolocation.Lookup", g.ipGeoURL+"/ipgeo?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	lat, _ := strconv.ParseFloat(resp.Latitude, 64)
	lng, _ := strconv.ParseFloat(resp.Longitude, 64)
	return &Geolocation{
		IP:          ip,
		Country:     resp.CountryName,
		CountryCode: resp.CountryCode,
		Region:      resp.StateProv,
		City:        resp.City,
		Latitude:    lat,
		Longitude:   lng,
		ISP:         resp.ISP,
		Timezone:    resp.TimeZone.Name,
		Source:      SourceIPGeolocation,
	}, nil
}

// fromIPInfo works without a token at a lower anonymous rate.
func (g *Geolocator) fromIPInfo(ctx context.Context, ip string) (*Geolocation, error) {
	if err := g.allow(ctx, SourceIPInfo); err != nil {
		return nil, err
	}

	endpoint := g.ipInfoURL + "/" + ip + "/json"
	if g.cfg.IPInfoToken != "" {
		endpoint += "?token=" + url.QueryEscape(g.cfg.IPInfoToken)
	}

	var resp ipInfoResponse
	if err := getJSON(ctx, g.client, "IPInfo.Lookup", endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Bogon {
		return nil, nil
	}

	geo := &Geolocation{
		IP:          ip,
		CountryCode: resp.Country,
		Region:      resp.Region,
		City:        resp.City,
		ISP:         resp.Org,
		Timezone:    resp.Timezone,
		Source:      SourceIPInfo,
	}
	if lat, lng, ok := strings.Cut(resp.Loc, ","); ok {
		geo.Latitude, _ = strconv.ParseFloat(lat, 64)
		geo.Longitude, _ = strconv.ParseFloat(lng, 64)
	}
	return geo, nil
}
