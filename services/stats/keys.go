package stats

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dnsscience/telemetry/dto"
)

const (
	KeyPrefix     = "stats:"
	KeyAll        = KeyPrefix + "all"
	KeyLastUpdate = KeyPrefix + "last_update"
	KeyCountries  = KeyPrefix + "countries"
)

type metric struct {
	name string
	get  func(*dto.Stats) string
	set  func(*dto.Stats, string) error
}

func intMetric(name string, field func(*dto.Stats) *int64) metric {
	return metric{
		name: name,
		get:  func(s *dto.Stats) string { return strconv.FormatInt(*field(s), 10) },
		set: func(s *dto.Stats, v string) (err error) {
			*field(s), err = strconv.ParseInt(v, 10, 64)
			return err
		},
	}
}

func floatMetric(name string, field func(*dto.Stats) *float64) metric {
	return metric{
		name: name,
		get:  func(s *dto.Stats) string { return strconv.FormatFloat(*field(s), 'f', -1, 64) },
		set: func(s *dto.Stats, v string) (err error) {
			*field(s), err = strconv.ParseFloat(v, 64)
			return err
		},
	}
}

// metrics is the flat key layout, one stats:<name> key per entry.
var metrics = []metric{
	intMetric("total_domains", func(s *dto.Stats) *int64 { return &s.TotalDomains }),
	intMetric("domains_today", func(s *dto.Stats) *int64 { return &s.DomainsToday }),
	intMetric("domains_this_week", func(s *dto.Stats) *int64 { return &s.DomainsThisWeek }),
	intMetric("domains_this_month", func(s *dto.Stats) *int64 { return &s.DomainsThisMonth }),

	intMetric("email_total", func(s *dto.Stats) *int64 { return &s.EmailSecurity.Total }),
	intMetric("email_mx", func(s *dto.Stats) *int64 { return &s.EmailSecurity.MX }),
	floatMetric("email_mx_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.MXPct }),
	intMetric("email_spf", func(s *dto.Stats) *int64 { return &s.EmailSecurity.SPF }),
	floatMetric("email_spf_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.SPFPct }),
	intMetric("email_dmarc", func(s *dto.Stats) *int64 { return &s.EmailSecurity.DMARC }),
	floatMetric("email_dmarc_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.DMARCPct }),
	intMetric("email_dkim", func(s *dto.Stats) *int64 { return &s.EmailSecurity.DKIM }),
	floatMetric("email_dkim_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.DKIMPct }),
	intMetric("email_dane", func(s *dto.Stats) *int64 { return &s.EmailSecurity.DANE }),
	floatMetric("email_dane_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.DANEPct }),
	intMetric("email_mta_sts", func(s *dto.Stats) *int64 { return &s.EmailSecurity.MTASTS }),
	floatMetric("email_mta_sts_pct", func(s *dto.Stats) *float64 { return &s.EmailSecurity.MTASTSPct }),

	intMetric("ssl_total", func(s *dto.Stats) *int64 { return &s.SSLCertificates.Total }),
	intMetric("ssl_expiring_soon", func(s *dto.Stats) *int64 { return &s.SSLCertificates.ExpiringSoon }),
	intMetric("ssl_expired", func(s *dto.Stats) *int64 { return &s.SSLCertificates.Expired }),

	intMetric("valuations_total", func(s *dto.Stats) *int64 { return &s.Valuations.Total }),
	floatMetric("valuations_total_value", func(s *dto.Stats) *float64 { return &s.Valuations.TotalValue }),

	{
		name: "countries",
		get: func(s *dto.Stats) string {
			b, _ := json.Marshal(s.Countries)
			return string(b)
		},
		set: func(s *dto.Stats, v string) error {
			s.Countries = map[string]int64{}
			return json.Unmarshal([]byte(v), &s.Countries)
		},
	},
	{
		name: "geoip_ready",
		get:  func(s *dto.Stats) string { return strconv.FormatBool(s.GeoIPReady) },
		set: func(s *dto.Stats, v string) (err error) {
			s.GeoIPReady, err = strconv.ParseBool(v)
			return err
		},
	},
	intMetric("last_update_unix", func(s *dto.Stats) *int64 { return &s.LastUpdateUnix }),
	{
		name: "last_update",
		get:  func(s *dto.Stats) string { return s.LastUpdate },
		set: func(s *dto.Stats, v string) error {
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return err
			}
			s.LastUpdate = v
			return nil
		},
	},
}

// MetricKeys lists every flat key, the sentinel included.
func MetricKeys() []string {
	keys := make([]string, 0, len(metrics))
	for _, m := range metrics {
		keys = append(keys, KeyPrefix+m.name)
	}
	return keys
}

func Flatten(s *dto.Stats) map[string]string {
	out := make(map[string]string, len(metrics))
	for _, m := range metrics {
		out[KeyPrefix+m.name] = m.get(s)
	}
	return out
}

// Unflatten rebuilds the document. Every metric key must be present.
func Unflatten(values map[string]string) (*dto.Stats, error) {
	s := &dto.Stats{Countries: map[string]int64{}}
	for _, m := range metrics {
		key := KeyPrefix + m.name
		v, ok := values[key]
		if !ok {
			return nil, fmt.Errorf("missing stats key %s", key)
		}
		if err := m.set(s, v); err != nil {
			return nil, fmt.Errorf("bad value for %s: %w", key, err)
		}
	}
	return s, nil
}
