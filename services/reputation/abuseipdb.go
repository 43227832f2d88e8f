package reputation

import (
	"context"
	"net/http"
	"net/url"
)

const abuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"

type abuseIPDBResponse struct {
	Data struct {
		IPAddress            string `json:"ipAddress"`
		IsWhitelisted        bool   `json:"isWhitelisted"`
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		UsageType            string `json:"usageType"`
		ISP                  string `json:"isp"`
		Domain               string `json:"domain"`
		IsTor                bool   `json:"isTor"`
		TotalReports         int    `json:"totalReports"`
		LastReportedAt       string `json:"lastReportedAt"`
	} `json:"data"`
}

type AbuseIPDB struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewAbuseIPDB(apiKey string, client *http.Client) *AbuseIPDB {
	return &AbuseIPDB{apiKey: apiKey, baseURL: abuseIPDBBaseURL, client: client}
}

func (s *AbuseIPDB) Name() string { return SourceAbuseIPDB }

func (s *AbuseIPDB) Lookup(ctx context.Context, ip string) (*SourceResult, error) {
	q := url.Values{}
	q.Set("ipAddress", ip)
	q.Set("maxAgeInDays", "90")

	var resp abuseIPDBResponse
	err := getJSON(ctx, s.client, "AbuseIPDB.Lookup", s.baseURL+"/check?"+q.Encode(), map[string]string{"Key": s.apiKey}, &resp)
	if err != nil {
		return nil, err
	}

	d := resp.Data
	return &SourceResult{
		Score: score(float64(d.AbuseConfidenceScore)),
		Details: map[string]any{
			"country_code":     d.CountryCode,
			"usage_type":       d.UsageType,
			"isp":              d.ISP,
			"domain":           d.Domain,
			"total_reports":    d.TotalReports,
			"is_tor":           d.IsTor,
			"is_whitelisted":   d.IsWhitelisted,
			"last_reported_at": d.LastReportedAt,
		},
		Flags: Flags{
			Malicious: d.AbuseConfidenceScore >= 50,
			Proxy:     d.IsTor,
		},
	}, nil
}
