package reputation

import (
	"context"
	"math"
	"net/http"
)

const virusTotalBaseURL = "https://www.virustotal.com/api/v3"

type virusTotalResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Harmless   int `json:"harmless"`
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
			Reputation int    `json:"reputation"`
			Country    string `json:"country"`
			ASOwner    string `json:"as_owner"`
			ASN        int    `json:"asn"`
		} `json:"attributes"`
	} `json:"data"`
}

type VirusTotal struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVirusTotal(apiKey string, client *http.Client) *VirusTotal {
	return &VirusTotal{apiKey: apiKey, baseURL: virusTotalBaseURL, client: client}
}

func (s *VirusTotal) Name() string { return SourceVirusTotal }

// Lookup scores the ratio of malicious to harmless engine verdicts.
func (s *VirusTotal) Lookup(ctx context.Context, ip string) (*SourceResult, error) {
	var resp virusTotalResponse
	err := getJSON(ctx, s.client, "VirusTotal.Lookup", s.baseURL+"/ip_addresses/"+ip, map[string]string{"x-apikey": s.apiKey}, &resp)
	if err != nil {
		return nil, err
	}

	attrs := resp.Data.Attributes
	stats := attrs.LastAnalysisStats
	harmless := math.Max(float64(stats.Harmless), 1)

	return &SourceResult{
		Score: score(100 * float64(stats.Malicious) / harmless),
		Details: map[string]any{
			"malicious":  stats.Malicious,
			"suspicious": stats.Suspicious,
			"harmless":   stats.Harmless,
			"undetected": stats.Undetected,
			"reputation": attrs.Reputation,
			"country":    attrs.Country,
			"as_owner":   attrs.ASOwner,
			"asn":        attrs.ASN,
		},
		Flags: Flags{Malicious: stats.Malicious > 0},
	}, nil
}
