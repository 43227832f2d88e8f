package reputation

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

const shodanBaseURL = "https://api.shodan.io"

type shodanResponse struct {
	Ports     []int    `json:"ports"`
	Vulns     []string `json:"vulns"`
	Tags      []string `json:"tags"`
	Org       string   `json:"org"`
	OS        string   `json:"os"`
	Hostnames []string `json:"hostnames"`
}

// Shodan contributes exposure details only; it carries no score.
type Shodan struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewShodan(apiKey string, client *http.Client) *Shodan {
	return &Shodan{apiKey: apiKey, baseURL: shodanBaseURL, client: client}
}

func (s *Shodan) Name() string { return SourceShodan }

func (s *Shodan) Lookup(ctx context.Context, ip string) (*SourceResult, error) {
	var resp shodanResponse
	err := getJSON(ctx, s.client, "Shodan.Lookup", s.baseURL+"/shodan/host/"+ip+"?key="+url.QueryEscape(s.apiKey), nil, &resp)
	if errors.Is(err, errNoData) {
		return &SourceResult{Details: map[string]any{"found": false}}, nil
	}
	if err != nil {
		return nil, err
	}

	proxy := false
	for _, tag := range resp.Tags {
		if tag == "proxy" || tag == "vpn" || tag == "tor" {
			proxy = true
		}
	}

	return &SourceResult{
		Details: map[string]any{
			"found":     true,
			"ports":     resp.Ports,
			"vulns":     resp.Vulns,
			"tags":      resp.Tags,
			"org":       resp.Org,
			"os":        resp.OS,
			"hostnames": resp.Hostnames,
		},
		Flags: Flags{Proxy: proxy},
	}, nil
}
