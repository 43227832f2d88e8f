package reputation

import "context"

const (
	SourceAbuseIPDB  = "abuseipdb"
	SourceVirusTotal = "virustotal"
	SourceShodan     = "shodan"
	SourceBlacklist  = "blacklist"
)

type Flags struct {
	Malicious bool
	Spam      bool
	Proxy     bool
}

// SourceResult is one provider's view of an address. Score is nil for
// providers that only contribute details.
type SourceResult struct {
	Score   *float64       `json:"score,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Error   string         `json:"error,omitempty"`
	Flags   Flags          `json:"-"`
}

type Source interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*SourceResult, error)
}

func score(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return &v
}
