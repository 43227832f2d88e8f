package reputation

import (
	"context"

	"github.com/customeros/mailwatcher/blscan"
	"github.com/pkg/errors"
)

// blscan only ships IPv4 address lists.
const blacklistIPv4 = "ipv4"

// BlacklistScanFunc matches blscan.ScanBlacklists. A nil result means no
// list was consulted.
type BlacklistScanFunc func(lookupValue, listType string) *blscan.BlacklistResults

// Blacklist scores DNSBL listings: 80 per major list, 10 per minor list,
// 20 per spam trap, capped at 100.
type Blacklist struct {
	scan BlacklistScanFunc
}

func NewBlacklist(scan BlacklistScanFunc) *Blacklist {
	if scan == nil {
		scan = blscan.ScanBlacklists
	}
	return &Blacklist{scan: scan}
}

func (s *Blacklist) Name() string { return SourceBlacklist }

func (s *Blacklist) Lookup(ctx context.Context, ip string) (*SourceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	listType := blscan.DomainOrIp(ip)
	if listType != blacklistIPv4 {
		return nil, errors.Wrapf(errNoData, "no %s blacklists", listType)
	}

	res := s.scan(ip, listType)
	if res == nil {
		return nil, errors.Wrap(errNoData, "no blacklists scanned")
	}
	pct := res.MajorLists*80 + res.MinorLists*10 + res.SpamTrapLists*20

	return &SourceResult{
		Score: score(float64(pct)),
		Details: map[string]any{
			"major_lists":     res.MajorLists,
			"minor_lists":     res.MinorLists,
			"spam_trap_lists": res.SpamTrapLists,
		},
		Flags: Flags{
			Malicious: res.MajorLists > 0,
			Spam:      res.MinorLists > 0 || res.SpamTrapLists > 0,
		},
	}, nil
}
