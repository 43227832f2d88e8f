// Package dns wraps github.com/miekg/dns for the record types the security
// checks need.
package dns

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound covers NXDOMAIN and empty answers.
	ErrNotFound = errors.New("dns: no such record")
	ErrTimeout  = errors.New("dns: timeout")
	ErrServFail = errors.New("dns: server failure")
	ErrRefused  = errors.New("dns: query refused")
)

// IsAbsent reports whether err means "the record is not there" rather than
// "the lookup failed". Timeouts count as absent.
func IsAbsent(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrTimeout)
}

type Result[T any] struct {
	Records []T
}

type TLSA struct {
	Usage        uint8  `json:"usage"`
	Selector     uint8  `json:"selector"`
	MatchingType uint8  `json:"matching_type"`
	Certificate  string `json:"certificate"`
}

type DNSKEY struct {
	Flags     uint16 `json:"flags"`
	Protocol  uint8  `json:"protocol"`
	Algorithm uint8  `json:"algorithm"`
}

type CAA struct {
	Flag  uint8  `json:"flag"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

type Resolver interface {
	LookupA(ctx context.Context, name string) (Result[string], error)
	LookupMX(ctx context.Context, name string) (Result[*net.MX], error)
	LookupTXT(ctx context.Context, name string) (Result[string], error)
	LookupTLSA(ctx context.Context, name string) (Result[TLSA], error)
	LookupDNSKEY(ctx context.Context, name string) (Result[DNSKEY], error)
	LookupCAA(ctx context.Context, name string) (Result[CAA], error)
}
