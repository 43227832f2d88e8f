package utils

import (
	"net"
	"strings"

	"golang.org/x/net/idna"

	er "github.com/dnsscience/telemetry/internal/errors"
)

// NormalizeDomain lowercases, strips a trailing dot and converts IDNs to
// their ASCII form. It rejects anything that is not a plausible hostname.
func NormalizeDomain(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " /:@") {
		return "", er.ErrInvalidDomain
	}
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", er.ErrInvalidDomain
	}
	return ascii, nil
}

// ParseIP returns the canonical textual form of an IPv4 or IPv6 address.
func ParseIP(ip string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", er.ErrInvalidIP
	}
	return parsed.String(), nil
}
