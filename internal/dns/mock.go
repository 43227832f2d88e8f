package dns

import (
	"context"
	"net"
	"slices"
)

// MockResolver answers from in-memory maps keyed by FQDN (trailing dot).
type MockResolver struct {
	A      map[string][]string
	MX     map[string][]*net.MX
	TXT    map[string][]string
	TLSA   map[string][]TLSA
	DNSKEY map[string][]DNSKEY
	CAA    map[string][]CAA

	// Fail makes "type name" lookups return SERVFAIL, e.g. "txt example.com.".
	Fail []string
	// Timeout makes "type name" lookups time out.
	Timeout []string
}

var _ Resolver = MockResolver{}

func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

func lookup[T any](ctx context.Context, r MockResolver, typ, name string, records map[string][]T) (Result[T], error) {
	if err := ctx.Err(); err != nil {
		return Result[T]{}, err
	}
	fqdn := ensureFQDN(name)
	req := typ + " " + fqdn
	if slices.Contains(r.Fail, req) {
		return Result[T]{}, ErrServFail
	}
	if slices.Contains(r.Timeout, req) {
		return Result[T]{}, ErrTimeout
	}
	found, ok := records[fqdn]
	if !ok || len(found) == 0 {
		return Result[T]{}, ErrNotFound
	}
	return Result[T]{Records: found}, nil
}

func (r MockResolver) LookupA(ctx context.Context, name string) (Result[string], error) {
	return lookup(ctx, r, "a", name, r.A)
}

func (r MockResolver) LookupMX(ctx context.Context, name string) (Result[*net.MX], error) {
	return lookup(ctx, r, "mx", name, r.MX)
}

func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	return lookup(ctx, r, "txt", name, r.TXT)
}

func (r MockResolver) LookupTLSA(ctx context.Context, name string) (Result[TLSA], error) {
	return lookup(ctx, r, "tlsa", name, r.TLSA)
}

func (r MockResolver) LookupDNSKEY(ctx context.Context, name string) (Result[DNSKEY], error) {
	return lookup(ctx, r, "dnskey", name, r.DNSKEY)
}

func (r MockResolver) LookupCAA(ctx context.Context, name string) (Result[CAA], error) {
	return lookup(ctx, r, "caa", name, r.CAA)
}
