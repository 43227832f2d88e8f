package dns

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
)

type ResolverConfig struct {
	// Nameservers in host:port form. Empty means /etc/resolv.conf, then
	// public resolvers.
	Nameservers []string
	Timeout     time.Duration
}

type DNSResolver struct {
	config    ResolverConfig
	client    *mdns.Client
	tcpClient *mdns.Client
}

func NewResolver(config ResolverConfig) *DNSResolver {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	if len(config.Nameservers) == 0 {
		config.Nameservers = getSystemNameservers()
	}
	for i, s := range config.Nameservers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			config.Nameservers[i] = net.JoinHostPort(s, "53")
		}
	}

	return &DNSResolver{
		config:    config,
		client:    &mdns.Client{Timeout: config.Timeout},
		tcpClient: &mdns.Client{Net: "tcp", Timeout: config.Timeout},
	}
}

func getSystemNameservers() []string {
	config, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(config.Servers) == 0 {
		return []string{"8.8.8.8:53", "1.1.1.1:53"}
	}

	servers := make([]string, 0, len(config.Servers))
	for _, s := range config.Servers {
		servers = append(servers, net.JoinHostPort(s, config.Port))
	}
	return servers
}

func ensureAbsolute(name string) string {
	if !strings.HasSuffix(name, ".") {
		return name + "."
	}
	return name
}

// query tries each nameserver once. NXDOMAIN is authoritative and returned
// straight away; SERVFAIL, REFUSED and transport errors move on to the next
// server.
func (r *DNSResolver) query(ctx context.Context, name string, qtype uint16) (*mdns.Msg, error) {
	m := new(mdns.Msg)
	m.SetQuestion(ensureAbsolute(name), qtype)
	m.RecursionDesired = true
	m.SetEdns0(4096, qtype == mdns.TypeDNSKEY)

	op := mdns.TypeToString[qtype]
	var lastErr error

	for _, server := range r.config.Nameservers {
		if err := ctx.Err(); err != nil {
			return nil, er.New(er.KindDNS, op, ErrTimeout)
		}

		resp, err := r.exchange(ctx, m, server)
		if err != nil {
			if isTimeout(err) {
				lastErr = ErrTimeout
			} else {
				lastErr = fmt.Errorf("dns query failed: %w", err)
			}
			continue
		}

		switch resp.Rcode {
		case mdns.RcodeSuccess:
			return resp, nil
		case mdns.RcodeNameError:
			return nil, er.New(er.KindDNS, op, ErrNotFound)
		case mdns.RcodeServerFailure:
			lastErr = ErrServFail
		case mdns.RcodeRefused:
			lastErr = ErrRefused
		default:
			lastErr = fmt.Errorf("dns: unexpected rcode %s", mdns.RcodeToString[resp.Rcode])
		}
	}

	if lastErr == nil {
		lastErr = ErrServFail
	}
	return nil, er.New(er.KindDNS, op, lastErr)
}

// exchange sends one query over UDP and repeats it over TCP when the
// answer comes back truncated.
func (r *DNSResolver) exchange(ctx context.Context, m *mdns.Msg, server string) (*mdns.Msg, error) {
	ctxQuery, cancel := context.WithTimeout(ctx, r.config.Timeout)
	resp, _, err := r.client.ExchangeContext(ctxQuery, m, server)
	cancel()
	if err != nil || !resp.Truncated {
		return resp, err
	}

	ctxQuery, cancel = context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	resp, _, err = r.tcpClient.ExchangeContext(ctxQuery, m, server)
	return resp, err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// collect runs a query and keeps answers of the wanted RR type. CNAMEs in
// the answer section are skipped.
func collect[T any](ctx context.Context, r *DNSResolver, name string, qtype uint16, convert func(mdns.RR) (T, bool)) (Result[T], error) {
	resp, err := r.query(ctx, name, qtype)
	if err != nil {
		return Result[T]{}, err
	}

	var records []T
	for _, rr := range resp.Answer {
		if v, ok := convert(rr); ok {
			records = append(records, v)
		}
	}
	if len(records) == 0 {
		return Result[T]{}, er.New(er.KindDNS, mdns.TypeToString[qtype], ErrNotFound)
	}
	return Result[T]{Records: records}, nil
}

func (r *DNSResolver) LookupA(ctx context.Context, name string) (Result[string], error) {
	return collect(ctx, r, name, mdns.TypeA, func(rr mdns.RR) (string, bool) {
		if a, ok := rr.(*mdns.A); ok {
			return a.A.String(), true
		}
		return "", false
	})
}

func (r *DNSResolver) LookupMX(ctx context.Context, name string) (Result[*net.MX], error) {
	return collect(ctx, r, name, mdns.TypeMX, func(rr mdns.RR) (*net.MX, bool) {
		if mx, ok := rr.(*mdns.MX); ok {
			return &net.MX{Host: mx.Mx, Pref: mx.Preference}, true
		}
		return nil, false
	})
}

// LookupTXT joins multi-string TXT records (RFC 7208 section 3.3).
func (r *DNSResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	return collect(ctx, r, name, mdns.TypeTXT, func(rr mdns.RR) (string, bool) {
		if txt, ok := rr.(*mdns.TXT); ok {
			return strings.Join(txt.Txt, ""), true
		}
		return "", false
	})
}

func (r *DNSResolver) LookupTLSA(ctx context.Context, name string) (Result[TLSA], error) {
	return collect(ctx, r, name, mdns.TypeTLSA, func(rr mdns.RR) (TLSA, bool) {
		if t, ok := rr.(*mdns.TLSA); ok {
			return TLSA{Usage: t.Usage, Selector: t.Selector, MatchingType: t.MatchingType, Certificate: t.Certificate}, true
		}
		return TLSA{}, false
	})
}

func (r *DNSResolver) LookupDNSKEY(ctx context.Context, name string) (Result[DNSKEY], error) {
	return collect(ctx, r, name, mdns.TypeDNSKEY, func(rr mdns.RR) (DNSKEY, bool) {
		if k, ok := rr.(*mdns.DNSKEY); ok {
			return DNSKEY{Flags: k.Flags, Protocol: k.Protocol, Algorithm: k.Algorithm}, true
		}
		return DNSKEY{}, false
	})
}

func (r *DNSResolver) LookupCAA(ctx context.Context, name string) (Result[CAA], error) {
	return collect(ctx, r, name, mdns.TypeCAA, func(rr mdns.RR) (CAA, bool) {
		if c, ok := rr.(*mdns.CAA); ok {
			return CAA{Flag: c.Flag, Tag: c.Tag, Value: c.Value}, true
		}
		return CAA{}, false
	})
}

func (r *DNSResolver) Config() ResolverConfig {
	return r.config
}
