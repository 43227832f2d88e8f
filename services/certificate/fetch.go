package certificate

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/models"
	"github.com/dnsscience/telemetry/internal/tracing"
	"github.com/dnsscience/telemetry/internal/utils"
)

// Client reads the leaf certificate a host presents. Verification is off so
// expired and self-signed leaves are still recorded.
type Client struct {
	timeout time.Duration
	dialer  func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewClient(timeout time.Duration) *Client {
	d := &net.Dialer{Timeout: timeout}
	return &Client{timeout: timeout, dialer: d.DialContext}
}

// WithDialer redirects connections, used to point the client at test servers.
func (p *Client) WithDialer(dial func(ctx context.Context, network, addr string) (net.Conn, error)) *Client {
	p.dialer = dial
	return p
}

func (p *Client) Fetch(ctx context.Context, domain string, port int) (*models.SSLCertificate, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CertificateClient.Fetch")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagDomain(span, domain)
	span.LogKV("port", port)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.dialer(ctx, "tcp", net.JoinHostPort(domain, strconv.Itoa(port)))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, er.New(er.KindHTTP, "tls dial", err)
	}
	defer raw.Close()

	conn := tls.Client(raw, &tls.Config{
		ServerName:         domain,
		InsecureSkipVerify: true, //nolint:gosec
	})
	if err := conn.HandshakeContext(ctx); err != nil {
		tracing.TraceErr(span, err)
		return nil, er.New(er.KindHTTP, "tls handshake", err)
	}
	defer conn.Close()

	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		err := errors.New("no peer certificate")
		tracing.TraceErr(span, err)
		return nil, er.New(er.KindHTTP, "tls handshake", err)
	}

	return toModel(domain, port, certs[0]), nil
}

func toModel(domain string, port int, leaf *x509.Certificate) *models.SSLCertificate {
	notBefore := leaf.NotBefore.UTC()
	notAfter := leaf.NotAfter.UTC()
	return &models.SSLCertificate{
		DomainName:  domain,
		Port:        port,
		IssuerCN:    leaf.Issuer.CommonName,
		SubjectCN:   leaf.Subject.CommonName,
		NotBefore:   &notBefore,
		ExpiresAt:   &notAfter,
		LastChecked: utils.Now(),
	}
}
