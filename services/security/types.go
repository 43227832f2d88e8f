package security

import (
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/dnsscience/telemetry/internal/models"
)

// DKIMSelectors are queried at <selector>._domainkey.<domain>. The list is
// fixed; changing it changes reported coverage.
var DKIMSelectors = []string{"default", "google", "k1", "selector1", "selector2"}

type MXResult struct {
	Exists bool     `json:"exists"`
	Hosts  []string `json:"hosts,omitempty"`
}

type SPFResult struct {
	Exists bool   `json:"exists"`
	Record string `json:"record,omitempty"`
	Strict bool   `json:"strict"`
}

type DMARCResult struct {
	Exists bool   `json:"exists"`
	Record string `json:"record,omitempty"`
	Policy string `json:"policy,omitempty"`
}

type DKIMResult struct {
	Exists    bool     `json:"exists"`
	Selectors []string `json:"selectors,omitempty"`
}

type DANEResult struct {
	Exists      bool     `json:"exists"`
	RecordCount int      `json:"record_count"`
	Records     []string `json:"records,omitempty"`
}

type MTASTSResult struct {
	Exists bool   `json:"exists"`
	ID     string `json:"id,omitempty"`
	Mode   string `json:"mode,omitempty"`
	MaxAge int    `json:"max_age,omitempty"`
	Policy string `json:"policy,omitempty"`
}

type DNSSECResult struct {
	Enabled  bool `json:"enabled"`
	KeyCount int  `json:"key_count"`
}

type CAAResult struct {
	Exists  bool     `json:"exists"`
	Records []string `json:"records,omitempty"`
}

// EmailSecurity is the outcome of one full check of a domain. Every field is
// derived fresh at CheckedAt.
type EmailSecurity struct {
	Domain    string       `json:"domain"`
	MX        MXResult     `json:"mx"`
	SPF       SPFResult    `json:"spf"`
	DMARC     DMARCResult  `json:"dmarc"`
	DKIM      DKIMResult   `json:"dkim"`
	DANE      DANEResult   `json:"dane"`
	MTASTS    MTASTSResult `json:"mta_sts"`
	DNSSEC    DNSSECResult `json:"dnssec"`
	CAA       CAAResult    `json:"caa"`
	CheckedAt time.Time    `json:"checked_at"`
}

func (e *EmailSecurity) ToRecord(domainID uint64) *models.EmailSecurityRecord {
	return &models.EmailSecurityRecord{
		DomainID:      domainID,
		HasMX:         e.MX.Exists,
		MXRecords:     pq.StringArray(e.MX.Hosts),
		HasSPF:        e.SPF.Exists,
		SPFRecord:     e.SPF.Record,
		SPFStrict:     e.SPF.Strict,
		HasDMARC:      e.DMARC.Exists,
		DMARCRecord:   e.DMARC.Record,
		DMARCPolicy:   e.DMARC.Policy,
		HasDKIM:       e.DKIM.Exists,
		DKIMSelectors: pq.StringArray(e.DKIM.Selectors),
		HasDANE:       e.DANE.Exists,
		TLSARecords:   strings.Join(e.DANE.Records, "\n"),
		TLSACount:     e.DANE.RecordCount,
		HasMTASTS:     e.MTASTS.Exists,
		MTASTSPolicy:  e.MTASTS.Policy,
		MTASTSMode:    e.MTASTS.Mode,
		MTASTSMaxAge:  e.MTASTS.MaxAge,
		HasDNSSEC:     e.DNSSEC.Enabled,
		DNSKEYCount:   e.DNSSEC.KeyCount,
		HasCAA:        e.CAA.Exists,
		CAARecords:    pq.StringArray(e.CAA.Records),
		LastChecked:   e.CheckedAt,
	}
}
