package models

import (
	"time"

	"github.com/lib/pq"
)

type EmailSecurityRecord struct {
	ID            uint64         `gorm:"primary_key;autoIncrement" json:"id"`
	DomainID      uint64         `gorm:"column:domain_id;NOT NULL;uniqueIndex:idx_email_security_domain" json:"domainId"`
	HasMX         bool           `gorm:"column:has_mx;NOT NULL;DEFAULT:false" json:"hasMx"`
	MXRecords     pq.StringArray `gorm:"column:mx_records;type:text[]" json:"mxRecords"`
	HasSPF        bool           `gorm:"column:has_spf;NOT NULL;DEFAULT:false" json:"hasSpf"`
	SPFRecord     string         `gorm:"column:spf_record;type:text" json:"spfRecord"`
	SPFStrict     bool           `gorm:"column:spf_strict;NOT NULL;DEFAULT:false" json:"spfStrict"`
	HasDMARC      bool           `gorm:"column:has_dmarc;NOT NULL;DEFAULT:false" json:"hasDmarc"`
	DMARCRecord   string         `gorm:"column:dmarc_record;type:text" json:"dmarcRecord"`
	DMARCPolicy   string         `gorm:"column:dmarc_policy;type:varchar(16)" json:"dmarcPolicy"`
	HasDKIM       bool           `gorm:"column:has_dkim;NOT NULL;DEFAULT:false" json:"hasDkim"`
	DKIMSelectors pq.StringArray `gorm:"column:dkim_selectors;type:text[]" json:"dkimSelectors"`
	HasDANE       bool           `gorm:"column:has_dane;NOT NULL;DEFAULT:false" json:"hasDane"`
	TLSARecords   string         `gorm:"column:tlsa_records;type:text" json:"tlsaRecords"`
	TLSACount     int            `gorm:"column:tlsa_count;NOT NULL;DEFAULT:0" json:"tlsaCount"`
	HasMTASTS     bool           `gorm:"column:has_mta_sts;NOT NULL;DEFAULT:false" json:"hasMtaSts"`
	MTASTSPolicy  string         `gorm:"column:mta_sts_policy;type:text" json:"mtaStsPolicy"`
	MTASTSMode    string         `gorm:"column:mta_sts_mode;type:varchar(16)" json:"mtaStsMode"`
	MTASTSMaxAge  int            `gorm:"column:mta_sts_max_age;NOT NULL;DEFAULT:0" json:"mtaStsMaxAge"`
	HasDNSSEC     bool           `gorm:"column:has_dnssec;NOT NULL;DEFAULT:false" json:"hasDnssec"`
	DNSKEYCount   int            `gorm:"column:dnskey_count;NOT NULL;DEFAULT:0" json:"dnskeyCount"`
	HasCAA        bool           `gorm:"column:has_caa;NOT NULL;DEFAULT:false" json:"hasCaa"`
	CAARecords    pq.StringArray `gorm:"column:caa_records;type:text[]" json:"caaRecords"`
	LastChecked   time.Time      `gorm:"column:last_checked;type:timestamp;NOT NULL" json:"lastChecked"`
}

func (EmailSecurityRecord) TableName() string {
	return "email_security_records"
}
