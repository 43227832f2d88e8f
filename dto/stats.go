package dto

// Stats is the dashboard document. Built either from the stats cache or
// straight from the store; Source tells which.
type Stats struct {
	TotalDomains     int64              `json:"total_domains"`
	DomainsToday     int64              `json:"domains_today"`
	DomainsThisWeek  int64              `json:"domains_this_week"`
	DomainsThisMonth int64              `json:"domains_this_month"`
	EmailSecurity    EmailSecurityStats `json:"email_security"`
	SSLCertificates  SSLStats           `json:"ssl_certificates"`
	Valuations       ValuationStats     `json:"valuations"`
	Countries        map[string]int64   `json:"countries"`
	GeoIPReady       bool               `json:"geoip_ready"`
	LastUpdate       string             `json:"last_update"`
	LastUpdateUnix   int64              `json:"last_update_unix"`
	Source           string             `json:"source"`
}

type EmailSecurityStats struct {
	Total     int64   `json:"total"`
	MX        int64   `json:"mx"`
	MXPct     float64 `json:"mx_pct"`
	SPF       int64   `json:"spf"`
	SPFPct    float64 `json:"spf_pct"`
	DMARC     int64   `json:"dmarc"`
	DMARCPct  float64 `json:"dmarc_pct"`
	DKIM      int64   `json:"dkim"`
	DKIMPct   float64 `json:"dkim_pct"`
	DANE      int64   `json:"dane"`
	DANEPct   float64 `json:"dane_pct"`
	MTASTS    int64   `json:"mta_sts"`
	MTASTSPct float64 `json:"mta_sts_pct"`
}

type SSLStats struct {
	Total        int64 `json:"total"`
	ExpiringSoon int64 `json:"expiring_soon"`
	Expired      int64 `json:"expired"`
}

type ValuationStats struct {
	Total      int64   `json:"total"`
	TotalValue float64 `json:"total_value"`
}

// EmailCoverage is the raw row of the email security coverage aggregate.
type EmailCoverage struct {
	Total  int64 `gorm:"column:total"`
	MX     int64 `gorm:"column:mx"`
	SPF    int64 `gorm:"column:spf"`
	DMARC  int64 `gorm:"column:dmarc"`
	DKIM   int64 `gorm:"column:dkim"`
	DANE   int64 `gorm:"column:dane"`
	MTASTS int64 `gorm:"column:mta_sts"`
}

type CountryCount struct {
	CountryName string `gorm:"column:country_name"`
	Count       int64  `gorm:"column:cnt"`
}
