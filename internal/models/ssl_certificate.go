package models

import "time"

type SSLCertificate struct {
	ID          uint64     `gorm:"primary_key;autoIncrement" json:"id"`
	DomainName  string     `gorm:"column:domain_name;type:varchar(255);NOT NULL;uniqueIndex:idx_ssl_domain_port" json:"domainName"`
	Port        int        `gorm:"column:port;NOT NULL;DEFAULT:443;uniqueIndex:idx_ssl_domain_port" json:"port"`
	IssuerCN    string     `gorm:"column:issuer_cn;type:varchar(255)" json:"issuerCn"`
	SubjectCN   string     `gorm:"column:subject_cn;type:varchar(255)" json:"subjectCn"`
	NotBefore   *time.Time `gorm:"column:not_before;type:timestamp" json:"notBefore"`
	ExpiresAt   *time.Time `gorm:"column:expires_at;type:timestamp" json:"expiresAt"`
	LastChecked time.Time  `gorm:"column:last_checked;type:timestamp;NOT NULL" json:"lastChecked"`
}

func (SSLCertificate) TableName() string {
	return "ssl_certificates"
}
