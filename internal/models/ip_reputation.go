package models

import "time"

type IPReputation struct {
	ID              uint64    `gorm:"primary_key;autoIncrement" json:"id"`
	DomainID        uint64    `gorm:"column:domain_id;NOT NULL;uniqueIndex:idx_ip_reputation_domain_ip" json:"domainId"`
	IPAddress       string    `gorm:"column:ip_address;type:varchar(45);NOT NULL;uniqueIndex:idx_ip_reputation_domain_ip" json:"ipAddress"`
	ReputationScore float64   `gorm:"column:reputation_score;NOT NULL;DEFAULT:0" json:"reputationScore"`
	IsMalicious     bool      `gorm:"column:is_malicious;NOT NULL;DEFAULT:false" json:"isMalicious"`
	IsSpam          bool      `gorm:"column:is_spam;NOT NULL;DEFAULT:false" json:"isSpam"`
	IsProxy         bool      `gorm:"column:is_proxy;NOT NULL;DEFAULT:false" json:"isProxy"`
	ThreatLevel     string    `gorm:"column:threat_level;type:varchar(16)" json:"threatLevel"`
	Confidence      string    `gorm:"column:confidence;type:varchar(16)" json:"confidence"`
	Sources         JSONMap   `gorm:"column:sources;type:jsonb" json:"sources"`
	LastChecked     time.Time `gorm:"column:last_checked;type:timestamp;NOT NULL" json:"lastChecked"`
}

func (IPReputation) TableName() string {
	return "ip_reputation"
}
