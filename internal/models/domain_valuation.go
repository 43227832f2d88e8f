package models

import "time"

// DomainValuation is optional; deployments without valuations have no table.
type DomainValuation struct {
	ID             uint64    `gorm:"primary_key;autoIncrement" json:"id"`
	DomainID       uint64    `gorm:"column:domain_id;NOT NULL;index" json:"domainId"`
	EstimatedValue float64   `gorm:"column:estimated_value" json:"estimatedValue"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamp;DEFAULT:current_timestamp" json:"createdAt"`
}

func (DomainValuation) TableName() string {
	return "domain_valuations"
}
