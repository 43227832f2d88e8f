package models

import (
	"time"
)

// Domain is owned by the ingestion side. Scanners only read it and stamp
// LastChecked / IPAddress.
type Domain struct {
	ID          uint64     `gorm:"primary_key;autoIncrement" json:"id"`
	DomainName  string     `gorm:"column:domain_name;type:varchar(255);NOT NULL;uniqueIndex" json:"domainName"`
	IsActive    bool       `gorm:"column:is_active;type:boolean;NOT NULL;DEFAULT:true" json:"isActive"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamp;DEFAULT:current_timestamp" json:"createdAt"`
	LastChecked *time.Time `gorm:"column:last_checked;type:timestamp" json:"lastChecked"`
	IPAddress   *string    `gorm:"column:ip_address;type:inet" json:"ipAddress"`
}

func (Domain) TableName() string {
	return "domains"
}
