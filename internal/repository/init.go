package repository

import (
	"strconv"

	"gorm.io/gorm"

	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/models"
)

type Repositories struct {
	DomainRepository        interfaces.DomainRepository
	EmailSecurityRepository interfaces.EmailSecurityRepository
	CertificateRepository   interfaces.CertificateRepository
	ReputationRepository    interfaces.ReputationRepository
	StatsRepository         interfaces.StatsRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DomainRepository:        NewDomainRepository(db),
		EmailSecurityRepository: NewEmailSecurityRepository(db),
		CertificateRepository:   NewCertificateRepository(db),
		ReputationRepository:    NewReputationRepository(db),
		StatsRepository:         NewStatsRepository(db),
	}
}

// MigrateDB creates the tables the scanners own. With includeCollaborators
// it also creates the domain and GeoIP/valuation tables, which is only
// useful for local setups.
func MigrateDB(db *gorm.DB, includeCollaborators bool) error {
	if includeCollaborators {
		err := db.AutoMigrate(
			&models.Domain{},
			&models.GeoIPBlock{},
			&models.GeoIPLocation{},
			&models.DomainValuation{},
		)
		if err != nil {
			return err
		}
	}

	return db.AutoMigrate(
		&models.EmailSecurityRecord{},
		&models.SSLCertificate{},
		&models.IPReputation{},
	)
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
