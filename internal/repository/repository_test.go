package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	er "github.com/dnsscience/telemetry/internal/errors"
	"github.com/dnsscience/telemetry/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func domainRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "domain_name", "is_active", "created_at", "last_checked", "ip_address"}).
		AddRow(1, "example.com", true, time.Now(), nil, nil).
		AddRow(2, "example.org", true, time.Now(), nil, nil)
}

func TestDomainRepository_GetStaleForEmailSecurity(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDomainRepository(db)

	mock.ExpectQuery(`SELECT domains\.\* FROM "domains" LEFT JOIN email_security_records r ON r\.domain_id = domains\.id ` +
		`WHERE domains\.is_active = .+ AND \(r\.last_checked IS NULL OR r\.last_checked < .+\) ` +
		`AND domains\.id NOT IN \(.+\) ORDER BY r\.last_checked ASC NULLS FIRST LIMIT`).
		WillReturnRows(domainRows())

	domains, err := repo.GetStaleForEmailSecurity(context.Background(), time.Now().Add(-24*time.Hour), 50, []uint64{7, 9})
	require.NoError(t, err)
	require.Len(t, domains, 2)
	assert.Equal(t, "example.com", domains[0].DomainName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainRepository_GetStaleForReputation_GroupsPerDomain(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDomainRepository(db)

	mock.ExpectQuery(`LEFT JOIN ip_reputation r ON r\.domain_id = domains\.id WHERE domains\.is_active = .+ ` +
		`GROUP BY "domains"\."id" HAVING MAX\(r\.last_checked\) IS NULL OR MAX\(r\.last_checked\) < .+ ORDER BY`).
		WillReturnRows(domainRows())

	domains, err := repo.GetStaleForReputation(context.Background(), time.Now().Add(-7*24*time.Hour), 50, nil)
	require.NoError(t, err)
	assert.Len(t, domains, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainRepository_GetStaleForCertificates_JoinsOnNameAndPort(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDomainRepository(db)

	mock.ExpectQuery(`LEFT JOIN ssl_certificates c ON c\.domain_name = domains\.domain_name AND c\.port = .+ WHERE`).
		WillReturnRows(domainRows())

	domains, err := repo.GetStaleForCertificates(context.Background(), time.Now(), 443, 50, nil)
	require.NoError(t, err)
	assert.Len(t, domains, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDomainRepository_StoreErrorIsTyped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDomainRepository(db)

	mock.ExpectQuery(`SELECT domains`).WillReturnError(errors.New("connection reset"))

	_, err := repo.GetStaleForEmailSecurity(context.Background(), time.Now(), 50, nil)
	require.Error(t, err)
	assert.True(t, er.Is(err, er.KindStore))
}

func TestDomainRepository_GetByName_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDomainRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "domains" WHERE domain_name = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByName(context.Background(), "missing.com")
	assert.ErrorIs(t, err, er.ErrNotFound)
}

func TestEmailSecurityRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailSecurityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "email_security_records" .* ON CONFLICT \("domain_id"\) DO UPDATE SET .*"last_checked"="excluded"\."last_checked".* RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectExec(`UPDATE "domains" SET "last_checked"=\$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.EmailSecurityRecord{DomainID: 1, HasSPF: true, SPFStrict: true, LastChecked: time.Now()}
	require.NoError(t, repo.Upsert(context.Background(), record))
	assert.Equal(t, uint64(11), record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailSecurityRepository_Upsert_RollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewEmailSecurityRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "email_security_records"`).WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.Upsert(context.Background(), &models.EmailSecurityRecord{DomainID: 1, LastChecked: time.Now()})
	require.Error(t, err)
	assert.True(t, er.Is(err, er.KindStore))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCertificateRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "ssl_certificates" .* ON CONFLICT \("domain_name","port"\) DO UPDATE SET .*"expires_at"="excluded"\."expires_at"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	expires := time.Now().Add(90 * 24 * time.Hour)
	err := repo.Upsert(context.Background(), &models.SSLCertificate{
		DomainName: "example.com", Port: 443, IssuerCN: "R11", ExpiresAt: &expires, LastChecked: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReputationRepository_UpsertForDomain(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReputationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "ip_reputation" .* ON CONFLICT \("domain_id","ip_address"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "ip_reputation"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectExec(`UPDATE "domains" SET "ip_address"=\$1 WHERE id = \$2`).
		WithArgs("93.184.216.34", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []models.IPReputation{
		{IPAddress: "93.184.216.34", ReputationScore: 0, ThreatLevel: "low", LastChecked: time.Now()},
		{IPAddress: "93.184.216.35", ReputationScore: 40, ThreatLevel: "high", LastChecked: time.Now()},
	}
	require.NoError(t, repo.UpsertForDomain(context.Background(), 5, records))
	assert.Equal(t, uint64(5), records[1].DomainID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReputationRepository_UpsertForDomain_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewReputationRepository(db)

	assert.ErrorIs(t, repo.UpsertForDomain(context.Background(), 5, nil), ErrInvalidInput)
}
