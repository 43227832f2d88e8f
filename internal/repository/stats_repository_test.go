package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRepository_CountActiveDomains(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "domains" WHERE is_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234))

	count, err := repo.CountActiveDomains(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1234), count)
}

func TestStatsRepository_EmailSecurityCoverage(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`COUNT\(\*\) FILTER \(WHERE has_spf\) AS spf`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "mx", "spf", "dmarc", "dkim", "dane", "mta_sts"}).
			AddRow(200, 180, 150, 90, 60, 4, 2))

	coverage, err := repo.EmailSecurityCoverage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(200), coverage.Total)
	assert.Equal(t, int64(150), coverage.SPF)
	assert.Equal(t, int64(2), coverage.MTASTS)
}

func TestStatsRepository_CertificateCounts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM ssl_certificates`).
		WithArgs(now, now.Add(30*24*time.Hour), now).
		WillReturnRows(sqlmock.NewRows([]string{"total", "expiring_soon", "expired"}).AddRow(10, 3, 1))

	counts, err := repo.CertificateCounts(context.Background(), now, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(10), counts.Total)
	assert.Equal(t, int64(3), counts.ExpiringSoon)
	assert.Equal(t, int64(1), counts.Expired)
}

func TestStatsRepository_CountryDistribution_NoGeoData(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "geoip_locations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	countries, ready, err := repo.CountryDistribution(context.Background(), 20)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Empty(t, countries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_CountryDistribution(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "geoip_locations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(250))
	mock.ExpectQuery(`JOIN geoip_blocks gb ON d\.ip_address <<= gb\.network`).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"country_name", "cnt"}).
			AddRow("United States", 40).
			AddRow("Germany", 12))

	countries, ready, err := repo.CountryDistribution(context.Background(), 20)
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, map[string]int64{"United States": 40, "Germany": 12}, countries)
}

func TestStatsRepository_ValuationTotals_MissingTable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	totals, err := repo.ValuationTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Total)
	assert.Equal(t, 0.0, totals.TotalValue)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsRepository_ValuationTotals(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStatsRepository(db)

	mock.ExpectQuery(`information_schema\.tables`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`COALESCE\(SUM\(estimated_value\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"total", "total_value"}).AddRow(3, 1250.5))

	totals, err := repo.ValuationTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Total)
	assert.Equal(t, 1250.5, totals.TotalValue)
}
