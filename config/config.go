package config

import (
	"time"

	"github.com/dnsscience/telemetry/internal/logger"
	"github.com/dnsscience/telemetry/internal/tracing"
)

type AppConfig struct {
	APIPort           string        `env:"SERVICE_PORT" envDefault:"12222"`
	APIKey            string        `env:"API_KEY"`
	RabbitMQURL       string        `env:"RABBITMQ_URL"`
	HTTPClientTimeout time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"10s"`
}

type PostgresConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"5"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"3600"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
}

type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password    string        `env:"REDIS_PASSWORD"`
	DB          int           `env:"REDIS_DB" envDefault:"0"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
}

type DNSConfig struct {
	Nameservers string        `env:"DNS_NAMESERVERS"`
	Timeout     time.Duration `env:"DNS_TIMEOUT" envDefault:"5s"`
}

// ScanConfig drives the daemon loops. Intervals are staleness windows.
type ScanConfig struct {
	BatchSize              int           `env:"SCAN_BATCH_SIZE" envDefault:"50"`
	IdleSleep              time.Duration `env:"SCAN_IDLE_SLEEP" envDefault:"60s"`
	BusySleep              time.Duration `env:"SCAN_BUSY_SLEEP" envDefault:"1s"`
	EmailScanInterval      time.Duration `env:"EMAIL_SCAN_INTERVAL" envDefault:"24h"`
	CertScanInterval       time.Duration `env:"CERT_SCAN_INTERVAL" envDefault:"24h"`
	ReputationScanInterval time.Duration `env:"REPUTATION_SCAN_INTERVAL" envDefault:"168h"`
	CertPort               int           `env:"CERT_SCAN_PORT" envDefault:"443"`
	DANEPort               int           `env:"DANE_PORT" envDefault:"25"`
}

type StatsConfig struct {
	PopulateInterval time.Duration `env:"STATS_POPULATE_INTERVAL" envDefault:"5m"`
}

type ReputationConfig struct {
	AbuseIPDBAPIKey        string        `env:"ABUSEIPDB_API_KEY"`
	VirusTotalAPIKey       string        `env:"VIRUSTOTAL_API_KEY"`
	ShodanAPIKey           string        `env:"SHODAN_API_KEY"`
	IPGeolocationAPIKey    string        `env:"IPGEOLOCATION_API_KEY"`
	IPInfoToken            string        `env:"IPINFO_TOKEN"`
	BlacklistScanEnabled   bool          `env:"BLACKLIST_SCAN_ENABLED" envDefault:"true"`
	ReputationCacheTTL     time.Duration `env:"REPUTATION_CACHE_TTL" envDefault:"1h"`
	GeolocationCacheTTL    time.Duration `env:"GEOLOCATION_CACHE_TTL" envDefault:"24h"`
	DomainSecurityCacheTTL time.Duration `env:"DOMAIN_SECURITY_CACHE_TTL" envDefault:"1h"`
	AbuseIPDBDailyQuota    int64         `env:"ABUSEIPDB_DAILY_QUOTA" envDefault:"1000"`
	VirusTotalDailyQuota   int64         `env:"VIRUSTOTAL_DAILY_QUOTA" envDefault:"500"`
	ShodanPerSecondQuota   int64         `env:"SHODAN_PER_SECOND_QUOTA" envDefault:"1"`
	IPGeoMonthlyQuota      int64         `env:"IPGEOLOCATION_MONTHLY_QUOTA" envDefault:"30000"`
}

type CronConfig struct {
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	LocalDev              bool   `env:"LOCAL_DEV" envDefault:"true"`
	PodName               string `env:"POD_NAME" envDefault:"local"`
	PodNamespace          string `env:"POD_NAMESPACE" envDefault:"default"`
}

type Config struct {
	AppConfig        *AppConfig
	Logger           *logger.Config
	Tracing          *tracing.JaegerConfig
	PostgresConfig   *PostgresConfig
	RedisConfig      *RedisConfig
	DNSConfig        *DNSConfig
	ScanConfig       *ScanConfig
	StatsConfig      *StatsConfig
	ReputationConfig *ReputationConfig
	CronConfig       *CronConfig
}
