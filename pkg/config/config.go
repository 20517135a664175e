package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	HTTP           HTTPConfig
	DB             DBConfig
	Redis          RedisConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	Gateway        GatewayConfig
	Stripe         StripeConfig
	PayPal         PayPalConfig
	Square         SquareConfig
	Reconciliation ReconciliationConfig
	Cron           CronConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	Outbox         OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"OPENBILLING_APP_ENV" required:"true"`
	Port            string        `envconfig:"OPENBILLING_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"OPENBILLING_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"OPENBILLING_LOG_WARN_STACK" default:"false"`
	LogFormat       string        `envconfig:"OPENBILLING_LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"OPENBILLING_APP_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// HTTPConfig holds the browser-facing settings of the API server.
type HTTPConfig struct {
	CORSOrigins []string `envconfig:"OPENBILLING_HTTP_CORS_ORIGINS"`
	CORSMaxAge  int      `envconfig:"OPENBILLING_HTTP_CORS_MAX_AGE" default:"300"`
}

type ServiceConfig struct {
	Name string `envconfig:"OPENBILLING_SERVICE_NAME" default:"billing-core"`
	Kind string `envconfig:"OPENBILLING_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"OPENBILLING_DB_DSN"`
	Driver string `envconfig:"OPENBILLING_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"OPENBILLING_DB_HOST"`
	LegacyPort     int    `envconfig:"OPENBILLING_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"OPENBILLING_DB_USER"`
	LegacyPassword string `envconfig:"OPENBILLING_DB_PASSWORD"`
	LegacyName     string `envconfig:"OPENBILLING_DB_NAME"`
	LegacySSLMode  string `envconfig:"OPENBILLING_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"OPENBILLING_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"OPENBILLING_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"OPENBILLING_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OPENBILLING_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"OPENBILLING_DB_SLOW_QUERY" default:"500ms"`
}

// IsSQLite reports whether the configured driver targets sqlite.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"OPENBILLING_REDIS_URL" required:"true"`
	Address      string        `envconfig:"OPENBILLING_REDIS_ADDR"`
	Password     string        `envconfig:"OPENBILLING_REDIS_PASSWORD"`
	DB           int           `envconfig:"OPENBILLING_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OPENBILLING_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OPENBILLING_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OPENBILLING_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OPENBILLING_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"OPENBILLING_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"OPENBILLING_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"OPENBILLING_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	GatewayJournalTTL     time.Duration `envconfig:"OPENBILLING_GATEWAY_JOURNAL_TTL" default:"168h"`
	HTTPIdempotencyTTL    time.Duration `envconfig:"OPENBILLING_HTTP_IDEMPOTENCY_TTL" default:"24h"`
	HTTPIdempotencyHeader string        `envconfig:"OPENBILLING_HTTP_IDEMPOTENCY_HEADER" default:"Idempotency-Key"`
}

// GatewayConfig controls how payment providers are invoked.
type GatewayConfig struct {
	Timeout         time.Duration `envconfig:"OPENBILLING_GATEWAY_TIMEOUT" default:"15s"`
	DefaultCurrency string        `envconfig:"OPENBILLING_GATEWAY_DEFAULT_CURRENCY" default:"USD"`
}

type StripeConfig struct {
	APIKey    string `envconfig:"OPENBILLING_STRIPE_API_KEY"`
	Env       string `envconfig:"OPENBILLING_STRIPE_ENV" default:"test"`
	ProductID string `envconfig:"OPENBILLING_STRIPE_PRODUCT_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether Stripe credentials were supplied.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type PayPalConfig struct {
	ClientID     string `envconfig:"OPENBILLING_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"OPENBILLING_PAYPAL_CLIENT_SECRET"`
	Env          string `envconfig:"OPENBILLING_PAYPAL_ENV" default:"sandbox"`
	PlanID       string `envconfig:"OPENBILLING_PAYPAL_PLAN_ID"`
	ReturnURL    string `envconfig:"OPENBILLING_PAYPAL_RETURN_URL"`
	CancelURL    string `envconfig:"OPENBILLING_PAYPAL_CANCEL_URL"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

func (p PayPalConfig) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.ClientSecret) != ""
}

type SquareConfig struct {
	AccessToken     string `envconfig:"OPENBILLING_SQUARE_ACCESS_TOKEN"`
	Env             string `envconfig:"OPENBILLING_SQUARE_ENV" default:"sandbox"`
	LocationID      string `envconfig:"OPENBILLING_SQUARE_LOCATION_ID"`
	PlanVariationID string `envconfig:"OPENBILLING_SQUARE_PLAN_VARIATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

type ReconciliationConfig struct {
	StaleAfter time.Duration `envconfig:"OPENBILLING_RECONCILE_STALE_AFTER" default:"15m"`
	BatchSize  int           `envconfig:"OPENBILLING_RECONCILE_BATCH_SIZE" default:"100"`
}

type CronConfig struct {
	Spec    string        `envconfig:"OPENBILLING_CRON_SPEC" default:"0 */5 * * * *"`
	LockTTL time.Duration `envconfig:"OPENBILLING_CRON_LOCK_TTL" default:"4m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"OPENBILLING_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"OPENBILLING_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"OPENBILLING_PUBSUB_BILLING_TOPIC" default:"billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"OPENBILLING_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"OPENBILLING_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"OPENBILLING_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
	}
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}
	db.DSN = u.String()
	return nil
}
