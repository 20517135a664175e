package config

const EnvPrefix = "OPENBILLING"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultSQLiteDSN = "file:billing.db?cache=shared"
)

const (
	EnvAppEnv   = "OPENBILLING_APP_ENV"
	EnvPort     = "OPENBILLING_APP_PORT"
	EnvLogLevel = "OPENBILLING_LOG_LEVEL"

	EnvDBDSN     = "OPENBILLING_DB_DSN"
	EnvDBDriver  = "OPENBILLING_DB_DRIVER"
	EnvDBHost    = "OPENBILLING_DB_HOST"
	EnvDBUser    = "OPENBILLING_DB_USER"
	EnvDBName    = "OPENBILLING_DB_NAME"
	EnvUseSQLite = "OPENBILLING_USE_SQLITE"

	EnvRedisURL = "OPENBILLING_REDIS_URL"

	EnvGatewayTimeout = "OPENBILLING_GATEWAY_TIMEOUT"

	EnvStripeAPIKey = "OPENBILLING_STRIPE_API_KEY"
	EnvStripeEnv    = "OPENBILLING_STRIPE_ENV"

	EnvPayPalClientID     = "OPENBILLING_PAYPAL_CLIENT_ID"
	EnvPayPalClientSecret = "OPENBILLING_PAYPAL_CLIENT_SECRET"

	EnvSquareAccessToken = "OPENBILLING_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID  = "OPENBILLING_SQUARE_LOCATION_ID"

	EnvReconcileStaleAfter = "OPENBILLING_RECONCILE_STALE_AFTER"
	EnvCronSpec            = "OPENBILLING_CRON_SPEC"

	EnvGCPProjectID       = "OPENBILLING_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "OPENBILLING_PUBSUB_BILLING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
