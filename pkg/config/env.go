package config

const (
	EnvPrefix = "CHECKOUT"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
	defaultSQLiteDSN = "file:checkout.db?cache=shared"

	WalletChargeEndpoint = "endpoint"
	WalletChargeSquare   = "square"

	EnvAppEnv              = "CHECKOUT_APP_ENV"
	EnvPort                = "CHECKOUT_APP_PORT"
	EnvDBDSN               = "CHECKOUT_DB_DSN"
	EnvDBHost              = "CHECKOUT_DB_HOST"
	EnvDBUser              = "CHECKOUT_DB_USER"
	EnvDBName              = "CHECKOUT_DB_NAME"
	EnvRedisURL            = "CHECKOUT_REDIS_URL"
	EnvUseSQLite           = "CHECKOUT_USE_SQLITE"
	EnvCommerceBaseURL     = "CHECKOUT_COMMERCE_BASE_URL"
	EnvSessionTTL          = "CHECKOUT_SESSION_TTL"
	EnvProvidersSession    = "CHECKOUT_PROVIDERS_SESSION_PREFIXES"
	EnvProvidersWallet     = "CHECKOUT_PROVIDERS_WALLET_PREFIXES"
	EnvWalletChargeMode    = "CHECKOUT_WALLET_CHARGE_MODE"
	EnvWalletChargeURL     = "CHECKOUT_WALLET_CHARGE_URL"
	EnvPubSubCheckoutTopic = "CHECKOUT_PUBSUB_CHECKOUT_TOPIC"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
