package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Commerce     CommerceConfig
	Checkout     CheckoutConfig
	Providers    ProvidersConfig
	Wallet       WalletConfig
	Stripe       StripeConfig
	Square       SquareConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Wallet.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CHECKOUT_APP_ENV" required:"true"`
	Port         string `envconfig:"CHECKOUT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CHECKOUT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CHECKOUT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CHECKOUT_DB_DSN"`
	Driver string `envconfig:"CHECKOUT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CHECKOUT_DB_HOST"`
	Port     int    `envconfig:"CHECKOUT_DB_PORT" default:"5432"`
	User     string `envconfig:"CHECKOUT_DB_USER"`
	Password string `envconfig:"CHECKOUT_DB_PASSWORD"`
	Name     string `envconfig:"CHECKOUT_DB_NAME"`
	SSLMode  string `envconfig:"CHECKOUT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CHECKOUT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"CHECKOUT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CHECKOUT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CHECKOUT_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CHECKOUT_REDIS_URL"`
	Address      string        `envconfig:"CHECKOUT_REDIS_ADDR"`
	Password     string        `envconfig:"CHECKOUT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CHECKOUT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CHECKOUT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CHECKOUT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CHECKOUT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CHECKOUT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CHECKOUT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CHECKOUT_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig points at the commerce backend that owns carts, regions and orders.
type CommerceConfig struct {
	BaseURL        string `envconfig:"CHECKOUT_COMMERCE_BASE_URL" required:"true"`
	PublishableKey string `envconfig:"CHECKOUT_COMMERCE_PUBLISHABLE_KEY"`
	CompletePath   string `envconfig:"CHECKOUT_COMMERCE_COMPLETE_PATH" default:"/store/checkout/complete"`
}

type CheckoutConfig struct {
	SessionTTL    time.Duration `envconfig:"CHECKOUT_SESSION_TTL" default:"72h"`
	SnapshotTTL   time.Duration `envconfig:"CHECKOUT_SNAPSHOT_TTL" default:"24h"`
	SessionCookie string        `envconfig:"CHECKOUT_SESSION_COOKIE" default:"checkout_session"`
	SecureCookie  bool          `envconfig:"CHECKOUT_SESSION_COOKIE_SECURE" default:"true"`

	ShippingLockTTL  time.Duration `envconfig:"CHECKOUT_SHIPPING_LOCK_TTL" default:"30s"`
	ShippingLockWait time.Duration `envconfig:"CHECKOUT_SHIPPING_LOCK_WAIT" default:"10s"`

	// AllowedOrigins lists the storefront origins accepted by CORS.
	AllowedOrigins []string `envconfig:"CHECKOUT_CORS_ALLOWED_ORIGINS" default:"http://localhost:8000"`
}

// ProvidersConfig lists the provider id prefixes used to classify payment providers.
type ProvidersConfig struct {
	SessionPrefixes []string `envconfig:"CHECKOUT_PROVIDERS_SESSION_PREFIXES" default:"pp_stripe_"`
	WalletPrefixes  []string `envconfig:"CHECKOUT_PROVIDERS_WALLET_PREFIXES" default:"pp_mercadopago"`
}

type WalletConfig struct {
	ChargeMode string `envconfig:"CHECKOUT_WALLET_CHARGE_MODE" default:"endpoint"`
	ChargeURL  string `envconfig:"CHECKOUT_WALLET_CHARGE_URL"`
}

// Mode returns the normalized wallet charge mode.
func (w WalletConfig) Mode() string {
	mode := strings.TrimSpace(strings.ToLower(w.ChargeMode))
	if mode == "" {
		return WalletChargeEndpoint
	}
	return mode
}

func (w WalletConfig) validate() error {
	switch w.Mode() {
	case WalletChargeEndpoint:
		if strings.TrimSpace(w.ChargeURL) == "" {
			return fmt.Errorf("%s is required when wallet charge mode is %q", EnvWalletChargeURL, WalletChargeEndpoint)
		}
		return nil
	case WalletChargeSquare:
		return nil
	default:
		return fmt.Errorf("unsupported wallet charge mode %q", w.ChargeMode)
	}
}

type StripeConfig struct {
	APIKey string `envconfig:"CHECKOUT_STRIPE_API_KEY"`
	Env    string `envconfig:"CHECKOUT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// Enabled reports whether a Stripe key was provided.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

type SquareConfig struct {
	AccessToken string `envconfig:"CHECKOUT_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"CHECKOUT_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"CHECKOUT_SQUARE_LOCATION_ID"`
	Currency    string `envconfig:"CHECKOUT_SQUARE_CURRENCY" default:"USD"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"CHECKOUT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	CheckoutTopic string `envconfig:"CHECKOUT_PUBSUB_CHECKOUT_TOPIC"`
}

// Enabled reports whether checkout events should be published.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.CheckoutTopic) != ""
}

// OutboxConfig controls the transactional outbox. When enabled, checkout events
// are written to outbox_events and relayed by cmd/outbox-publisher.
type OutboxConfig struct {
	Enabled        bool `envconfig:"CHECKOUT_OUTBOX_ENABLED" default:"false"`
	BatchSize      int  `envconfig:"CHECKOUT_OUTBOX_BATCH_SIZE" default:"50"`
	PollIntervalMS int  `envconfig:"CHECKOUT_OUTBOX_POLL_INTERVAL_MS" default:"500"`
	MaxAttempts    int  `envconfig:"CHECKOUT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives cmd/cron-worker. Retention values are in days.
type CronConfig struct {
	Interval                time.Duration `envconfig:"CHECKOUT_CRON_INTERVAL" default:"1h"`
	LockTTL                 time.Duration `envconfig:"CHECKOUT_CRON_LOCK_TTL" default:"1h"`
	OutboxRetentionDays     int           `envconfig:"CHECKOUT_CRON_OUTBOX_RETENTION_DAYS" default:"7"`
	CompletionRetentionDays int           `envconfig:"CHECKOUT_CRON_COMPLETION_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
