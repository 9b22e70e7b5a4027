package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Laybuy    LaybuyConfig
	Reconcile ReconcileConfig
	AdminAuth AdminAuthConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reconcile.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERRECON_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERRECON_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERRECON_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ORDERRECON_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"ORDERRECON_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERRECON_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ORDERRECON_DB_DSN"`
	Driver string `envconfig:"ORDERRECON_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ORDERRECON_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERRECON_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERRECON_DB_USER"`
	LegacyPassword string `envconfig:"ORDERRECON_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERRECON_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERRECON_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERRECON_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"ORDERRECON_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERRECON_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERRECON_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"ORDERRECON_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERRECON_REDIS_URL"`
	Address      string        `envconfig:"ORDERRECON_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERRECON_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERRECON_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERRECON_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERRECON_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERRECON_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERRECON_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERRECON_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type LaybuyConfig struct {
	MerchantID string        `envconfig:"ORDERRECON_LAYBUY_MERCHANT_ID"`
	APIKey     string        `envconfig:"ORDERRECON_LAYBUY_API_KEY"`
	Env        string        `envconfig:"ORDERRECON_LAYBUY_ENV" default:"sandbox"`
	BaseURL    string        `envconfig:"ORDERRECON_LAYBUY_BASE_URL"`
	Timeout    time.Duration `envconfig:"ORDERRECON_LAYBUY_TIMEOUT" default:"10s"`
}

// Environment returns the normalized provider environment (sandbox/production).
func (l LaybuyConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(l.Env))
	if env == "" {
		return LaybuyEnvSandbox
	}
	return env
}

type ReconcileConfig struct {
	PaymentMethod         string          `envconfig:"ORDERRECON_PAYMENT_METHOD" default:"laybuy_payment"`
	MinOrderTotal         decimal.Decimal `envconfig:"ORDERRECON_MIN_ORDER_TOTAL" default:"0.06"`
	MaxOrderTotal         decimal.Decimal `envconfig:"ORDERRECON_MAX_ORDER_TOTAL" default:"1440"`
	SendInvoiceToCustomer bool            `envconfig:"ORDERRECON_SEND_INVOICE_TO_CUSTOMER" default:"true"`

	FrequentWindow time.Duration `envconfig:"ORDERRECON_FREQUENT_WINDOW" default:"60m"`
	FrequentEvery  time.Duration `envconfig:"ORDERRECON_FREQUENT_EVERY" default:"15m"`
	CatchupWindow  time.Duration `envconfig:"ORDERRECON_CATCHUP_WINDOW" default:"168h"`
	CatchupEvery   time.Duration `envconfig:"ORDERRECON_CATCHUP_EVERY" default:"24h"`
	InvoiceWindow  time.Duration `envconfig:"ORDERRECON_INVOICE_WINDOW" default:"24h"`
	InvoiceEvery   time.Duration `envconfig:"ORDERRECON_INVOICE_EVERY" default:"1h"`
	Tick           time.Duration `envconfig:"ORDERRECON_CRON_TICK" default:"1m"`
}

func (r ReconcileConfig) validate() error {
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return fmt.Errorf("%s is required", EnvPaymentMethod)
	}
	if r.MinOrderTotal.IsNegative() {
		return fmt.Errorf("%s must not be negative", EnvMinOrderTotal)
	}
	if r.MaxOrderTotal.LessThan(r.MinOrderTotal) {
		return fmt.Errorf("%s must be >= %s", EnvMaxOrderTotal, EnvMinOrderTotal)
	}
	if r.FrequentWindow <= 0 || r.CatchupWindow <= 0 || r.InvoiceWindow <= 0 {
		return fmt.Errorf("reconcile windows must be positive")
	}
	return nil
}

type AdminAuthConfig struct {
	Secret   string        `envconfig:"ORDERRECON_ADMIN_JWT_SECRET"`
	Issuer   string        `envconfig:"ORDERRECON_ADMIN_JWT_ISSUER" default:"orderrecon"`
	TokenTTL time.Duration `envconfig:"ORDERRECON_ADMIN_JWT_TTL" default:"1h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ORDERRECON_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ORDERRECON_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ORDERRECON_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"ORDERRECON_PUBSUB_NOTIFICATION_TOPIC" default:"orderrecon-notification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ORDERRECON_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ORDERRECON_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ORDERRECON_OUTBOX_MAX_ATTEMPTS" default:"10"`

	// Customer email events get their own, smaller budget and a freshness window.
	EmailMaxAttempts int           `envconfig:"ORDERRECON_OUTBOX_EMAIL_MAX_ATTEMPTS" default:"5"`
	EmailStaleAfter  time.Duration `envconfig:"ORDERRECON_OUTBOX_EMAIL_STALE_AFTER" default:"48h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
