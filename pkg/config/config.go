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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Commerce     CommerceConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	SMTP         SMTPConfig
	Eventing     EventingConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MARKETSIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETSIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETSIDE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETSIDE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKETSIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETSIDE_DB_DSN"`
	Driver string `envconfig:"MARKETSIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETSIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETSIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETSIDE_DB_USER"`
	LegacyPassword string `envconfig:"MARKETSIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETSIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETSIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETSIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETSIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETSIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETSIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETSIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETSIDE_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETSIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETSIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETSIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETSIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETSIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETSIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETSIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETSIDE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETSIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETSIDE_JWT_EXPIRATION_MINUTES" required:"true"`
}

func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MARKETSIDE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MARKETSIDE_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig holds marketplace pricing knobs. CommissionRate is the
// platform's cut of each order, parsed as a decimal fraction.
type CommerceConfig struct {
	CommissionRate  string `envconfig:"MARKETSIDE_COMMISSION_RATE" default:"0.05"`
	DefaultCurrency string `envconfig:"MARKETSIDE_DEFAULT_CURRENCY" default:"NGN"`
}

type GatewayConfig struct {
	AccessToken   string `envconfig:"MARKETSIDE_GATEWAY_ACCESS_TOKEN"`
	Env           string `envconfig:"MARKETSIDE_GATEWAY_ENV" default:"sandbox"`
	WebhookSecret string `envconfig:"MARKETSIDE_GATEWAY_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"MARKETSIDE_GATEWAY_LOCATION_ID"`
}

// Environment returns the normalized gateway environment (sandbox/production).
func (g GatewayConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(g.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MARKETSIDE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MARKETSIDE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MARKETSIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"MARKETSIDE_PUBSUB_ORDERS_TOPIC" default:"mks-order-events"`
	OrdersSubscription       string `envconfig:"MARKETSIDE_PUBSUB_ORDERS_SUBSCRIPTION" default:"mks-order-events-sub"`
	NotificationTopic        string `envconfig:"MARKETSIDE_PUBSUB_NOTIFICATION_TOPIC" default:"mks-notification-events"`
	NotificationSubscription string `envconfig:"MARKETSIDE_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"mks-notification-events-sub"`
}

type SMTPConfig struct {
	Host        string `envconfig:"MARKETSIDE_SMTP_HOST"`
	Port        int    `envconfig:"MARKETSIDE_SMTP_PORT" default:"587"`
	Username    string `envconfig:"MARKETSIDE_SMTP_USERNAME"`
	Password    string `envconfig:"MARKETSIDE_SMTP_PASSWORD"`
	DefaultFrom string `envconfig:"MARKETSIDE_SMTP_FROM_EMAIL"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MARKETSIDE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKETSIDE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKETSIDE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKETSIDE_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
