package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	FeatureFlags  FeatureFlagsConfig
	MercadoPago   MercadoPagoConfig
	Sendgrid      SendgridConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Webhook       WebhookConfig
	AuthRateLimit AuthRateLimitConfig
	CORS          CORSConfig
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
	Env          string `envconfig:"LOJA_APP_ENV" required:"true"`
	Port         string `envconfig:"LOJA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LOJA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LOJA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LOJA_DB_DSN"`
	Driver string `envconfig:"LOJA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LOJA_DB_HOST"`
	LegacyPort     int    `envconfig:"LOJA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LOJA_DB_USER"`
	LegacyPassword string `envconfig:"LOJA_DB_PASSWORD"`
	LegacyName     string `envconfig:"LOJA_DB_NAME"`
	LegacySSLMode  string `envconfig:"LOJA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LOJA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LOJA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LOJA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LOJA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LOJA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LOJA_REDIS_ADDR"`
	Password     string        `envconfig:"LOJA_REDIS_PASSWORD"`
	DB           int           `envconfig:"LOJA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LOJA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LOJA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LOJA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LOJA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LOJA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LOJA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LOJA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LOJA_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the access token TTL configured in minutes.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LOJA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LOJA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LOJA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LOJA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LOJA_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LOJA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LOJA_AUTO_MIGRATE" default:"false"`
}

type MercadoPagoConfig struct {
	AccessToken   string `envconfig:"LOJA_MERCADOPAGO_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"LOJA_MERCADOPAGO_WEBHOOK_SECRET"`
	BaseURL       string `envconfig:"LOJA_MERCADOPAGO_BASE_URL" default:"https://api.mercadopago.com"`
	NotifyURL     string `envconfig:"LOJA_MERCADOPAGO_NOTIFY_URL"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"LOJA_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"LOJA_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"LOJA_SENDGRID_FROM_NAME" default:"Loja"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LOJA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LOJA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic               string `envconfig:"LOJA_PUBSUB_ORDERS_TOPIC" default:"loja-order-events"`
	OrdersSubscription        string `envconfig:"LOJA_PUBSUB_ORDERS_SUBSCRIPTION"`
	AnalyticsSubscription     string `envconfig:"LOJA_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	PublishTimeoutSeconds     int    `envconfig:"LOJA_PUBSUB_PUBLISH_TIMEOUT_SECONDS" default:"15"`
	ConsumerIdempotencyTTLHrs int    `envconfig:"LOJA_PUBSUB_CONSUMER_IDEMPOTENCY_TTL_HOURS" default:"720"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"LOJA_BIGQUERY_DATASET" default:"loja"`
	OrderEventsTable string `envconfig:"LOJA_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LOJA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LOJA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LOJA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type WebhookConfig struct {
	EventTTL time.Duration `envconfig:"LOJA_WEBHOOK_EVENT_TTL" default:"168h"`
}

type AuthRateLimitConfig struct {
	LoginWindow time.Duration `envconfig:"LOJA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginLimit  int64         `envconfig:"LOJA_AUTH_RATE_LIMIT_LOGIN_LIMIT" default:"10"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"LOJA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
