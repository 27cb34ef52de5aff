package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting read from the environment. Nothing here is
// required at startup: handlers that need a missing value fail when invoked.
type Config struct {
	HTTPAddr    string        `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	AutoMigrate bool          `envconfig:"AUTO_MIGRATE" default:"false"`
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWTTTL      time.Duration `envconfig:"JWT_TTL" default:"1h"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	CSRFTokenTTL  time.Duration `envconfig:"CSRF_TOKEN_TTL" default:"1h"`

	RabbitURL      string `envconfig:"RABBIT_URL"`
	RabbitExchange string `envconfig:"RABBIT_EXCHANGE" default:"zimship.events"`
	RabbitQueue    string `envconfig:"RABBIT_QUEUE" default:"zimship.notify"`

	PaymentProvider string `envconfig:"PAYMENT_PROVIDER" default:"stripe"`
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	OmisePublicKey  string `envconfig:"OMISE_PUBLIC_KEY"`
	OmiseSecretKey  string `envconfig:"OMISE_SECRET_KEY"`
	SiteURL         string `envconfig:"SITE_URL" default:"http://localhost:5173"`

	ResendAPIKey string `envconfig:"RESEND_API_KEY"`
	EmailFrom    string `envconfig:"EMAIL_FROM" default:"Zimbabwe Shipping <noreply@zimbabweshipping.com>"`
	SupportEmail string `envconfig:"SUPPORT_EMAIL" default:"support@zimbabweshipping.com"`

	EncryptionKeyCurrent  string `envconfig:"ENCRYPTION_KEY_CURRENT"`
	EncryptionKeyPrevious string `envconfig:"ENCRYPTION_KEY_PREVIOUS"`
	AppEnv                string `envconfig:"APP_ENV" default:"dev"`

	LogFile    string `envconfig:"LOG_FILE"`
	DebugLevel string `envconfig:"DEBUG_LEVEL" default:"info"`

	OTelEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	var c Config
	err := envconfig.Process("", &c)
	return c, err
}
