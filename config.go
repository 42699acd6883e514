package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"storefront-service/catalog"
	"storefront-service/database"
	"storefront-service/models"
	aws_pkg "storefront-service/pkg/aws"

	"github.com/joho/godotenv"
)

const (
	secretCarrierKey    = "storefront/SHIPENGINE_API_KEY"
	secretDBCredentials = "storefront/DB_CREDENTIALS"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Port   string
	AppEnv string

	// Carrier. The API key is only ever handed to the proxy.
	ShipEngineAPIKey string
	CarrierBaseURL   string
	CarrierPublicURL string
	CarrierProxyURL  string
	CarrierTimeout   time.Duration
	DefaultCarrierID string
	// ProxyTimeout bounds the proxy's upstream call. It defaults to a little
	// more than CarrierTimeout so the carrier client gives up first.
	ProxyTimeout time.Duration

	// Default sender
	ShipFromName        string
	ShipFromPhone       string
	ShipFromCompany     string
	ShipFromAddress1    string
	ShipFromCity        string
	ShipFromState       string
	ShipFromPostalCode  string
	ShipFromCountry     string
	ShipFromResidential string

	SanityProjectID     string
	SanityDataset       string
	SanityAPIVersion    string
	SanityToken         string
	SanityWebhookSecret string

	RedisURL        string
	ProductCacheTTL time.Duration

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	LabelSNSTopicARN string

	AllowedOrigins string
	// TrustedProxies may set X-Forwarded-For. Empty trusts no one.
	TrustedProxies  []string
	RateLimitRPS    float64
	RateLimitBurst  int
	WorkflowIdleTTL time.Duration

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// LoadConfig reads configuration from the environment (and .env when
// present), with an optional Secrets Manager override.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	port := getEnv("PORT", "8091")
	cfg := &Config{
		Port:   port,
		AppEnv: getEnv("APP_ENV", "development"),

		ShipEngineAPIKey: os.Getenv("SHIPENGINE_API_KEY"),
		CarrierBaseURL:   getEnv("CARRIER_BASE_URL", "https://api.shipengine.com/v1"),
		CarrierPublicURL: getEnv("CARRIER_PUBLIC_URL", "https://api.shipengine.com"),
		CarrierProxyURL:  getEnv("CARRIER_PROXY_URL", "http://localhost:"+port+"/api/shipengine"),
		DefaultCarrierID: getEnv("DEFAULT_CARRIER_ID", "se-1576791"),

		ShipFromName:        getEnv("SHIP_FROM_NAME", "ShipEngine Team"),
		ShipFromPhone:       getEnv("SHIP_FROM_PHONE", "222-333-4444"),
		ShipFromCompany:     getEnv("SHIP_FROM_COMPANY", "ShipEngine"),
		ShipFromAddress1:    getEnv("SHIP_FROM_ADDRESS_LINE1", "4301 Bull Creek Road"),
		ShipFromCity:        getEnv("SHIP_FROM_CITY", "Austin"),
		ShipFromState:       getEnv("SHIP_FROM_STATE", "TX"),
		ShipFromPostalCode:  getEnv("SHIP_FROM_POSTAL_CODE", "78731"),
		ShipFromCountry:     getEnv("SHIP_FROM_COUNTRY", "US"),
		ShipFromResidential: getEnv("SHIP_FROM_RESIDENTIAL", "no"),

		SanityProjectID:     os.Getenv("SANITY_PROJECT_ID"),
		SanityDataset:       getEnv("SANITY_DATASET", "production"),
		SanityAPIVersion:    getEnv("SANITY_API_VERSION", catalog.DefaultAPIVersion),
		SanityToken:         os.Getenv("SANITY_TOKEN"),
		SanityWebhookSecret: os.Getenv("SANITY_WEBHOOK_SECRET"),

		RedisURL: os.Getenv("REDIS_URL"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		LabelSNSTopicARN: os.Getenv("LABEL_SNS_TOPIC_ARN"),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),
		TrustedProxies: getList("TRUSTED_PROXIES"),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Storefront"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/storefront/storefront-service"),
	}

	var err error
	if cfg.CarrierTimeout, err = getDuration("CARRIER_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProxyTimeout, err = getDuration("PROXY_TIMEOUT", cfg.CarrierTimeout+5*time.Second); err != nil {
		return nil, err
	}
	if cfg.ProductCacheTTL, err = getDuration("PRODUCT_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WorkflowIdleTTL, err = getDuration("WORKFLOW_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 10); err != nil {
		return nil, err
	}

	// Override credentials from Secrets Manager when running on AWS
	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx := context.Background()
		if awsCfg, err := aws_pkg.LoadAWSConfig(ctx); err == nil {
			cfg.applySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg))
		} else {
			log.Printf("AWS config unavailable, skipping Secrets Manager override: %v", err)
		}
	}

	return cfg, nil
}

// applySecrets overrides the carrier key and database credentials with the
// values stored in Secrets Manager. Missing secrets leave the env values.
func (c *Config) applySecrets(ctx context.Context, sg aws_pkg.SecretGetter) {
	if v, err := sg.GetSecret(ctx, secretCarrierKey); err == nil && v != "" {
		c.ShipEngineAPIKey = v
	}

	m, err := aws_pkg.GetSecretMap(ctx, sg, secretDBCredentials)
	if err != nil {
		return
	}
	for key, dst := range map[string]*string{
		"POSTGRES_USER":     &c.PostgresUser,
		"POSTGRES_PASSWORD": &c.PostgresPassword,
		"POSTGRES_DB":       &c.PostgresDB,
		"POSTGRES_HOST":     &c.PostgresHost,
		"POSTGRES_PORT":     &c.PostgresPort,
	} {
		if v, ok := m[key]; ok && v != "" {
			*dst = v
		}
	}
}

// DefaultSender builds the ship-from address used when the form leaves it out.
func (c *Config) DefaultSender() models.Address {
	return models.Address{
		Name:                        c.ShipFromName,
		Phone:                       c.ShipFromPhone,
		CompanyName:                 c.ShipFromCompany,
		AddressLine1:                c.ShipFromAddress1,
		CityLocality:                c.ShipFromCity,
		StateProvince:               c.ShipFromState,
		PostalCode:                  c.ShipFromPostalCode,
		CountryCode:                 c.ShipFromCountry,
		AddressResidentialIndicator: c.ShipFromResidential,
	}
}

// Postgres returns the label store connection settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		DBName:   c.PostgresDB,
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		SSLMode:  c.PostgresSSLMode,
		TimeZone: c.PostgresTimeZone,
	}
}

// Sanity returns the content store settings.
func (c *Config) Sanity() catalog.SanityConfig {
	return catalog.SanityConfig{
		ProjectID:  c.SanityProjectID,
		Dataset:    c.SanityDataset,
		APIVersion: c.SanityAPIVersion,
		Token:      c.SanityToken,
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
