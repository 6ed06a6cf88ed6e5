package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"esimsync/internal/apperr"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Kafka
	KafkaBrokers     string
	KafkaOrdersTopic string
	KafkaGroupID     string

	// API Configuration
	APIPort string
	APIHost string

	// MobiMatter
	MobimatterBaseURL    string
	MobimatterAPIKey     string
	MobimatterMerchantID string

	// Shopify
	ShopifyStoreDomain        string
	ShopifyAccessToken        string
	ShopifyAPIVersion         string
	ShopifyLocationID         string
	ShopifyMetafieldNamespace string

	// Fulfillment
	Retry               Retry
	SendActivationEmail bool

	// Catalog
	Catalog Catalog

	// Schedulers
	RecoveryInterval    time.Duration
	CatalogSyncInterval time.Duration

	// Environment
	Env      string
	LogLevel string
}

// Retry holds the bounds and delays of the completion state machine.
type Retry struct {
	CompleteAttempts  int
	CompleteDelay     time.Duration
	LookupAttempts    int
	LookupDelay       time.Duration
	ArtifactAttempts  int
	ArtifactDelay     time.Duration
	RecoveryBatchSize int
}

type Catalog struct {
	Vendor             string
	PriceMarkupPercent string
	InventoryQuantity  int
	Prune              bool
	RefreshPrices      bool
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:               getEnv("DATABASE_URL", "sqlite://esimsync.db"),
		KafkaBrokers:              getEnv("KAFKA_BROKERS", ""),
		KafkaOrdersTopic:          getEnv("KAFKA_ORDERS_TOPIC", "orders-paid"),
		KafkaGroupID:              getEnv("KAFKA_GROUP_ID", "esimsync-worker"),
		APIPort:                   getEnv("API_PORT", "8080"),
		APIHost:                   getEnv("API_HOST", "0.0.0.0"),
		MobimatterBaseURL:         getEnv("MOBIMATTER_BASE_URL", "https://api.mobimatter.com/mobimatter/api"),
		MobimatterAPIKey:          getEnv("MOBIMATTER_API_KEY", ""),
		MobimatterMerchantID:      getEnv("MOBIMATTER_MERCHANT_ID", ""),
		ShopifyStoreDomain:        getEnv("SHOPIFY_STORE_DOMAIN", ""),
		ShopifyAccessToken:        getEnv("SHOPIFY_ACCESS_TOKEN", ""),
		ShopifyAPIVersion:         getEnv("SHOPIFY_API_VERSION", ""),
		ShopifyLocationID:         getEnv("SHOPIFY_LOCATION_ID", ""),
		ShopifyMetafieldNamespace: getEnv("SHOPIFY_METAFIELD_NAMESPACE", "esim"),
		Retry: Retry{
			CompleteAttempts:  getEnvAsInt("COMPLETE_ATTEMPTS", 3),
			CompleteDelay:     getEnvAsDuration("COMPLETE_DELAY", 5*time.Second),
			LookupAttempts:    getEnvAsInt("LOOKUP_ATTEMPTS", 5),
			LookupDelay:       getEnvAsDuration("LOOKUP_DELAY", 5*time.Second),
			ArtifactAttempts:  getEnvAsInt("ARTIFACT_ATTEMPTS", 5),
			ArtifactDelay:     getEnvAsDuration("ARTIFACT_DELAY", 5*time.Second),
			RecoveryBatchSize: getEnvAsInt("RECOVERY_BATCH_SIZE", 50),
		},
		SendActivationEmail: getEnvAsBool("SEND_ACTIVATION_EMAIL", true),
		Catalog: Catalog{
			Vendor:             getEnv("CATALOG_VENDOR", "MobiMatter"),
			PriceMarkupPercent: getEnv("CATALOG_PRICE_MARKUP_PERCENT", "0"),
			InventoryQuantity:  getEnvAsInt("CATALOG_INVENTORY_QUANTITY", 999),
			Prune:              getEnvAsBool("CATALOG_PRUNE", false),
			RefreshPrices:      getEnvAsBool("CATALOG_REFRESH_PRICES", false),
		},
		RecoveryInterval:    getEnvAsDuration("RECOVERY_INTERVAL", 10*time.Minute),
		CatalogSyncInterval: getEnvAsDuration("CATALOG_SYNC_INTERVAL", 6*time.Hour),
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every missing credential in a single configuration error.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"MOBIMATTER_API_KEY", c.MobimatterAPIKey},
		{"MOBIMATTER_MERCHANT_ID", c.MobimatterMerchantID},
		{"SHOPIFY_STORE_DOMAIN", c.ShopifyStoreDomain},
		{"SHOPIFY_ACCESS_TOKEN", c.ShopifyAccessToken},
		{"SHOPIFY_API_VERSION", c.ShopifyAPIVersion},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return apperr.E(apperr.KindConfiguration, "config.Validate",
			fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}

	if c.Retry.CompleteAttempts < 1 || c.Retry.LookupAttempts < 1 || c.Retry.ArtifactAttempts < 1 {
		return apperr.E(apperr.KindConfiguration, "config.Validate",
			fmt.Errorf("retry attempts must be at least 1"))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("5s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
