package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Logger      LoggerConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Nutrition   NutritionConfig
	Eligibility EligibilityConfig
	Ledger      LedgerConfig
	Metrics     MetricsConfig
}

type ServerConfig struct {
	AppEnv   string
	GRPCPort string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
	RunMigrations   bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// NutritionConfig points at the external product database.
type NutritionConfig struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	ScanTimeout   time.Duration // upper bound the orchestrator waits for enrichment
}

type EligibilityConfig struct {
	MilkSizesOz      []float64
	BreadSizesOz     []float64
	CerealCeilingOz  float64
	CerealBrandAllow []string
}

type LedgerConfig struct {
	NegativePolicy string // allow, clamp, reject
	MaxRetries     int
	RetryBackoff   time.Duration
}

type MetricsConfig struct {
	Addr string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			GRPCPort: getEnv("GRPC_PORT", ":8085"),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_benefits"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
			RunMigrations:   getEnvBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", true),
			Brokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_CHECKOUTS", "checkout.events"),
			GroupID: getEnv("KAFKA_GROUP_LEDGER", "benefit-ledger"),
		},
		Nutrition: NutritionConfig{
			BaseURL:       getEnv("NUTRITION_BASE_URL", "https://world.openfoodfacts.org"),
			UserAgent:     getEnv("NUTRITION_USER_AGENT", "omnipos-benefits-service/1.0"),
			Timeout:       getEnvDuration("NUTRITION_TIMEOUT", 4*time.Second),
			RatePerSecond: getEnvFloat("NUTRITION_RATE_PER_SECOND", 10),
			Burst:         getEnvInt("NUTRITION_BURST", 5),
			ScanTimeout:   getEnvDuration("SCAN_EXTERNAL_TIMEOUT", 3*time.Second),
		},
		Eligibility: EligibilityConfig{
			MilkSizesOz:      getEnvFloatSlice("ELIGIBILITY_MILK_SIZES_OZ", []float64{64}),
			BreadSizesOz:     getEnvFloatSlice("ELIGIBILITY_BREAD_SIZES_OZ", []float64{16}),
			CerealCeilingOz:  getEnvFloat("ELIGIBILITY_CEREAL_CEILING_OZ", 72),
			CerealBrandAllow: getEnvSlice("ELIGIBILITY_CEREAL_BRANDS", nil),
		},
		Ledger: LedgerConfig{
			NegativePolicy: getEnv("LEDGER_NEGATIVE_POLICY", "allow"),
			MaxRetries:     getEnvInt("LEDGER_MAX_RETRIES", 3),
			RetryBackoff:   getEnvDuration("LEDGER_RETRY_BACKOFF", 50*time.Millisecond),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9095"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		if value == "" {
			return fallback
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

func getEnvFloatSlice(key string, fallback []float64) []float64 {
	raw := getEnvSlice(key, nil)
	if len(raw) == 0 {
		return fallback
	}
	out := make([]float64, 0, len(raw))
	for _, s := range raw {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		out = append(out, f)
	}
	return out
}
