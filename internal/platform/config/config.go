package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	PolicyFile     string
	PolicyWatch    bool
	PrivilegedRole string

	IdentityMode  string
	JWTSigningKey string

	Detector    string
	PresidioURL string

	Redis       RedisConfig
	DatabaseURL string
	Kafka       KafkaConfig

	RateLimitTimeout time.Duration
	DetectionTimeout time.Duration
	AuditTimeout     time.Duration
	AuditBuffer      int

	DemoEndpoints bool
}

// RedisConfig configures the rate-limit counter store connection.
// An empty URL selects the in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit mirror topic. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const (
	IdentityModeHeader = "header"
	IdentityModeJWT    = "jwt"

	DetectorPattern  = "pattern"
	DetectorPresidio = "presidio"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:      getEnv("GATEKEEPER_ADDR", ":8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		PolicyFile:     os.Getenv("POLICY_FILE"),
		PolicyWatch:    getBool("POLICY_WATCH", false),
		PrivilegedRole: getEnv("PRIVILEGED_ROLE", "admin"),

		IdentityMode: getEnv("IDENTITY_MODE", IdentityModeHeader),
		// Use a default for development - should be overridden in production
		JWTSigningKey: getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),

		Detector:    getEnv("DETECTOR", DetectorPattern),
		PresidioURL: getEnv("PRESIDIO_URL", "http://localhost:5002"),

		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 20),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("AUDIT_TOPIC", "gatekeeper.audit"),
		},

		RateLimitTimeout: getDuration("RATELIMIT_TIMEOUT", 250*time.Millisecond),
		DetectionTimeout: getDuration("DETECTION_TIMEOUT", 2*time.Second),
		AuditTimeout:     getDuration("AUDIT_TIMEOUT", 2*time.Second),
		AuditBuffer:      getInt("AUDIT_BUFFER", 0),

		DemoEndpoints: getBool("DEMO_ENDPOINTS", true),
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
