package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"GATEKEEPER_ADDR", "REDIS_URL", "KAFKA_BROKERS", "AUDIT_BUFFER", "RATELIMIT_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "admin", cfg.PrivilegedRole)
	assert.Equal(t, IdentityModeHeader, cfg.IdentityMode)
	assert.Equal(t, DetectorPattern, cfg.Detector)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimitTimeout)
	assert.Equal(t, 0, cfg.AuditBuffer)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GATEKEEPER_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
	t.Setenv("RATELIMIT_TIMEOUT", "100ms")
	t.Setenv("POLICY_WATCH", "true")
	t.Setenv("AUDIT_BUFFER", "256")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 100*time.Millisecond, cfg.RateLimitTimeout)
	assert.True(t, cfg.PolicyWatch)
	assert.Equal(t, 256, cfg.AuditBuffer)
}

func TestFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RATELIMIT_TIMEOUT", "soon")
	t.Setenv("AUDIT_BUFFER", "lots")

	cfg := FromEnv()

	assert.Equal(t, 250*time.Millisecond, cfg.RateLimitTimeout)
	assert.Equal(t, 0, cfg.AuditBuffer)
}
