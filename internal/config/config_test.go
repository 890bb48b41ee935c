package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OUTBOUND_QUEUE_SIZE", "")
	t.Setenv("RATE_LIMIT_PER_SECOND", "not-a-number")
	t.Setenv("WEBHOOK_ENQUEUE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, 10000, cfg.OutboundQueueSize)
	assert.Equal(t, 20000, cfg.LogQueueSize)
	assert.Equal(t, 10.0, cfg.RateLimitPerSecond)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, 2*time.Second, cfg.WebhookEnqueueTimeout)
	assert.Equal(t, "campaign_sends", cfg.AMQPQueue)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEND_WORKERS", "8")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("PROVIDER_TIMEOUT", "5s")
	t.Setenv("META_API_VERSION", "v19.0")

	cfg := Load()

	assert.Equal(t, 8, cfg.SendWorkers)
	assert.Equal(t, 3, cfg.RateLimitBurst)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, "v19.0", cfg.Meta.APIVersion)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("SOME_FLAG", "true")
	assert.True(t, getEnvBool("SOME_FLAG", false))
	assert.False(t, getEnvBool("MISSING_FLAG_X", false))
}
