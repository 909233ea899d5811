package bootstrap

import (
	"testing"
	"time"

	"github.com/cuongbtq/creator-sync/internal/config"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestSchedules(t *testing.T) {
	defs := Schedules([]config.ScheduleConfig{
		{Name: "daily-midnight", Cron: "0 0 * * *", MinFollowers: int64Ptr(10000), Limit: 100},
		{Name: "daily-noon-instagram", Cron: "0 12 * * *", WorkPlatformID: "instagram", MinFollowers: int64Ptr(50000), Limit: 100},
		{Name: "platform-only", Cron: "0 6 * * *", WorkPlatformID: "youtube"},
	})

	require.Len(t, defs, 3)

	midnight := defs[0]
	assert.Equal(t, "daily-midnight", midnight.Name)
	assert.Equal(t, "0 0 * * *", midnight.CronExpr)
	assert.Equal(t, domain.PriorityLow, midnight.Priority)
	assert.True(t, midnight.Active)
	require.NotNil(t, midnight.Filter.FollowerCount)
	assert.Equal(t, int64(10000), *midnight.Filter.FollowerCount.Min)
	assert.Nil(t, midnight.Filter.FollowerCount.Max)
	assert.Equal(t, 100, midnight.Filter.Limit)
	require.NoError(t, midnight.Filter.Validate())

	assert.Equal(t, "instagram", defs[1].Filter.WorkPlatformID)
	assert.Nil(t, defs[2].Filter.FollowerCount)
}

func TestRabbitMQConfig(t *testing.T) {
	cfg := &config.RabbitMQConfig{
		Host:       "rabbit",
		Port:       5672,
		Exchange:   config.ExchangeConfig{Name: "sync_jobs_exchange", Type: "direct", Durable: true},
		Queue:      config.QueueConfig{Name: "sync_jobs_queue", Durable: true},
		DelayQueue: "sync_jobs_delay",
		RoutingKey: "sync.job",
		Consumer:   config.ConsumerConfig{PrefetchCount: 4},
		Publish:    config.PublishConfig{RetryAttempts: 3, RetryInterval: time.Second, BackoffMultiplier: 2},
	}

	out := RabbitMQConfig(cfg)

	assert.Equal(t, domain.MaxPriority, out.MaxPriority)
	assert.Equal(t, "sync_jobs_delay", out.DelayQueueName)
	assert.Equal(t, 4, out.PrefetchCount)
	assert.Equal(t, 3, out.PublishRetries)
	assert.Equal(t, 2.0, out.PublishBackoffMult)

	cfg.MaxPriority = 5
	assert.Equal(t, uint8(5), RabbitMQConfig(cfg).MaxPriority)
}

func TestProviderAndSyncConfig(t *testing.T) {
	cfg := &config.Config{
		Provider: config.ProviderConfig{
			BaseURL:   "https://api.staging.insightiq.ai/v1",
			APIKey:    "key",
			RateLimit: 5,
			Breaker:   config.BreakerConfig{FailureRatio: 0.5, MinRequests: 10},
		},
		Sync: config.SyncConfig{
			WebhookURL:       "https://sync.example.com/api/webhooks/insightiq",
			StatusCheckDelay: 30 * time.Second,
			MaxExportPolls:   120,
		},
	}

	p := ProviderConfig(cfg)
	assert.Equal(t, "https://sync.example.com/api/webhooks/insightiq", p.WebhookURL)
	assert.Equal(t, 0.5, p.BreakerFailureRatio)
	assert.Equal(t, uint32(10), p.BreakerMinRequests)

	s := SyncConfig(&cfg.Sync)
	assert.Equal(t, 30*time.Second, s.StatusCheckDelay)
	assert.Equal(t, 120, s.MaxExportPolls)
}
