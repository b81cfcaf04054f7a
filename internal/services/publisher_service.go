package services

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/betlink/governance-api/internal/models"
	"github.com/betlink/governance-api/pkg/logger"
)

// StatusChannel is the Redis channel the notification layer subscribes to.
const StatusChannel = "governance.module_status"

// StatusPublisher delivers module status events to the real-time layer.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event *models.ModuleStatusEvent) error
}

// RedisPublisher publishes status events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a Redis-backed status publisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) PublishStatus(ctx context.Context, event *models.ModuleStatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, StatusChannel, payload).Err()
}

// LogPublisher is the fallback when Redis is not configured; events are only
// written to the application log.
type LogPublisher struct{}

// NewLogPublisher creates a log-only status publisher
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) PublishStatus(ctx context.Context, event *models.ModuleStatusEvent) error {
	logger.Debug("Module status event",
		"module", event.ModuleName,
		"status", event.Status,
		"changed_by", event.LastChangedBy)
	return nil
}
