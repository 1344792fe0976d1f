package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/safetrack/ehs-training-backend/internal/logger"
)

// CourseCompleted is emitted exactly when a learner's course progress
// transitions to COMPLETED. Certificate issuance itself is idempotent, so a
// replayed event cannot double-issue.
type CourseCompleted struct {
	UserID      uuid.UUID `json:"user_id"`
	CourseID    uuid.UUID `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type Publisher interface {
	PublishCourseCompleted(ctx context.Context, evt CourseCompleted) error
}

type redisPublisher struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisPublisher(log *logger.Logger, addr, channel string) (Publisher, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "course.completed"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisPublisher{
		log:     log.With("component", "RedisEventPublisher"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *redisPublisher) PublishCourseCompleted(ctx context.Context, evt CourseCompleted) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.log.Warn("publish course completion failed", "course_id", evt.CourseID, "error", err)
		return err
	}
	return nil
}

// NopPublisher drops events; used when no redis address is configured and
// by tests that only assert on call counts via their own fakes.
type NopPublisher struct{}

func (NopPublisher) PublishCourseCompleted(context.Context, CourseCompleted) error { return nil }
