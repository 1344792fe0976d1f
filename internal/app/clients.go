package app

import (
	"github.com/safetrack/ehs-training-backend/internal/events"
	"github.com/safetrack/ehs-training-backend/internal/locks"
	"github.com/safetrack/ehs-training-backend/internal/logger"
)

type Clients struct {
	AttemptLocker locks.AttemptLocker
	Publisher     events.Publisher
}

// wireClients connects the redis-backed pieces. Without a redis address the
// app still runs: the locker degrades to in-process mutual exclusion and
// completion events are dropped.
func wireClients(log *logger.Logger, cfg Config) Clients {
	log.Info("Wiring clients...")

	var locker locks.AttemptLocker
	var publisher events.Publisher

	if cfg.RedisAddr != "" {
		redisLocker, err := locks.NewRedisLocker(log, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis locker init failed, falling back to in-memory", "error", err)
		} else {
			locker = redisLocker
		}
		redisPublisher, err := events.NewRedisPublisher(log, cfg.RedisAddr, cfg.EventChannel)
		if err != nil {
			log.Warn("redis publisher init failed, events disabled", "error", err)
		} else {
			publisher = redisPublisher
		}
	}

	if locker == nil {
		locker = locks.NewMemoryLocker()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return Clients{AttemptLocker: locker, Publisher: publisher}
}
