/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_channel/internal/events"
	"github.com/friendsincode/grimnir_channel/internal/telemetry"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Consecutive publish failures before the bus stops using Redis.
	MaxFailures int
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxFailures:  5,
	}
}

// RedisBus delivers events locally and mirrors them over Redis pub/sub.
// When Redis is unreachable it degrades to the local bus.
type RedisBus struct {
	local  *events.Bus
	client *redis.Client
	pubsub *redis.PubSub
	logger zerolog.Logger
	nodeID string

	mu        sync.Mutex
	degraded  bool
	failCount int
	maxFails  int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRedisBus connects to Redis and starts relaying remote events.
func NewRedisBus(cfg RedisConfig, nodeID string, logger zerolog.Logger) *RedisBus {
	logger = logger.With().Str("component", "eventbus").Str("transport", "redis").Logger()
	rb := &RedisBus{
		local:    events.NewBus(),
		logger:   logger,
		nodeID:   nodeID,
		maxFails: cfg.MaxFailures,
	}
	if rb.maxFails <= 0 {
		rb.maxFails = 5
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unavailable, events stay in-process")
		_ = client.Close()
		rb.degraded = true
		return rb
	}

	ctx, cancel := context.WithCancel(context.Background())
	rb.client = client
	rb.cancel = cancel
	rb.pubsub = client.PSubscribe(ctx, SubjectPrefix+"*")

	rb.wg.Add(1)
	go rb.receive(ctx)

	logger.Info().Str("addr", cfg.Addr).Str("node_id", nodeID).Msg("redis event bus initialized")
	return rb
}

func (rb *RedisBus) receive(ctx context.Context) {
	defer rb.wg.Done()
	ch := rb.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				rb.logger.Warn().Msg("redis subscription closed")
				return
			}
			env, err := decode([]byte(msg.Payload))
			if err != nil {
				rb.logger.Error().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			if env.NodeID == rb.nodeID {
				continue
			}
			rb.local.Publish(env.EventType, env.Payload)
		}
	}
}

// Subscribe registers a local subscriber; remote events are delivered to it too.
func (rb *RedisBus) Subscribe(eventType events.EventType) events.Subscriber {
	return rb.local.Subscribe(eventType)
}

// Unsubscribe removes a subscriber.
func (rb *RedisBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	rb.local.Unsubscribe(eventType, sub)
}

// Publish delivers locally and then to Redis.
func (rb *RedisBus) Publish(eventType events.EventType, payload events.Payload) {
	rb.local.Publish(eventType, payload)

	rb.mu.Lock()
	degraded := rb.degraded
	rb.mu.Unlock()
	if degraded {
		return
	}

	data, err := encode(eventType, payload, rb.nodeID)
	if err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rb.client.Publish(ctx, subject(eventType), data).Err(); err != nil {
		rb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to redis")
		rb.handleFailure()
		return
	}
	telemetry.EventsPublishedTotal.WithLabelValues("redis").Inc()

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.failCount++
	if rb.failCount >= rb.maxFails && !rb.degraded {
		rb.logger.Warn().Int("fail_count", rb.failCount).Msg("redis failure threshold reached, events stay in-process")
		rb.degraded = true
	}
}

// Degraded reports whether the bus stopped using Redis.
func (rb *RedisBus) Degraded() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.degraded
}

// Close stops the relay and closes the client.
func (rb *RedisBus) Close() error {
	if rb.cancel != nil {
		rb.cancel()
	}
	if rb.pubsub != nil {
		_ = rb.pubsub.Close()
	}
	rb.wg.Wait()
	if rb.client != nil {
		return rb.client.Close()
	}
	return nil
}
