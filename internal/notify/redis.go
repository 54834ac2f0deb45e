package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultRedisChannel = "stream-downloader:events"

	redisQueueSize      = 1024
	redisPublishTimeout = 2 * time.Second
)

// Publisher is the part of *redis.Client the sink uses
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes events to a pub/sub channel from its own goroutine,
// keeping the order in which they were emitted.
type Redis struct {
	pub     Publisher
	channel string
	events  chan Message
	log     *slog.Logger
}

func NewRedis(log *slog.Logger, pub Publisher, channel string) *Redis {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &Redis{
		pub:     pub,
		channel: channel,
		events:  make(chan Message, redisQueueSize),
		log:     log.With(slog.String("service", "redis_notifier"), slog.String("channel", channel)),
	}
}

// NewRedisClient connects to the server at url and checks it answers
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cannot ping redis: %w", err)
	}
	return rdb, nil
}

// Emit queues the event; when the queue is full the event is dropped
func (r *Redis) Emit(name string, payload any) {
	select {
	case r.events <- Message{Event: name, Payload: payload}:
	default:
		r.log.Warn("publish queue is full, event dropped", slog.String("event", name))
	}
}

// Run publishes queued events until ctx is done
func (r *Redis) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-r.events:
			if err := r.publish(ctx, msg); err != nil {
				r.log.Error("cannot publish event", slog.String("event", msg.Event), slog.Any("error", err))
			}
		}
	}
}

func (r *Redis) publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("cannot encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()

	if err := r.pub.Publish(ctx, r.channel, body).Err(); err != nil {
		return fmt.Errorf("cannot publish: %w", err)
	}
	return nil
}
