// Package events publishes change notifications for settlements and
// comments so that subscribers can refresh their views.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"settleup/internal/logger"
)

// Event types.
const (
	TypeInsert = "INSERT"
	TypeUpdate = "UPDATE"
	TypeDelete = "DELETE"
)

// Event is the message body published to a channel.
type Event struct {
	Type         string    `json:"type"`
	Table        string    `json:"table"`
	ID           string    `json:"id"`
	SettlementID string    `json:"settlement_id"`
	Version      int64     `json:"version,omitempty"`
	At           time.Time `json:"at"`
}

// CommentsChannel returns the channel carrying comment changes of a settlement.
func CommentsChannel(settlementID string) string {
	return "comments-for-" + settlementID
}

// SettlementChannel returns the channel carrying settlement changes.
func SettlementChannel(settlementID string) string {
	return "settlement-" + settlementID
}

// Publisher delivers events to a channel. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
	Close() error
}

// RedisPublisher publishes JSON-encoded events with Redis PUBLISH.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis at url. url may be a redis:// URL or a
// bare host:port. When url is empty or Redis does not answer a ping, a
// NopPublisher is returned and the service runs without notifications.
func NewRedisPublisher(ctx context.Context, url string) Publisher {
	log := logger.Named("events")
	if url == "" {
		log.Info("REDIS_URL not set, change events disabled")
		return NopPublisher{}
	}

	opts := &redis.Options{Addr: url}
	if strings.Contains(url, "://") {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			log.Warnw("Invalid REDIS_URL, change events disabled", "error", err)
			return NopPublisher{}
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warnw("Redis not available, change events disabled", "error", err)
		_ = client.Close()
		return NopPublisher{}
	}

	log.Infow("Redis connected", "addr", opts.Addr)
	return &RedisPublisher{client: client}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.client.Publish(ctx, channel, body).Err()
}

// Close implements Publisher.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events map[string][]Event
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{events: make(map[string][]Event)}
}

func (r *Recorder) Publish(_ context.Context, channel string, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[channel] = append(r.events[channel], ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the events published to channel.
func (r *Recorder) Events(channel string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events[channel]...)
}

// Notify publishes ev and logs instead of failing when delivery fails.
// Notifications never block a write that already committed.
func Notify(ctx context.Context, p Publisher, channel string, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, channel, ev); err != nil {
		logger.Named("events").Warnw("Failed to publish event", "channel", channel, "type", ev.Type, "error", err)
	}
}
