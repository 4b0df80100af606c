// Package eventbus publishes service events to a Redis stream.
//
// The bus is optional. A nil *Bus is valid and reports ErrUnavailable from
// every method, so callers do not need to guard each use.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/leslieo2/agent-summarizer/internal/constants"
)

// ErrUnavailable is returned when the bus is not configured or cannot be reached
var ErrUnavailable = errors.New("event bus unavailable")

// Event is the envelope written to the stream
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// PublishRecorder counts publish attempts
type PublishRecorder interface {
	RecordEventPublish(success bool)
}

type Option func(*Bus)

// WithStream sets the stream key events are appended to
func WithStream(stream string) Option {
	return func(b *Bus) {
		if stream != "" {
			b.stream = stream
		}
	}
}

// WithMaxLen trims the stream to roughly n entries on each append; 0 disables trimming
func WithMaxLen(n int64) Option {
	return func(b *Bus) { b.maxLen = n }
}

// WithSource sets the source field stamped on every event
func WithSource(source string) Option {
	return func(b *Bus) {
		if source != "" {
			b.source = source
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

func WithMetrics(m PublishRecorder) Option {
	return func(b *Bus) { b.metrics = m }
}

// Bus appends events to a Redis stream
type Bus struct {
	client  *redis.Client
	stream  string
	maxLen  int64
	source  string
	logger  *zap.Logger
	metrics PublishRecorder
	healthy atomic.Bool

	newID func() string
	now   func() time.Time
}

// New connects to the Redis instance at rawURL and verifies it with PING.
// The connection is closed again when the ping fails.
func New(ctx context.Context, rawURL string, opts ...Option) (*Bus, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: no redis url configured", ErrUnavailable)
	}

	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis url: %w", ErrUnavailable, err)
	}

	b := &Bus{
		client: redis.NewClient(redisOpts),
		stream: constants.DefaultEventStream,
		source: constants.ServiceName,
		logger: zap.NewNop(),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.Ping(ctx); err != nil {
		_ = b.client.Close()
		return nil, err
	}

	b.logger.Info("Connected to event bus",
		zap.String("addr", redisOpts.Addr),
		zap.Int("db", redisOpts.DB),
		zap.String("stream", b.stream),
	)
	return b, nil
}

// Publish wraps data in an Event and appends it to the stream.
// It returns the generated event ID.
func (b *Bus) Publish(ctx context.Context, eventType string, data any) (string, error) {
	if b == nil {
		return "", ErrUnavailable
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := Event{
		ID:        b.newID(),
		Type:      eventType,
		Source:    b.source,
		Timestamp: b.now().UTC(),
		Data:      payload,
	}

	args := &redis.XAddArgs{
		Stream: b.stream,
		Values: map[string]any{
			"id":        event.ID,
			"type":      event.Type,
			"source":    event.Source,
			"timestamp": event.Timestamp.Format(time.RFC3339Nano),
			"data":      string(event.Data),
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	err = b.client.XAdd(ctx, args).Err()
	b.observe(err)
	if b.metrics != nil {
		b.metrics.RecordEventPublish(err == nil)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to publish %s: %w", ErrUnavailable, eventType, err)
	}

	b.logger.Debug("Published event",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("stream", b.stream),
	)
	return event.ID, nil
}

// Ping checks connectivity and records the outcome for Healthy
func (b *Bus) Ping(ctx context.Context) error {
	if b == nil {
		return ErrUnavailable
	}

	err := b.client.Ping(ctx).Err()
	b.observe(err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Healthy reports the outcome of the last operation against Redis
func (b *Bus) Healthy() bool {
	return b != nil && b.healthy.Load()
}

// Stream returns the stream key
func (b *Bus) Stream() string {
	if b == nil {
		return ""
	}
	return b.stream
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	b.healthy.Store(false)
	return b.client.Close()
}

func (b *Bus) observe(err error) {
	ok := err == nil
	if b.healthy.Swap(ok) != ok && !ok {
		b.logger.Warn("Event bus operation failed", zap.Error(err))
	}
}
