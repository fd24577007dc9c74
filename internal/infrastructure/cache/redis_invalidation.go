package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Constants for invalidator configuration
const (
	DefaultInvalidationChannel = "finbooks:cache:invalidation"
	defaultCloseTimeout        = 5 * time.Second
)

// RedisConfig holds Redis connection settings for the invalidator.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// InvalidationMessage is the payload fanned out to every instance when a
// write commits. Tags take precedence; an empty tag list with a pattern
// falls back to pattern invalidation, and an empty message clears the
// whole cache.
type InvalidationMessage struct {
	Tags      []string `json:"tags,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Origin    string   `json:"origin,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

// RedisInvalidator fans cache invalidations out to other instances via
// Redis Pub/Sub. The local cache is always invalidated synchronously by
// the write path itself; the fan-out only covers remote caches, so a
// publish failure degrades cross-instance freshness without breaking the
// local read-your-writes guarantee.
type RedisInvalidator struct {
	client     *redis.Client
	ownsClient bool
	channel    string
	origin     string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisInvalidatorOption is a functional option for configuring the invalidator
type RedisInvalidatorOption func(*RedisInvalidator)

// WithInvalidatorChannel sets the Pub/Sub channel name
func WithInvalidatorChannel(channel string) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.channel = channel
	}
}

// WithInvalidatorOrigin sets the instance identity stamped on outgoing
// messages so subscribers can skip their own publishes.
func WithInvalidatorOrigin(origin string) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.origin = origin
	}
}

// WithInvalidatorLogger sets the logger for the invalidator
func WithInvalidatorLogger(logger *zap.Logger) RedisInvalidatorOption {
	return func(i *RedisInvalidator) {
		i.logger = logger
	}
}

// NewRedisInvalidator creates a new Redis Pub/Sub cache invalidator
func NewRedisInvalidator(cfg RedisConfig, opts ...RedisInvalidatorOption) (*RedisInvalidator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	invalidator := &RedisInvalidator{
		client:     client,
		ownsClient: true,
		channel:    DefaultInvalidationChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(invalidator)
	}

	return invalidator, nil
}

// NewRedisInvalidatorWithClient creates an invalidator with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisInvalidatorWithClient(client *redis.Client, opts ...RedisInvalidatorOption) *RedisInvalidator {
	invalidator := &RedisInvalidator{
		client:     client,
		ownsClient: false,
		channel:    DefaultInvalidationChannel,
		logger:     zap.NewNop(),
		doneCh:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(invalidator)
	}

	return invalidator
}

// PublishTags publishes a tag invalidation to all subscribers.
func (i *RedisInvalidator) PublishTags(ctx context.Context, tags []string) error {
	return i.publish(ctx, InvalidationMessage{Tags: tags})
}

// PublishPattern publishes a key-pattern invalidation to all subscribers.
func (i *RedisInvalidator) PublishPattern(ctx context.Context, pattern string) error {
	return i.publish(ctx, InvalidationMessage{Pattern: pattern})
}

func (i *RedisInvalidator) publish(ctx context.Context, msg InvalidationMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}
	msg.Origin = i.origin

	data, err := json.Marshal(msg)
	if err != nil {
		i.logger.Error("Failed to marshal invalidation message",
			zap.Strings("tags", msg.Tags),
			zap.Error(err))
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := i.client.Publish(ctx, i.channel, data).Err(); err != nil {
		i.logger.Error("Failed to publish invalidation message",
			zap.String("channel", i.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	i.logger.Debug("Published invalidation message",
		zap.Strings("tags", msg.Tags),
		zap.String("pattern", msg.Pattern),
		zap.String("channel", i.channel))

	return nil
}

// Subscribe starts listening for invalidation messages and applies each
// one to the given cache. Messages stamped with this instance's origin
// are skipped since the local cache was already invalidated in line with
// the write. This method blocks and should be called in a goroutine.
func (i *RedisInvalidator) Subscribe(ctx context.Context, target *TaggedCache) error {
	i.mu.Lock()
	if i.isRunning {
		i.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	i.isRunning = true
	i.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	i.mu.Lock()
	i.cancelFn = cancel
	i.mu.Unlock()

	pubsub := i.client.Subscribe(subCtx, i.channel)
	defer pubsub.Close()

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		i.mu.Lock()
		i.isRunning = false
		i.mu.Unlock()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	i.logger.Info("Subscribed to cache invalidation channel",
		zap.String("channel", i.channel))

	ch := pubsub.Channel()

	for {
		select {
		case <-subCtx.Done():
			i.logger.Info("Cache invalidation subscription stopped")
			i.mu.Lock()
			i.isRunning = false
			i.mu.Unlock()
			i.markDone()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				i.logger.Warn("Cache invalidation channel closed")
				i.mu.Lock()
				i.isRunning = false
				i.mu.Unlock()
				i.markDone()
				return nil
			}

			var inv InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				i.logger.Error("Failed to unmarshal invalidation message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			if i.origin != "" && inv.Origin == i.origin {
				continue
			}

			i.apply(target, inv)
		}
	}
}

func (i *RedisInvalidator) apply(target *TaggedCache, msg InvalidationMessage) {
	switch {
	case len(msg.Tags) > 0:
		removed := target.InvalidateByTags(msg.Tags)
		i.logger.Debug("Applied remote tag invalidation",
			zap.Strings("tags", msg.Tags),
			zap.Int("removed", removed))
	case msg.Pattern != "":
		removed := target.Invalidate(msg.Pattern)
		i.logger.Debug("Applied remote pattern invalidation",
			zap.String("pattern", msg.Pattern),
			zap.Int("removed", removed))
	default:
		target.Clear()
		i.logger.Debug("Applied remote cache clear")
	}
}

// markDone safely marks the invalidator as done
func (i *RedisInvalidator) markDone() {
	i.doneOnce.Do(func() {
		close(i.doneCh)
	})
}

// Close releases any resources held by the invalidator
func (i *RedisInvalidator) Close() error {
	i.mu.Lock()
	cancelFn := i.cancelFn
	i.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		// Wait for subscription to stop with timeout
		select {
		case <-i.doneCh:
		case <-time.After(defaultCloseTimeout):
			i.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if i.ownsClient {
		return i.client.Close()
	}
	return nil
}
