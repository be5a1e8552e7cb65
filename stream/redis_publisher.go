package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jackmew/ZestExchange/engine"
)

const (
	orderbookChannelPrefix = "orderbook:"
	tradesChannelPrefix    = "trades:"
)

// Config holds redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// DefaultConfig returns settings for a local redis.
func DefaultConfig() *Config {
	return &Config{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
		PoolSize: 10,
	}
}

// RedisPublisher fans book and trade events out over redis pub/sub, one
// channel per symbol topic. Delivery is best-effort: every BookUpdated
// event carries a full depth-limited snapshot, so subscribers that miss
// a message are consistent again on the next one.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to redis and verifies the connection.
func NewRedisPublisher(config *Config) (*RedisPublisher, error) {
	if config == nil {
		config = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisPublisher{client: client}, nil
}

// NewRedisPublisherFromClient wraps an existing client (shared with the
// rest of the process).
func NewRedisPublisherFromClient(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// PublishBookUpdate implements engine.EventPublisher.
func (rp *RedisPublisher) PublishBookUpdate(ctx context.Context, update engine.BookUpdated) error {
	return rp.publish(ctx, orderbookChannelPrefix+update.Symbol, update)
}

// PublishTrade implements engine.EventPublisher.
func (rp *RedisPublisher) PublishTrade(ctx context.Context, trade engine.TradeOccurred) error {
	return rp.publish(ctx, tradesChannelPrefix+trade.Symbol, trade)
}

func (rp *RedisPublisher) publish(ctx context.Context, channel string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := rp.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Client exposes the underlying redis client so other components can
// share the connection pool.
func (rp *RedisPublisher) Client() *redis.Client {
	return rp.client
}

// Close releases the underlying redis connection.
func (rp *RedisPublisher) Close() error {
	return rp.client.Close()
}
