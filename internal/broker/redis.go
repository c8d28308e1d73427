package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/crawlmesh/crawlmesh/internal/types"
)

const (
	taskQueueKey   = "crawlmesh:tasks"
	resultQueueKey = "crawlmesh:results"
)

// RedisBroker is the production Broker, backed by a shared Redis
// instance so many worker processes (possibly on different hosts) can
// coordinate without a central scheduler.
type RedisBroker struct {
	client *redis.Client
}

// RedisOptions configures a RedisBroker connection.
type RedisOptions struct {
	Host     string
	Port     int
	DB       int
	Password string
}

// NewRedisBroker dials Redis per opts.
func NewRedisBroker(opts RedisOptions) *RedisBroker {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		DB:       opts.DB,
		Password: opts.Password,
	})
	return &RedisBroker{client: client}
}

func (b *RedisBroker) PushTask(ctx context.Context, task *types.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("broker: marshal task: %w", err)
	}
	return b.client.LPush(ctx, taskQueueKey, payload).Err()
}

func (b *RedisBroker) PopTask(ctx context.Context) (*types.Task, error) {
	payload, err := b.client.RPop(ctx, taskQueueKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: pop task: %w", err)
	}
	var task types.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("broker: unmarshal task: %w", err)
	}
	return &task, nil
}

func (b *RedisBroker) PushResult(ctx context.Context, result *types.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("broker: marshal result: %w", err)
	}
	return b.client.LPush(ctx, resultQueueKey, payload).Err()
}

func (b *RedisBroker) PopResult(ctx context.Context) (*types.Result, error) {
	payload, err := b.client.RPop(ctx, resultQueueKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("broker: pop result: %w", err)
	}
	var result types.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("broker: unmarshal result: %w", err)
	}
	return &result, nil
}

func (b *RedisBroker) QueueSize(ctx context.Context) (int64, error) {
	return b.client.LLen(ctx, taskQueueKey).Result()
}

func (b *RedisBroker) SetBit(ctx context.Context, key string, offset uint, value byte) error {
	return b.client.SetBit(ctx, key, int64(offset), int(value)).Err()
}

func (b *RedisBroker) GetBit(ctx context.Context, key string, offset uint) (byte, error) {
	v, err := b.client.GetBit(ctx, key, int64(offset)).Result()
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func (b *RedisBroker) HashSet(ctx context.Context, key, field, value string) error {
	return b.client.HSet(ctx, key, field, value).Err()
}

func (b *RedisBroker) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return b.client.HGetAll(ctx, key).Result()
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
