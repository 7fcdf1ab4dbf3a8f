package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"panel-bridge/config"

	"github.com/go-redis/redis/v8"
)

type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx := context.Background()

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
	}, nil
}

// ===================================================================
// DEVICE HOT STATUS MIRROR
// ===================================================================

// SetDeviceStatus mirrors a device's last-known connectivity so frequent
// readers (stats, the heartbeat monitor) do not hit Postgres.
func (r *RedisClient) SetDeviceStatus(deviceID uint, status string) error {
	key := fmt.Sprintf("panel:conn:%d", deviceID)

	info := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	infoJSON, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal device status: %w", err)
	}

	if err := r.client.Set(r.ctx, key, infoJSON, 24*time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to save device status to Redis: %w", err)
	}
	return nil
}

// GetDeviceStatus returns the mirrored connectivity status, or empty string
// when the mirror has expired.
func (r *RedisClient) GetDeviceStatus(deviceID uint) (string, error) {
	key := fmt.Sprintf("panel:conn:%d", deviceID)

	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get device status from Redis: %w", err)
	}

	var info map[string]interface{}
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return "", fmt.Errorf("failed to unmarshal device status: %w", err)
	}
	status, _ := info["status"].(string)
	return status, nil
}

// ===================================================================
// TASK QUEUE PRIMITIVES
// ===================================================================

// AcquireTaskLock takes the enqueue idempotency lock for a task. Returns
// false when the task is already enqueued or running.
func (r *RedisClient) AcquireTaskLock(queueName, taskID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("queue:%s:lock:%s", queueName, taskID)
	ok, err := r.client.SetNX(r.ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire task lock: %w", err)
	}
	return ok, nil
}

// ReleaseTaskLock drops the idempotency lock after a task finishes.
func (r *RedisClient) ReleaseTaskLock(queueName, taskID string) error {
	key := fmt.Sprintf("queue:%s:lock:%s", queueName, taskID)
	if err := r.client.Del(r.ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release task lock: %w", err)
	}
	return nil
}

// PushTask appends a task envelope to the ready list.
func (r *RedisClient) PushTask(queueName string, payload []byte) error {
	key := fmt.Sprintf("queue:%s:ready", queueName)
	if err := r.client.LPush(r.ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

// PopTask blocks up to timeout for the next ready task. Returns nil without
// error when the queue stays empty.
func (r *RedisClient) PopTask(queueName string, timeout time.Duration) ([]byte, error) {
	key := fmt.Sprintf("queue:%s:ready", queueName)
	vals, err := r.client.BRPop(r.ctx, timeout, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop task: %w", err)
	}
	if len(vals) < 2 {
		return nil, nil
	}
	return []byte(vals[1]), nil
}

// ScheduleTask parks a task in the delayed set until readyAt.
func (r *RedisClient) ScheduleTask(queueName string, payload []byte, readyAt time.Time) error {
	key := fmt.Sprintf("queue:%s:delayed", queueName)
	member := redis.Z{Score: float64(readyAt.UnixMilli()), Member: payload}
	if err := r.client.ZAdd(r.ctx, key, &member).Err(); err != nil {
		return fmt.Errorf("failed to schedule task: %w", err)
	}
	return nil
}

// PromoteDueTasks moves delayed tasks whose time has come onto the ready
// list. Returns the number of promoted tasks.
func (r *RedisClient) PromoteDueTasks(queueName string, now time.Time) (int, error) {
	delayedKey := fmt.Sprintf("queue:%s:delayed", queueName)
	max := fmt.Sprintf("%d", now.UnixMilli())

	due, err := r.client.ZRangeByScore(r.ctx, delayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read delayed tasks: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	pipe := r.client.TxPipeline()
	readyKey := fmt.Sprintf("queue:%s:ready", queueName)
	for _, member := range due {
		pipe.ZRem(r.ctx, delayedKey, member)
		pipe.LPush(r.ctx, readyKey, member)
	}
	if _, err := pipe.Exec(r.ctx); err != nil {
		return 0, fmt.Errorf("failed to promote delayed tasks: %w", err)
	}
	return len(due), nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
