package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout. All broker keys live under the "broker:" prefix so a
// shared Redis instance stays navigable.
const (
	queueKeyFormat   = "broker:tool:%s:queue"   // invocation list per tool
	metaKeyFormat    = "broker:tool:%s:meta"    // tool metadata hash
	healthKeyFormat  = "broker:tool:%s:health"  // heartbeat key with TTL
	workersKeyFormat = "broker:tool:%s:workers" // live worker counter
	outcomeKeyFormat = "broker:outcome:%s"      // pub/sub channel per correlation id
	availableToolsKey = "broker:tools:available"
)

// heartbeatTTL is how long a heartbeat key lives without renewal.
const heartbeatTTL = 30 * time.Second

// Client defines the interface for the Redis-backed invocation queue.
type Client interface {
	// Push adds an invocation to the end of the named tool's queue (LPUSH).
	Push(ctx context.Context, inv Invocation) error

	// Pop removes and returns an invocation from the front of the named
	// tool's queue (BRPOP). Blocks until an item is available or the
	// context is cancelled.
	Pop(ctx context.Context, toolName string) (*Invocation, error)

	// PublishOutcome sends an outcome to its correlation-specific channel.
	PublishOutcome(ctx context.Context, out Outcome) error

	// SubscribeOutcome subscribes to the outcome channel for a
	// correlation id. The returned channel receives outcomes until the
	// context is cancelled.
	SubscribeOutcome(ctx context.Context, correlationID string) (<-chan Outcome, error)

	// RegisterTool writes tool metadata to Redis and adds it to the
	// available set.
	RegisterTool(ctx context.Context, meta ToolMeta) error

	// ListTools returns metadata for all registered tools.
	ListTools(ctx context.Context) ([]ToolMeta, error)

	// Heartbeat refreshes the health key for a tool.
	Heartbeat(ctx context.Context, toolName string) error

	// IsAlive reports whether any worker for the tool has heartbeated
	// within the TTL.
	IsAlive(ctx context.Context, toolName string) (bool, error)

	// GetWorkerCount returns the current worker count for a tool.
	GetWorkerCount(ctx context.Context, toolName string) (int, error)

	// IncrementWorkerCount increments the worker count for a tool.
	IncrementWorkerCount(ctx context.Context, toolName string) error

	// DecrementWorkerCount decrements the worker count for a tool.
	DecrementWorkerCount(ctx context.Context, toolName string) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisClient implements the Client interface using go-redis/v9.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}

	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}

	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Push adds an invocation to the end of its tool's queue.
func (c *RedisClient) Push(ctx context.Context, inv Invocation) error {
	if err := inv.IsValid(); err != nil {
		return fmt.Errorf("invalid invocation: %w", err)
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("failed to marshal invocation: %w", err)
	}

	key := fmt.Sprintf(queueKeyFormat, inv.Tool)
	if err := c.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", key, err)
	}

	return nil
}

// Pop removes and returns an invocation from the front of a tool's queue.
// Blocks until an item is available or the context is cancelled.
func (c *RedisClient) Pop(ctx context.Context, toolName string) (*Invocation, error) {
	key := fmt.Sprintf(queueKeyFormat, toolName)

	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, 0, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", key, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var inv Invocation
	if err := json.Unmarshal([]byte(result[1]), &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal invocation: %w", err)
	}

	return &inv, nil
}

// PublishOutcome sends an outcome to its correlation-specific channel.
func (c *RedisClient) PublishOutcome(ctx context.Context, out Outcome) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome: %w", err)
	}

	channel := fmt.Sprintf(outcomeKeyFormat, out.CorrelationID)
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}

	return nil
}

// SubscribeOutcome subscribes to the outcome channel for a correlation id.
func (c *RedisClient) SubscribeOutcome(ctx context.Context, correlationID string) (<-chan Outcome, error) {
	channel := fmt.Sprintf(outcomeKeyFormat, correlationID)
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	outcomes := make(chan Outcome)

	go func() {
		defer close(outcomes)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var out Outcome
				if err := json.Unmarshal([]byte(msg.Payload), &out); err != nil {
					// Malformed message; keep the subscription alive
					continue
				}

				select {
				case outcomes <- out:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return outcomes, nil
}

// RegisterTool writes tool metadata to Redis and adds it to the available set.
func (c *RedisClient) RegisterTool(ctx context.Context, meta ToolMeta) error {
	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	// Flat map for HSET - all values must be strings for go-redis
	metaMap := map[string]string{
		"name":         meta.Name,
		"version":      meta.Version,
		"description":  meta.Description,
		"schema":       meta.SchemaJSON,
		"tags":         string(tagsJSON),
		"worker_count": strconv.Itoa(meta.WorkerCount),
	}

	metaKey := fmt.Sprintf(metaKeyFormat, meta.Name)
	args := make([]interface{}, 0, len(metaMap)*2)
	for k, v := range metaMap {
		args = append(args, k, v)
	}
	if err := c.client.HSet(ctx, metaKey, args...).Err(); err != nil {
		return fmt.Errorf("failed to set tool metadata: %w", err)
	}

	if err := c.client.SAdd(ctx, availableToolsKey, meta.Name).Err(); err != nil {
		return fmt.Errorf("failed to add tool to available set: %w", err)
	}

	return nil
}

// ListTools returns metadata for all registered tools.
func (c *RedisClient) ListTools(ctx context.Context) ([]ToolMeta, error) {
	toolNames, err := c.client.SMembers(ctx, availableToolsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get available tools: %w", err)
	}

	tools := make([]ToolMeta, 0, len(toolNames))

	for _, name := range toolNames {
		metaKey := fmt.Sprintf(metaKeyFormat, name)
		metaMap, err := c.client.HGetAll(ctx, metaKey).Result()
		if err != nil || len(metaMap) == 0 {
			// Skip tools with missing metadata
			continue
		}

		meta := ToolMeta{
			Name:        metaMap["name"],
			Version:     metaMap["version"],
			Description: metaMap["description"],
			SchemaJSON:  metaMap["schema"],
		}

		if tagsStr, ok := metaMap["tags"]; ok {
			var tags []string
			if err := json.Unmarshal([]byte(tagsStr), &tags); err == nil {
				meta.Tags = tags
			}
		}

		if countStr, ok := metaMap["worker_count"]; ok {
			if count, err := strconv.Atoi(countStr); err == nil {
				meta.WorkerCount = count
			}
		}

		tools = append(tools, meta)
	}

	return tools, nil
}

// Heartbeat refreshes the health key for a tool.
func (c *RedisClient) Heartbeat(ctx context.Context, toolName string) error {
	healthKey := fmt.Sprintf(healthKeyFormat, toolName)
	if err := c.client.Set(ctx, healthKey, "ok", heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for tool %s: %w", toolName, err)
	}
	return nil
}

// IsAlive reports whether any worker for the tool has heartbeated within
// the TTL.
func (c *RedisClient) IsAlive(ctx context.Context, toolName string) (bool, error) {
	healthKey := fmt.Sprintf(healthKeyFormat, toolName)
	_, err := c.client.Get(ctx, healthKey).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to check heartbeat for tool %s: %w", toolName, err)
	}
	return true, nil
}

// GetWorkerCount returns the current worker count for a tool.
func (c *RedisClient) GetWorkerCount(ctx context.Context, toolName string) (int, error) {
	workerKey := fmt.Sprintf(workersKeyFormat, toolName)
	countStr, err := c.client.Get(ctx, workerKey).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count for tool %s: %w", toolName, err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}

	return count, nil
}

// IncrementWorkerCount increments the worker count for a tool.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context, toolName string) error {
	workerKey := fmt.Sprintf(workersKeyFormat, toolName)
	if err := c.client.Incr(ctx, workerKey).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count for tool %s: %w", toolName, err)
	}
	return nil
}

// DecrementWorkerCount decrements the worker count for a tool.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context, toolName string) error {
	workerKey := fmt.Sprintf(workersKeyFormat, toolName)
	if err := c.client.Decr(ctx, workerKey).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count for tool %s: %w", toolName, err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
