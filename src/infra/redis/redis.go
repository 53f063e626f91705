package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	client            redis.UniversalClient
	defaultTTLSeconds time.Duration
	prefix            string
}

func NewRedisClient(addrs string, poolSize int, defaultTTLSeconds time.Duration) *RedisClient {
	client := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs: strings.Split(addrs, ","),

		// Pool settings para alta concorrência
		PoolSize:     poolSize,
		MinIdleConns: 10,

		// Cluster específico
		MaxRedirects: 3,

		// Timeouts otimizados para cache
		DialTimeout:  5 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,

		MaxRetries:      3,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 500 * time.Millisecond,
	})

	return NewRedisClientFrom(client, defaultTTLSeconds)
}

// NewRedisClientFrom wraps an existing client, e.g. a single node in tests.
func NewRedisClientFrom(client redis.UniversalClient, defaultTTLSeconds time.Duration) *RedisClient {
	return &RedisClient{
		client:            client,
		defaultTTLSeconds: defaultTTLSeconds,
	}
}

// WithPrefix namespaces every key written or read by the client.
func (rc *RedisClient) WithPrefix(prefix string) *RedisClient {
	rc.prefix = prefix
	return rc
}

func (rc *RedisClient) key(key string) string {
	return rc.prefix + key
}

// SetWithRegistry stores the value and adds its key to every registry set,
// so invalidating a registry drops every value that depended on it.
// Members are stored without the prefix.
func (rc *RedisClient) SetWithRegistry(ctx context.Context, cacheKey string, cacheValue string, registryKeys []string) error {
	pipe := rc.client.Pipeline()

	fields := map[string]interface{}{
		"data":      cacheValue,
		"cached_at": time.Now().Unix(),
	}
	pipe.HSet(ctx, rc.key(cacheKey), fields)
	pipe.Expire(ctx, rc.key(cacheKey), rc.defaultTTLSeconds)

	for _, registryKey := range registryKeys {
		pipe.SAdd(ctx, rc.key(registryKey), cacheKey)
		pipe.Expire(ctx, rc.key(registryKey), rc.defaultTTLSeconds)
	}

	_, err := pipe.Exec(ctx)
	return err
}

func (rc *RedisClient) GetKey(ctx context.Context, key string) (string, bool, error) {
	result := rc.client.HGet(ctx, rc.key(key), "data")

	// Cache miss
	if result.Err() == redis.Nil {
		return "", false, nil
	}
	if result.Err() != nil {
		return "", false, result.Err()
	}

	return result.Val(), true, nil
}

// GetMultipleSetMembers reads several registry sets in one pipeline.
func (rc *RedisClient) GetMultipleSetMembers(ctx context.Context, keys []string) (map[string][]string, error) {
	pipe := rc.client.Pipeline()

	cmds := make(map[string]*redis.StringSliceCmd, len(keys))
	for _, key := range keys {
		cmds[key] = pipe.SMembers(ctx, rc.key(key))
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	members := make(map[string][]string, len(keys))
	for key, cmd := range cmds {
		values, err := cmd.Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to read set %s: %w", key, err)
		}
		members[key] = values
	}

	return members, nil
}

// Invalidação em cluster requer cuidado especial: as chaves podem estar em
// slots diferentes, então cada DEL vai separado.
func (rc *RedisClient) InvalidateEntity(ctx context.Context, keys []string) error {
	var errors []string

	for _, key := range keys {
		if err := rc.client.Del(ctx, rc.key(key)).Err(); err != nil {
			errors = append(errors, fmt.Sprintf("key %s: %v", key, err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("invalidation errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// FlushByPrefix apaga todas as chaves do prefixo; usado pelos testes.
func (rc *RedisClient) FlushByPrefix(ctx context.Context) error {
	if rc.prefix == "" {
		return fmt.Errorf("refusing to flush without a prefix")
	}

	flush := func(ctx context.Context, client redis.UniversalClient) error {
		iter := client.Scan(ctx, 0, rc.prefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			if err := client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		return iter.Err()
	}

	if cluster, ok := rc.client.(*redis.ClusterClient); ok {
		return cluster.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
			return flush(ctx, node)
		})
	}
	return flush(ctx, rc.client)
}

// Health check para o cluster
func (rc *RedisClient) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}
