package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"freelance-match/internal/config"
	"freelance-match/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 10 * time.Minute

var ErrUnavailable = errors.New("redis unavailable")

// Redis is a nil-safe JSON cache. When the server cannot be reached every
// read misses and every write is dropped, so callers fall through to the
// database.
type Redis struct {
	client *redis.Client
	log    logger.Logger

	warnedUnavailable atomic.Bool
}

// NewRedis connects when cfg.Enabled and the server answers a ping.
// Otherwise it returns a cache that is permanently bypassed.
func NewRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if !cfg.Enabled {
		return &Redis{log: log}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, bypassing cache", map[string]interface{}{
			"address": cfg.Address,
			"error":   err,
		})
		_ = client.Close()
		return &Redis{log: log}
	}

	return &Redis{client: client, log: log}
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Redis{client: client, log: log}
}

func (r *Redis) isUnavailable() bool {
	return r == nil || r.client == nil
}

func (r *Redis) warnUnavailableOnce(err error) {
	if r == nil || r.log == nil {
		return
	}
	if r.warnedUnavailable.CompareAndSwap(false, true) {
		r.log.Warn("redis unavailable, bypassing cache", map[string]interface{}{"error": err})
	}
}

func (r *Redis) Enabled() bool {
	return !r.isUnavailable()
}

func (r *Redis) Ping(ctx context.Context) error {
	if r.isUnavailable() {
		return ErrUnavailable
	}
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.isUnavailable() {
		return nil
	}
	return r.client.Close()
}

func (r *Redis) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	if r.isUnavailable() {
		return false, nil
	}
	b, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		r.warnUnavailableOnce(err)
		return false, err
	}
	if len(b) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	if r.isUnavailable() {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, b, ttl).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// storeIfGeneration writes KEYS[2] only while KEYS[1] still holds ARGV[1].
// A missing generation key counts as generation 0.
var storeIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[1]) or '0'
if current ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Generation reads a counter maintained by IncrGeneration. A missing key
// is generation 0.
func (r *Redis) Generation(ctx context.Context, key string) (int64, error) {
	if r.isUnavailable() {
		return 0, ErrUnavailable
	}
	n, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		r.warnUnavailableOnce(err)
		return 0, err
	}
	return n, nil
}

func (r *Redis) IncrGeneration(ctx context.Context, key string) error {
	if r.isUnavailable() {
		return nil
	}
	if err := r.client.Incr(ctx, key).Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}

// SetJSONIfGeneration stores value under key only while genKey still holds
// gen, checked and written atomically. It reports whether the value was
// stored.
func (r *Redis) SetJSONIfGeneration(ctx context.Context, genKey string, gen int64, key string, value any, ttl time.Duration) (bool, error) {
	if r.isUnavailable() {
		return false, nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	b, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	stored, err := storeIfGeneration.Run(ctx, r.client,
		[]string{genKey, key},
		strconv.FormatInt(gen, 10), b, ttl.Milliseconds(),
	).Int()
	if err != nil {
		r.warnUnavailableOnce(err)
		return false, err
	}
	return stored == 1, nil
}

// DeleteByPattern removes every key matching a SCAN glob.
func (r *Redis) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.isUnavailable() {
		return nil
	}
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if err := r.client.Del(ctx, k).Err(); err != nil {
			r.log.Warn("redis delete failed", map[string]interface{}{
				"key":     k,
				"pattern": pattern,
				"error":   err,
			})
		}
	}
	if err := iter.Err(); err != nil {
		r.warnUnavailableOnce(err)
		return err
	}
	return nil
}
