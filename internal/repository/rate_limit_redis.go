package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"annotation-auth/internal/domain"
)

// Cada clave es un sorted set con score = created_at en milisegundos. La
// lectura recorta lo que quedó fuera de la ventana.
const redisWindowScript = `
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", "(" .. ARGV[1])
local count = redis.call("ZCOUNT", KEYS[1], ARGV[1], "+inf")
local oldest = redis.call("ZRANGEBYSCORE", KEYS[1], ARGV[1], "+inf", "WITHSCORES", "LIMIT", 0, 1)
if #oldest == 0 then
  return {count, 0}
end
return {count, tonumber(oldest[2])}
`

const redisRecordScript = `
redis.call("ZADD", KEYS[1], ARGV[1], ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisRateLimitStore implementa RateLimitStore sobre sorted sets de Redis.
type RedisRateLimitStore struct {
	client    redisEvaler
	retention time.Duration
	prefix    string
}

// NewRedisRateLimitStore recibe la ventana más larga configurada; las claves
// expiran solas pasado ese tiempo.
func NewRedisRateLimitStore(client *redis.Client, retention time.Duration) *RedisRateLimitStore {
	if client == nil {
		return nil
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisRateLimitStore{
		client:    client,
		retention: retention,
		prefix:    "auth:rl:",
	}
}

func (s *RedisRateLimitStore) key(identifier, action string) string {
	return s.prefix + action + ":" + strings.ToLower(strings.TrimSpace(identifier))
}

func (s *RedisRateLimitStore) Window(ctx context.Context, identifier, action string, since time.Time) (RateLimitWindow, error) {
	sinceMillis := strconv.FormatInt(since.UnixMilli(), 10)
	vals, err := s.client.Eval(ctx, redisWindowScript, []string{s.key(identifier, action)}, sinceMillis).Int64Slice()
	if err != nil {
		return RateLimitWindow{}, err
	}
	var w RateLimitWindow
	if len(vals) > 0 {
		w.Count = int(vals[0])
	}
	if len(vals) > 1 && vals[1] > 0 {
		w.Oldest = time.UnixMilli(vals[1]).UTC()
	}
	return w, nil
}

func (s *RedisRateLimitStore) Record(ctx context.Context, record domain.RateLimitRecord) error {
	return s.client.Eval(ctx, redisRecordScript,
		[]string{s.key(record.Identifier, record.Action)},
		record.CreatedAt.UnixMilli(),
		uuid.NewString(),
		s.retention.Milliseconds(),
	).Err()
}

// Purge no hace nada: Redis expira las claves y Window recorta los miembros viejos.
func (s *RedisRateLimitStore) Purge(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}
