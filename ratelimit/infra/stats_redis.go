package infra

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"availability-proxy/ratelimit/domain"
)

// RedisStatsStore grava contadores agregados de decisões de admissão no
// Redis, via HINCRBY em um pipeline. Pode compartilhar o client do
// RedisCounterStore (ver Client()).
//
// Layout das chaves (prefix padrão "ratelimit:stats"):
//
//	<prefix>:total                     hash {allowed, denied}, cumulativo
//	<prefix>:minute:<AAAAMMDDHHMM>     série temporal por minuto, com TTL
//	<prefix>:route                     hash "<METHOD> <path>:<campo>"
//	<prefix>:id:<identifier>           por identificador, com TTL (opcional)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl aplica só nas chaves por minuto e por identificador.
	// O total é cumulativo e não expira.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackIdentifiers bool
}

var _ domain.StatsStore = (*RedisStatsStore)(nil)

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

// WithStatsTrackIdentifiers liga a contagem por identificador. Desligado por
// padrão por causa da cardinalidade (um hash novo por identificador visto).
func WithStatsTrackIdentifiers(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackIdentifiers = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "ratelimit:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	if s.bucket == "minute" {
		bucketKey := s.prefix + ":minute:" + at.UTC().Format("200601021504")
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	route := strings.TrimSpace(strings.TrimSpace(ev.Method) + " " + strings.TrimSpace(ev.Path))
	if route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if s.trackIdentifiers {
		if id := strings.TrimSpace(ev.Identifier); id != "" {
			idKey := s.prefix + ":id:" + id
			pipe.HIncrBy(ctx, idKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, idKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
