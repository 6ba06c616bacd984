package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"availability-proxy/ratelimit/domain"
)

// pingTimeout limita o PING de validação feito em DialCounterStore.
const pingTimeout = 2 * time.Second

// RedisCounterStore implementa domain.CounterStore sobre sorted sets do
// Redis. Cada chave de rate limit vira um ZSET cujos scores são timestamps.
type RedisCounterStore struct {
	rdb *redis.Client
}

var _ domain.CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore embrulha um client já conectado. A posse do client
// continua com o chamador.
func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

// DialCounterStore cria o client Redis a partir da URL (redis:// ou
// rediss://), aplica o token como senha quando informado e valida a conexão
// com um PING curto. Falha de PING retorna erro em vez de um store quebrado;
// quem chama decide se isso desabilita o rate limit ou aborta o processo.
func DialCounterStore(ctx context.Context, rawURL, token string) (*RedisCounterStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if token != "" {
		opts.Password = token
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCounterStore{rdb: rdb}, nil
}

// Client expõe o client subjacente para quem quiser compartilhar a mesma
// conexão (ex.: RedisStatsStore).
func (s *RedisCounterStore) Client() *redis.Client {
	return s.rdb
}

// Close encerra a conexão com o Redis.
func (s *RedisCounterStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisCounterStore) RemoveByScoreRange(ctx context.Context, key string, min, max float64) error {
	return s.rdb.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err()
}

func (s *RedisCounterStore) Count(ctx context.Context, key string) (int64, error) {
	return s.rdb.ZCard(ctx, key).Result()
}

func (s *RedisCounterStore) Add(ctx context.Context, key, member string, score float64) error {
	return s.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (s *RedisCounterStore) Range(ctx context.Context, key string, start, stop int64) ([]domain.Entry, error) {
	zs, err := s.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]domain.Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		entries = append(entries, domain.Entry{Member: member, Score: z.Score})
	}
	return entries, nil
}

func (s *RedisCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}

func (s *RedisCounterStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// formatScore converte o score para o formato de argumento que o Redis
// espera em ZREMRANGEBYSCORE, sem passar por fmt.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
