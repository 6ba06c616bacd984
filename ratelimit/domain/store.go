package domain

import (
	"context"
	"time"
)

// Entry é um membro do conjunto ordenado com o seu score.
//
// No limiter, Member identifica uma admissão individual e Score é o
// timestamp dela em segundos (float) desde a epoch Unix.
type Entry struct {
	Member string
	Score  float64
}

// CounterStore é a capacidade mínima que o limiter exige de um armazenamento
// estilo sorted-set. A implementação de referência é Redis (infra), mas o
// contrato não assume nenhum produto específico.
//
// Todas as operações devem respeitar o ctx (timeout/cancelamento) e retornar
// erro quando o backend estiver indisponível. Quem decide o que fazer com o
// erro é a camada de aplicação.
type CounterStore interface {
	// RemoveByScoreRange remove os membros com score dentro de [min, max].
	RemoveByScoreRange(ctx context.Context, key string, min, max float64) error

	// Count retorna a quantidade de membros da chave.
	Count(ctx context.Context, key string) (int64, error)

	// Add insere member com o score informado.
	Add(ctx context.Context, key, member string, score float64) error

	// Range retorna os membros nas posições [start, stop] em ordem crescente
	// de score. Índices negativos contam a partir do fim, como no Redis.
	// Range(ctx, key, 0, 0) devolve o membro mais antigo.
	Range(ctx context.Context, key string, start, stop int64) ([]Entry, error)

	// Expire define ou renova o TTL da chave.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Delete apaga a chave inteira.
	Delete(ctx context.Context, key string) error

	// Ping verifica a conectividade com o backend.
	Ping(ctx context.Context) error
}
