package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão já tomada, para fins de
// contabilidade. Method e Path são strings genéricas para não acoplar o
// domínio a HTTP.
//
// Observação: cuidado com cardinalidade. Gravar Identifier e Path sem
// nenhum controle pode explodir o número de chaves no backend de stats.
type StatsEvent struct {
	Identifier string
	Allowed    bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência das estatísticas de admissão.
//
// O middleware trata a gravação como best-effort: erro de stats não pode
// derrubar a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
