package infra

import (
	"context"
	"sync"

	"availability-proxy/ratelimit/domain"
)

// Counters acumula decisões de admissão por resultado.
type Counters struct {
	Allowed int64
	Denied  int64
}

// MemoryStatsStore guarda as estatísticas em memória do processo.
// Útil para testes e desenvolvimento.
//
// Não faz expiração e não é indicado para produção.
type MemoryStatsStore struct {
	mu           sync.Mutex
	total        Counters
	byRoute      map[string]Counters
	byIdentifier map[string]Counters

	trackIdentifiers bool
}

var _ domain.StatsStore = (*MemoryStatsStore)(nil)

type MemoryStatsOption func(*MemoryStatsStore)

// WithTrackIdentifiers liga a contagem por identificador.
func WithTrackIdentifiers(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackIdentifiers = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byRoute:      make(map[string]Counters),
		byIdentifier: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	route := ev.Method + " " + ev.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	bump := func(c *Counters) {
		if ev.Allowed {
			c.Allowed++
		} else {
			c.Denied++
		}
	}

	bump(&s.total)

	c := s.byRoute[route]
	bump(&c)
	s.byRoute[route] = c

	if s.trackIdentifiers {
		i := s.byIdentifier[ev.Identifier]
		bump(&i)
		s.byIdentifier[ev.Identifier] = i
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByRoute() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByIdentifier() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byIdentifier))
	for k, v := range s.byIdentifier {
		out[k] = v
	}
	return out
}
