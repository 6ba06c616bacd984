package infra

import (
	"context"
	"sort"
	"sync"
	"time"

	"availability-proxy/ratelimit/domain"
)

// MemoryCounterStore é um domain.CounterStore inteiro em memória do
// processo, imitando a semântica de um sorted set do Redis (ordenação por
// score, índices negativos no Range, chave some quando o set esvazia).
//
// Útil para testes e desenvolvimento local. Não compartilha estado entre
// instâncias do proxy.
type MemoryCounterStore struct {
	mu      sync.Mutex
	sets    map[string][]domain.Entry
	expires map[string]time.Time
	now     func() time.Time
}

var _ domain.CounterStore = (*MemoryCounterStore)(nil)

// MemoryOption configura o MemoryCounterStore.
type MemoryOption func(*MemoryCounterStore)

// WithClock troca a fonte de tempo usada na expiração de chaves. Útil em
// testes que precisam avançar o relógio sem dormir.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryCounterStore) { s.now = now }
}

// NewMemoryCounterStore cria o store vazio.
func NewMemoryCounterStore(opts ...MemoryOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		sets:    make(map[string][]domain.Entry),
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryCounterStore) RemoveByScoreRange(ctx context.Context, key string, min, max float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	entries := s.sets[key]
	kept := entries[:0]
	for _, e := range entries {
		if e.Score >= min && e.Score <= max {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		// como no Redis, o set vazio deixa de existir (e perde o TTL)
		delete(s.sets, key)
		delete(s.expires, key)
		return nil
	}
	s.sets[key] = kept
	return nil
}

func (s *MemoryCounterStore) Count(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)
	return int64(len(s.sets[key])), nil
}

func (s *MemoryCounterStore) Add(ctx context.Context, key, member string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	// membro repetido atualiza o score em vez de crescer o set, como o ZADD
	entries := s.sets[key]
	updated := false
	for i := range entries {
		if entries[i].Member == member {
			entries[i].Score = score
			updated = true
			break
		}
	}
	if !updated {
		entries = append(entries, domain.Entry{Member: member, Score: score})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })
	s.sets[key] = entries
	return nil
}

func (s *MemoryCounterStore) Range(ctx context.Context, key string, start, stop int64) ([]domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)

	entries := s.sets[key]
	n := int64(len(entries))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if n == 0 || start >= n || stop < start {
		return nil, nil
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([]domain.Entry, stop-start+1)
	copy(out, entries[start:stop+1])
	return out, nil
}

func (s *MemoryCounterStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)
	if _, ok := s.sets[key]; ok {
		s.expires[key] = s.now().Add(ttl)
	}
	return nil
}

func (s *MemoryCounterStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sets, key)
	delete(s.expires, key)
	return nil
}

func (s *MemoryCounterStore) Ping(ctx context.Context) error {
	return nil
}

// TTL informa quanto falta para a chave expirar. O segundo retorno é false
// quando a chave não existe ou não tem TTL definido.
func (s *MemoryCounterStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(key)
	dl, ok := s.expires[key]
	if !ok {
		return 0, false
	}
	return dl.Sub(s.now()), true
}

// purgeLocked apaga a chave caso o TTL já tenha vencido. Expiração é
// preguiçosa: acontece no próximo acesso, não em background. mu precisa
// estar retido.
func (s *MemoryCounterStore) purgeLocked(key string) {
	dl, ok := s.expires[key]
	if ok && !s.now().Before(dl) {
		delete(s.sets, key)
		delete(s.expires, key)
	}
}
