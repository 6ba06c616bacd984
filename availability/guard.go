package availability

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Erros de curto-circuito do Guard, antes de qualquer chamada de rede.
var (
	ErrBusy      = errors.New("availability: upstream busy, no in-flight slot")
	ErrThrottled = errors.New("availability: upstream call throttled")
)

// Guard protege a borda de saída para a Peek: um semáforo limita as
// chamadas em voo e um token bucket por atividade (x/time/rate) limita a
// taxa. Guard nil desliga as duas proteções.
type Guard struct {
	sem            chan struct{}
	acquireTimeout time.Duration

	mu           sync.Mutex
	buckets      map[string]*guardEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type guardEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type GuardOption func(*Guard)

// WithAcquireTimeout limita a espera por uma vaga de chamada em voo.
// Zero espera só até o contexto da requisição cair.
func WithAcquireTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.acquireTimeout = d }
}

func WithIdleTTL(d time.Duration) GuardOption {
	return func(g *Guard) { g.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) GuardOption {
	return func(g *Guard) { g.cleanupEvery = d }
}

// NewGuard cria o guard. maxInflight <= 0 desliga o semáforo; rps <= 0
// desliga o token bucket por atividade.
func NewGuard(maxInflight int, rps float64, burst int, opts ...GuardOption) *Guard {
	g := &Guard{
		buckets:      make(map[string]*guardEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	if maxInflight > 0 {
		g.sem = make(chan struct{}, maxInflight)
	}
	for _, opt := range opts {
		opt(g)
	}
	// burst zero com rps ativo travaria tudo
	if g.rps > 0 && g.burst < 1 {
		g.burst = 1
	}
	return g
}

// Acquire reserva uma vaga de chamada em voo. Quando ok é true, o release
// retornado devolve a vaga e precisa ser chamado.
func (g *Guard) Acquire(ctx context.Context) (func(), bool) {
	if g == nil || g.sem == nil {
		return func() {}, true
	}
	if g.acquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.acquireTimeout)
		defer cancel()
	}
	select {
	case g.sem <- struct{}{}:
		return func() { <-g.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// Allow consome um token do bucket da atividade, sem bloquear.
func (g *Guard) Allow(activityID string) bool {
	if g == nil || g.rps <= 0 {
		return true
	}
	return g.bucket(activityID).Allow()
}

func (g *Guard) bucket(activityID string) *rate.Limiter {
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if ent, ok := g.buckets[activityID]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(g.rps, g.burst)
	g.buckets[activityID] = &guardEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup remove buckets de atividades paradas há mais de idleTTL.
func (g *Guard) Cleanup() {
	cutoff := time.Now().Add(-g.idleTTL)

	g.mu.Lock()
	defer g.mu.Unlock()

	for k, ent := range g.buckets {
		if ent.lastSeen.Before(cutoff) {
			delete(g.buckets, k)
		}
	}
}

// StartJanitor inicia uma goroutine que roda Cleanup periodicamente.
// Pare cancelando o contexto.
func (g *Guard) StartJanitor(ctx context.Context) {
	if g == nil || g.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(g.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Cleanup()
			}
		}
	}()
}
