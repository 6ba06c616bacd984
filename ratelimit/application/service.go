package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"availability-proxy/ratelimit/domain"
)

// Padrões de configuração. 30 requisições por hora é o limite histórico do
// consumo da Peek e segue sendo o default quando nada é configurado.
const (
	DefaultMaxRequests = 30
	DefaultWindow      = time.Hour
	DefaultNamespace   = "peek_api"
	DefaultIdentifier  = "default"
	DefaultOpTimeout   = 2 * time.Second
)

// keyPrefix prefixa toda chave de janela no store.
const keyPrefix = "rate_limit"

// expiryBuffer mantém a chave viva um pouco além da janela, para o membro
// mais antigo ainda existir quando o reset for estimado.
const expiryBuffer = time.Minute

// Config parametriza o Service. Campos zerados assumem os padrões acima.
type Config struct {
	// MaxRequests é o teto de admissões dentro da janela.
	MaxRequests int

	// Window é o tamanho da janela deslizante.
	Window time.Duration

	// Namespace separa as chaves de consumidores diferentes que dividem o
	// mesmo Redis. Entra na chave: rate_limit:<namespace>:<identifier>.
	Namespace string

	// OpTimeout limita a duração total de uma checagem contra o store.
	OpTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRequests == 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	return c
}

// Validate rejeita configurações sem sentido para a janela deslizante.
func (c Config) Validate() error {
	if c.MaxRequests < 1 {
		return fmt.Errorf("rate limit: max requests deve ser >= 1, veio %d", c.MaxRequests)
	}
	if c.Window < time.Second {
		return fmt.Errorf("rate limit: janela deve ser >= 1s, veio %s", c.Window)
	}
	return nil
}

// Service decide admissões por janela deslizante: cada admissão vira um
// membro em um sorted set por identificador, com score = timestamp em
// segundos. A cada checagem os membros fora da janela são expurgados, o que
// sobrou é contado e a requisição só entra se a contagem estiver abaixo do
// limite.
//
// A checagem não é atômica (conta e depois insere). Sob concorrência no
// mesmo identificador o limite pode ser estourado por uma margem pequena; é
// uma aproximação aceita, não um limiter exato.
//
// Política de falha: erro do store nunca chega ao caller. A decisão sai
// permissiva com o campo Error preenchido (fail-open). Sem store nenhum o
// Service opera permanentemente em modo desabilitado, também permissivo.
type Service struct {
	cfg    Config
	store  domain.CounterStore
	logger zerolog.Logger
	now    func() time.Time
}

// NewService valida a configuração e monta o serviço. store pode ser nil;
// nesse caso o rate limit fica desabilitado e toda checagem permite.
func NewService(cfg Config, store domain.CounterStore, logger zerolog.Logger) (*Service, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		cfg:    cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Enabled informa se existe um store por trás do serviço.
func (s *Service) Enabled() bool {
	return s.store != nil
}

// IsAllowed verifica se o identificador ainda tem orçamento na janela e, se
// tiver, registra a admissão. Nunca retorna erro: qualquer falha de store
// vira uma decisão permissiva com o campo Error preenchido.
//
// Identificador vazio cai no DefaultIdentifier, ou seja, todo tráfego
// anônimo divide uma única janela.
func (s *Service) IsAllowed(ctx context.Context, identifier string) domain.Decision {
	if identifier == "" {
		identifier = DefaultIdentifier
	}

	windowSec := int(s.cfg.Window / time.Second)

	if s.store == nil {
		return domain.Decision{
			Allowed:       true,
			Limit:         s.cfg.MaxRequests,
			WindowSeconds: windowSec,
			Note:          "rate limiting disabled (no counter store configured)",
		}
	}

	opCtx := ctx
	if s.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.cfg.OpTimeout)
		defer cancel()
	}

	key := s.key(identifier)
	now := unixSeconds(s.now())
	windowStart := now - s.cfg.Window.Seconds()

	if err := s.store.RemoveByScoreRange(opCtx, key, 0, windowStart); err != nil {
		return s.failOpen(identifier, "purge expired entries", err)
	}

	count, err := s.store.Count(opCtx, key)
	if err != nil {
		return s.failOpen(identifier, "count window entries", err)
	}

	if count >= int64(s.cfg.MaxRequests) {
		// estima o reset pelo membro mais antigo ainda dentro da janela
		resetIn := windowSec
		oldest, err := s.store.Range(opCtx, key, 0, 0)
		if err != nil {
			return s.failOpen(identifier, "read oldest entry", err)
		}
		if len(oldest) > 0 {
			resetIn = int(oldest[0].Score + s.cfg.Window.Seconds() - now)
			if resetIn < 0 {
				resetIn = 0
			}
		}
		s.logger.Debug().
			Str("identifier", identifier).
			Int64("count", count).
			Int("reset_in_seconds", resetIn).
			Msg("rate limit exceeded")
		return domain.Decision{
			Allowed:        false,
			Remaining:      intp(0),
			Limit:          s.cfg.MaxRequests,
			WindowSeconds:  windowSec,
			ResetInSeconds: intp(resetIn),
		}
	}

	if err := s.store.Add(opCtx, key, formatMember(now), now); err != nil {
		return s.failOpen(identifier, "record admission", err)
	}
	if err := s.store.Expire(opCtx, key, s.cfg.Window+expiryBuffer); err != nil {
		return s.failOpen(identifier, "refresh key expiry", err)
	}

	remaining := s.cfg.MaxRequests - int(count) - 1
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{
		Allowed:        true,
		Remaining:      intp(remaining),
		Limit:          s.cfg.MaxRequests,
		WindowSeconds:  windowSec,
		ResetInSeconds: intp(windowSec),
	}
}

// Reset apaga a janela do identificador. Retorna true quando a janela foi
// removida; false quando o serviço está desabilitado ou o store falhou.
func (s *Service) Reset(ctx context.Context, identifier string) bool {
	if identifier == "" {
		identifier = DefaultIdentifier
	}
	if s.store == nil {
		return false
	}

	opCtx := ctx
	if s.cfg.OpTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.cfg.OpTimeout)
		defer cancel()
	}

	if err := s.store.Delete(opCtx, s.key(identifier)); err != nil {
		s.logger.Error().Err(err).Str("identifier", identifier).Msg("failed to reset rate limit window")
		return false
	}
	return true
}

// failOpen transforma erro de store em decisão permissiva. Indisponibilidade
// do Redis não pode virar negação de serviço: a requisição passa e a falha
// fica visível no log e no campo Error da decisão.
func (s *Service) failOpen(identifier, op string, err error) domain.Decision {
	s.logger.Warn().
		Err(err).
		Str("identifier", identifier).
		Str("op", op).
		Msg("counter store error; failing open")
	return domain.Decision{Allowed: true, Error: err.Error()}
}

func (s *Service) key(identifier string) string {
	return keyPrefix + ":" + s.cfg.Namespace + ":" + identifier
}

// unixSeconds converte para segundos fracionários desde a epoch, o formato
// dos scores no store.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// formatMember gera um membro único por admissão. O sufixo aleatório
// importa: membro repetido em um sorted set vira update, e duas admissões no
// mesmo instante contariam como uma só.
func formatMember(score float64) string {
	return strconv.FormatFloat(score, 'f', 6, 64) + ":" + uuid.NewString()[:8]
}

func intp(v int) *int {
	return &v
}
