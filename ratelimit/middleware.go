package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"availability-proxy/ratelimit/application"
	"availability-proxy/ratelimit/domain"
)

// KeyFunc extrai o identificador de rate limit da requisição.
type KeyFunc func(c *gin.Context) string

type Options struct {
	// Service toma a decisão de admissão. Nil vira passthrough.
	Service *application.Service

	// Stats recebe cada decisão (best-effort). Opcional.
	Stats domain.StatsStore

	// KeyFn escolhe o identificador. Nil agrupa tudo na janela default.
	KeyFn KeyFunc

	// AddRateLimitHeaders liga os headers X-RateLimit-* nas respostas.
	AddRateLimitHeaders bool
}

// KeyByClientIP usa o IP do cliente como identificador, uma janela por
// origem. O gin resolve X-Forwarded-For conforme os proxies confiáveis do
// engine.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string {
		if ip := c.ClientIP(); ip != "" {
			return ip
		}
		return "unknown"
	}
}

// KeyByHeader usa o valor do header como identificador (ex.: X-Api-Key).
// Sem o header, a requisição cai na janela default.
func KeyByHeader(name string) KeyFunc {
	return func(c *gin.Context) string {
		return c.GetHeader(name)
	}
}

// Middleware aplica o rate limit por janela deslizante antes dos handlers
// de disponibilidade. Requisição negada recebe 429 com o payload de limite
// excedido e não chega ao handler.
func Middleware(opts Options) gin.HandlerFunc {
	if opts.KeyFn == nil {
		opts.KeyFn = func(*gin.Context) string { return application.DefaultIdentifier }
	}

	return func(c *gin.Context) {
		if opts.Service == nil {
			c.Next()
			return
		}

		identifier := opts.KeyFn(c)
		if identifier == "" {
			identifier = application.DefaultIdentifier
		}

		dec := opts.Service.IsAllowed(c.Request.Context(), identifier)

		if opts.Stats != nil {
			_ = opts.Stats.Record(c.Request.Context(), domain.StatsEvent{
				Identifier: identifier,
				Allowed:    dec.Allowed,
				Method:     c.Request.Method,
				Path:       c.Request.URL.Path,
				At:         time.Now(),
			})
		}

		if opts.AddRateLimitHeaders {
			setRateLimitHeaders(c, dec)
		}

		if !dec.Allowed {
			resetIn := 0
			if dec.ResetInSeconds != nil {
				resetIn = *dec.ResetInSeconds
			}
			remaining := 0
			if dec.Remaining != nil {
				remaining = *dec.Remaining
			}

			c.Header("Retry-After", formatInt(resetIn))
			c.Header("Cache-Control", "no-store")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":            "Rate limit exceeded",
				"message":          "Too many requests. Please try again in " + formatInt(resetIn) + " seconds.",
				"remaining":        remaining,
				"reset_in_seconds": resetIn,
			})
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders publica o estado da janela nos headers X-RateLimit-*.
// X-RateLimit-Reset carrega um timestamp Unix absoluto, não um delta.
// Remaining desconhecido (limiter desabilitado ou store com erro) não vira
// header nenhum.
func setRateLimitHeaders(c *gin.Context, dec domain.Decision) {
	if dec.Limit > 0 {
		c.Header("X-RateLimit-Limit", formatInt(dec.Limit))
	}
	if dec.Remaining != nil {
		c.Header("X-RateLimit-Remaining", formatInt(*dec.Remaining))
	}
	if dec.ResetInSeconds != nil {
		reset := time.Now().Add(time.Duration(*dec.ResetInSeconds) * time.Second).Unix()
		c.Header("X-RateLimit-Reset", formatUnix(reset))
	}
}
