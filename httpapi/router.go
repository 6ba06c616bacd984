package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Options liga as rotas às dependências montadas no main.
type Options struct {
	// Fetcher consulta a Peek. Obrigatório.
	Fetcher Fetcher

	// AvailabilityMiddleware roda antes das rotas de disponibilidade (na
	// prática, o rate limit). Rotas de serviço (/, /healthz) ficam de fora.
	AvailabilityMiddleware []gin.HandlerFunc

	// CacheMaxAge controla o Cache-Control das respostas de sucesso.
	// Zero desliga o header.
	CacheMaxAge time.Duration

	Logger zerolog.Logger
}

// NewRouter monta o engine gin com as rotas do proxy.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(opts.Logger))

	h := &handlers{
		fetcher:     opts.Fetcher,
		cacheMaxAge: opts.CacheMaxAge,
		logger:      opts.Logger,
	}

	r.GET("/", h.root)
	r.GET("/healthz", h.healthz)

	avail := r.Group("/", opts.AvailabilityMiddleware...)
	avail.GET("/availability/:date", h.day)
	avail.GET("/availability-range", h.dateRange)

	return r
}

// requestLogger é um log de acesso minimalista em zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
