package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"availability-proxy/availability"
	"availability-proxy/httpapi"
	"availability-proxy/ratelimit"
	"availability-proxy/ratelimit/application"
	"availability-proxy/ratelimit/domain"
	"availability-proxy/ratelimit/infra"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	// .env é opcional; em produção as variáveis vêm do ambiente
	_ = godotenv.Load()

	logger := newLogger(getenvDefault("LOG_LEVEL", "info"))

	cfg, err := readConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis fora do ar na subida não derruba o proxy: o rate limit apenas
	// fica desabilitado (fail-open) e isso sai no log.
	var rstore *infra.RedisCounterStore
	if cfg.rateEnabled {
		if strings.TrimSpace(cfg.redisURL) == "" {
			logger.Info().Msg("REDIS_URL not set; rate limiting disabled")
		} else if rstore, err = infra.DialCounterStore(ctx, cfg.redisURL, cfg.redisToken); err != nil {
			logger.Warn().Err(err).Msg("redis unreachable; rate limiting disabled")
			rstore = nil
		} else {
			defer func() { _ = rstore.Close() }()
		}
	} else {
		logger.Info().Msg("rate limiting disabled by RATE_ENABLED=false")
	}

	var counterStore domain.CounterStore
	if rstore != nil {
		counterStore = rstore
	}

	var statsStore domain.StatsStore
	if cfg.rateStatsEnabled {
		if rstore == nil {
			logger.Warn().Msg("rate limit stats need a reachable redis; stats disabled")
		} else {
			statsStore = infra.NewRedisStatsStore(
				rstore.Client(),
				infra.WithStatsPrefix(cfg.rateStatsPrefix),
				infra.WithStatsTTL(cfg.rateStatsTTL),
				infra.WithStatsBucket(cfg.rateStatsBucket),
				infra.WithStatsTrackIdentifiers(cfg.rateStatsTrackIDs),
			)
		}
	}

	limiter, err := application.NewService(application.Config{
		MaxRequests: cfg.rateMaxRequests,
		Window:      cfg.rateWindow,
		Namespace:   cfg.rateNamespace,
	}, counterStore, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limit config error")
	}

	guard := availability.NewGuard(
		cfg.upstreamMaxInflight,
		cfg.upstreamRPS,
		cfg.upstreamBurst,
		availability.WithAcquireTimeout(cfg.upstreamAcquireTimeout),
	)
	guard.StartJanitor(ctx)

	client, err := availability.NewClient(availability.ClientConfig{
		BaseURL:      cfg.peekBaseURL,
		APIKey:       cfg.peekAPIKey,
		ActivityID:   cfg.peekActivityID,
		TicketID:     cfg.peekTicketID,
		BookingRefID: cfg.peekBookingRefID,
		UseLegacyAPI: cfg.peekUseLegacyAPI,
		Timeout:      cfg.peekTimeout,
		Guard:        guard,
		Logger:       logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("peek client config error")
	}

	var availMW []gin.HandlerFunc
	if cfg.rateEnabled {
		availMW = append(availMW, ratelimit.Middleware(ratelimit.Options{
			Service:             limiter,
			Stats:               statsStore,
			KeyFn:               keyFn(cfg),
			AddRateLimitHeaders: cfg.rateAddHeaders,
		}))
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Options{
		Fetcher:                client,
		AvailabilityMiddleware: availMW,
		CacheMaxAge:            cfg.cacheMaxAge,
		Logger:                 logger,
	})

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", cfg.listenAddr).Str("peek", cfg.peekBaseURL).Msg("availability proxy listening")
	logger.Info().
		Bool("enabled", cfg.rateEnabled && limiter.Enabled()).
		Int("max_requests", cfg.rateMaxRequests).
		Dur("window", cfg.rateWindow).
		Str("namespace", cfg.rateNamespace).
		Msg("rate limit")
	logger.Info().
		Bool("enabled", statsStore != nil).
		Str("bucket", cfg.rateStatsBucket).
		Dur("ttl", cfg.rateStatsTTL).
		Bool("track_identifiers", cfg.rateStatsTrackIDs).
		Msg("rate limit stats")
	logger.Info().
		Int("max_inflight", cfg.upstreamMaxInflight).
		Float64("rps", cfg.upstreamRPS).
		Int("burst", cfg.upstreamBurst).
		Msg("upstream guard")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}

func keyFn(cfg config) ratelimit.KeyFunc {
	switch {
	case cfg.rateKeyHeader != "":
		return ratelimit.KeyByHeader(cfg.rateKeyHeader)
	case cfg.rateKeyByIP:
		return ratelimit.KeyByClientIP()
	default:
		// nil agrupa todo o tráfego na janela default
		return nil
	}
}

type config struct {
	listenAddr string

	peekBaseURL      string
	peekAPIKey       string
	peekActivityID   string
	peekTicketID     string
	peekBookingRefID string
	peekUseLegacyAPI bool
	peekTimeout      time.Duration

	redisURL   string
	redisToken string

	rateEnabled     bool
	rateMaxRequests int
	rateWindow      time.Duration
	rateNamespace   string
	rateKeyHeader   string
	rateKeyByIP     bool
	rateAddHeaders  bool

	rateStatsEnabled  bool
	rateStatsPrefix   string
	rateStatsTTL      time.Duration
	rateStatsBucket   string
	rateStatsTrackIDs bool

	upstreamMaxInflight    int
	upstreamAcquireTimeout time.Duration
	upstreamRPS            float64
	upstreamBurst          int

	cacheMaxAge time.Duration
}

func readConfig() (config, error) {
	cfg := config{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")

	cfg.peekBaseURL = getenvDefault("PEEK_BASE_URL", availability.DefaultBaseURL)
	cfg.peekAPIKey = os.Getenv("PEEK_API_KEY")
	cfg.peekActivityID = os.Getenv("PEEK_ACTIVITY_ID")
	cfg.peekTicketID = os.Getenv("PEEK_TICKET_ID")
	cfg.peekBookingRefID = os.Getenv("PEEK_BOOKING_REFID")
	cfg.peekUseLegacyAPI = getenvBoolDefault("PEEK_USE_LEGACY_API", true)
	cfg.peekTimeout = getenvDurationDefault("PEEK_TIMEOUT", 15*time.Second)

	cfg.redisURL = os.Getenv("REDIS_URL")
	cfg.redisToken = os.Getenv("REDIS_TOKEN")

	cfg.rateEnabled = getenvBoolDefault("RATE_ENABLED", true)
	cfg.rateMaxRequests = getenvIntDefault("RATE_LIMIT_MAX_REQUESTS", application.DefaultMaxRequests)
	cfg.rateWindow = time.Duration(getenvIntDefault("RATE_LIMIT_WINDOW_SECONDS", 3600)) * time.Second
	cfg.rateNamespace = getenvDefault("RATE_LIMIT_NAMESPACE", application.DefaultNamespace)
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.rateKeyByIP = getenvBoolDefault("RATE_KEY_BY_IP", false)
	cfg.rateAddHeaders = getenvBoolDefault("ADD_RATELIMIT_HEADERS", true)

	cfg.rateStatsEnabled = getenvBoolDefault("RATE_STATS_ENABLED", false)
	cfg.rateStatsPrefix = getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	cfg.rateStatsTTL = getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour)
	cfg.rateStatsBucket = getenvDefault("RATE_STATS_BUCKET", "minute")
	cfg.rateStatsTrackIDs = getenvBoolDefault("RATE_STATS_TRACK_IDENTIFIERS", false)

	cfg.upstreamMaxInflight = getenvIntDefault("UPSTREAM_MAX_INFLIGHT", 8)
	cfg.upstreamAcquireTimeout = getenvDurationDefault("UPSTREAM_ACQUIRE_TIMEOUT", 0)
	cfg.upstreamRPS = getenvFloatDefault("UPSTREAM_RPS", 5)
	cfg.upstreamBurst = getenvIntDefault("UPSTREAM_BURST", 10)

	cfg.cacheMaxAge = getenvDurationDefault("CACHE_MAX_AGE", time.Minute)

	if cfg.peekAPIKey == "" {
		return config{}, errors.New("PEEK_API_KEY is required")
	}
	if cfg.peekActivityID == "" {
		return config{}, errors.New("PEEK_ACTIVITY_ID is required")
	}
	if cfg.peekTicketID == "" {
		return config{}, errors.New("PEEK_TICKET_ID is required")
	}
	if cfg.rateMaxRequests < 1 {
		return config{}, errors.New("RATE_LIMIT_MAX_REQUESTS must be >= 1")
	}
	if cfg.rateWindow < time.Second {
		return config{}, errors.New("RATE_LIMIT_WINDOW_SECONDS must be >= 1")
	}
	if cfg.rateStatsEnabled && strings.TrimSpace(cfg.redisURL) == "" {
		return config{}, errors.New("REDIS_URL is required when RATE_STATS_ENABLED=true")
	}
	if cfg.upstreamMaxInflight < 0 {
		return config{}, errors.New("UPSTREAM_MAX_INFLIGHT must be >= 0")
	}
	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloatDefault(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
