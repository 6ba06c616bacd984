// Comando operacional para zerar a janela de rate limit de um identifier
// direto no Redis, sem derrubar o proxy.
//
//	ratelimit-reset -identifier cliente-x -namespace peek_api
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"availability-proxy/ratelimit/application"
	"availability-proxy/ratelimit/infra"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	identifier := flag.String("identifier", application.DefaultIdentifier, "identifier da janela a zerar")
	namespace := flag.String("namespace", application.DefaultNamespace, "namespace das chaves no Redis")
	timeout := flag.Duration("timeout", 5*time.Second, "timeout total da operação")
	flag.Parse()

	_ = godotenv.Load()
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		logger.Fatal().Msg("REDIS_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := infra.DialCounterStore(ctx, redisURL, os.Getenv("REDIS_TOKEN"))
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = store.Close() }()

	svc, err := application.NewService(application.Config{Namespace: *namespace}, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limit config error")
	}

	if !svc.Reset(ctx, *identifier) {
		logger.Error().Str("identifier", *identifier).Msg("reset failed")
		os.Exit(1)
	}
	logger.Info().Str("identifier", *identifier).Str("namespace", *namespace).Msg("rate limit window cleared")
}
