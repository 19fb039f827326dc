package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/authrelay"
	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/adapters/tokenizer"
	"github.com/layer-3/authrelay/config"
	"github.com/layer-3/authrelay/internal/log"
	"github.com/layer-3/authrelay/service"
	transport "github.com/layer-3/authrelay/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := log.New("info", false)
		l.Fatal().Err(err).Msg("failed to load config")
	}

	logger := log.New(cfg.LogLevel, cfg.LogPretty)
	mainLog := logger.Module("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse Redis URL and create client
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to parse redis url")
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		mainLog.Fatal().Err(err).Str("url", cfg.RedisURL).Msg("redis is unreachable")
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		logger.Module("watermill").Watermill(),
	)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to create redis publisher")
	}
	defer publisher.Close()

	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        redisClient,
			ConsumerGroup: cfg.Name,
		},
		logger.Module("watermill").Watermill(),
	)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to create redis subscriber")
	}
	defer subscriber.Close()

	client, err := authrelay.NewClient(ctx, authrelay.Options{
		Name:            cfg.Name,
		ProjectID:       cfg.ProjectID,
		Metadata:        cfg.Metadata,
		Publisher:       publisher,
		Subscriber:      subscriber,
		Store:           store.NewRedisStore(redisClient, cfg.Name),
		ExpiryBounds:    cfg.RequestExpiry,
		ExpirerInterval: cfg.ExpirerInterval,
		RPCURL:          cfg.RPCURL,
		Logger:          logger,
	})
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to start auth client")
	}
	defer client.Close()

	// Sessions do not outlive the process, so an ephemeral key is enough
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		mainLog.Fatal().Err(err).Msg("failed to generate signing key")
	}
	authService := service.NewAuthService(client, tokenizer.NewJWTTokenizer(signKey, cfg.Name), cfg.SessionTTL)

	router := transport.SetupRouter(client, authService, client.Metrics().WithProcessCollectors().Handler(), logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			mainLog.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	mainLog.Info().Str("addr", cfg.HTTPAddr).Str("name", cfg.Name).Msg("starting server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mainLog.Error().Err(err).Msg("server stopped")
	}
}
