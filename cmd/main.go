package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawtrack/internal/adapters/mongodb"
	"pawtrack/internal/adapters/mqtt"
	"pawtrack/internal/adapters/rediscache"
	"pawtrack/internal/api"
	"pawtrack/internal/auth"
	"pawtrack/internal/config"
	"pawtrack/internal/logger"
	"pawtrack/internal/ports"
	"pawtrack/internal/tracking"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Sugar().Fatalw("failed to load config", "error", err)
	}

	baseLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "pawtrack")
	if err != nil {
		zap.NewExample().Sugar().Fatalw("failed to build logger", "error", err)
	}
	defer baseLogger.Sync()
	log := baseLogger.Sugar()

	mongoDB, err := mongodb.NewMongoDB(ctx, cfg.MongoDBURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalw("failed to connect to MongoDB", "error", err)
	}
	defer mongoDB.Close(context.Background())

	if err := mongodb.EnsureIndexes(ctx, mongoDB.Database); err != nil {
		log.Fatalw("failed to ensure indexes", "error", err)
	}

	deviceRepository := mongodb.NewDeviceRepository(mongoDB)
	telemetryRepository := mongodb.NewTelemetryRepository(mongoDB)
	dogRepository := mongodb.NewDogRepository(mongoDB)

	var liveCache ports.LiveCache
	if cfg.RedisAddr != "" {
		client := rediscache.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			log.Warnw("redis unreachable, serving live view from MongoDB only", "addr", cfg.RedisAddr, "error", err)
		} else {
			liveCache = rediscache.NewLiveCache(client, cfg.LiveCacheTTL)
			log.Infow("live cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.LiveCacheTTL)
		}
	}

	location := cfg.Location()
	registry := tracking.NewRegistry(log, deviceRepository, dogRepository)
	ingestor := tracking.NewIngestor(log, cfg.IngestAPIKey, registry, telemetryRepository, liveCache, cfg.IngestTimeout)
	services := api.Services{
		Registry: registry,
		Ingestor: ingestor,
		History:  tracking.NewHistory(log, registry, telemetryRepository, cfg.HistoryMaxLimit, cfg.QueryTimeout, location),
		Live:     tracking.NewLive(log, registry, telemetryRepository, liveCache, cfg.HistoryMaxLimit, cfg.QueryTimeout),
	}

	if cfg.MQTTBroker != "" {
		subscriber := mqtt.NewSubscriber(log, mqtt.Options{
			Broker:   cfg.MQTTBroker,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
			QoS:      1,
		}, ingestor, cfg.IngestTimeout)
		if err := subscriber.Start(); err != nil {
			log.Fatalw("failed to start MQTT subscriber", "error", err)
		}
		defer subscriber.Close()
	}

	mainAPI := api.NewAPI(log, services, auth.NewTokenVerifier(cfg.JWTSecret), location)

	server := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           mainAPI.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Listen for syscall signals for process to interrupt/quit
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		// Shutdown signal with grace period of 30 seconds
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		cancel()
	}()

	log.Infow("server listening", "addr", cfg.ServerPort, "timeZone", cfg.TimeZone)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}

	// Wait for server context to be stopped
	<-ctx.Done()
}
