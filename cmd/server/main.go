package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/jackmew/ZestExchange/api"
	"github.com/jackmew/ZestExchange/config"
	"github.com/jackmew/ZestExchange/engine"
	"github.com/jackmew/ZestExchange/logging"
	"github.com/jackmew/ZestExchange/persistence"
	"github.com/jackmew/ZestExchange/stream"
	"github.com/jackmew/ZestExchange/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	log := logging.InitLogger()

	// Postgres trade history. The exchange runs without it, trades are
	// just not persisted.
	var tradeStore *persistence.TradeStore
	var tradeWriter *persistence.TradeWriter
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err == nil {
		err = db.Ping()
	}
	if err != nil {
		log.WithError(err).Warn("Postgres unavailable, trade persistence disabled")
		db = nil
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		tradeStore = persistence.NewTradeStore(db)
		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := tradeStore.EnsureSchema(schemaCtx); err != nil {
			cancel()
			log.WithError(err).Fatal("Failed to ensure trade history schema")
		}
		cancel()

		tradeWriter = persistence.NewTradeWriter(tradeStore, cfg.WriterQueueSize)
		tradeWriter.Start()
	}

	hub := websocket.NewHub()
	go hub.Run()

	// Redis market data channel. Optional as well.
	publishers := []engine.EventPublisher{hub}
	var redisPublisher *stream.RedisPublisher
	var redisClient *redis.Client
	redisPublisher, err = stream.NewRedisPublisher(&stream.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, pub/sub publishing disabled")
	} else {
		redisClient = redisPublisher.Client()
		publishers = append(publishers, redisPublisher)
	}

	var persister engine.TradePersister
	if tradeWriter != nil {
		persister = tradeWriter
	}

	engineRouter := engine.NewRouter(stream.NewMultiPublisher(publishers...), persister, cfg.ActorQueueSize)

	httpRouter := api.NewRouter(engineRouter, tradeStore, hub, redisClient)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      httpRouter,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.LogServerStarted(cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	// No new commands arrive past this point; stop actors first, then
	// flush the writer so their final trades reach Postgres.
	engineRouter.Shutdown()

	if tradeWriter != nil {
		tradeWriter.Stop()
	}
	if redisPublisher != nil {
		_ = redisPublisher.Close()
	}
	if db != nil {
		_ = db.Close()
	}

	logging.LogServerStopped()
}
