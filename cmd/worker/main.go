package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/mailblast-backend/internal/app"
	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

// The worker consumes campaign runs from RabbitMQ and executes them.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format).WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer sqlDB.Close()

	tables, _, err := app.NewTableDecoder(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up table decoders")
	}

	executor, err := app.NewExecutor(cfg, sqlDB, tables, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build executor")
	}

	if cfg.Redis.Enabled() {
		rdb, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		go service.ListenForCancels(ctx, rdb, executor, log)
	} else {
		log.Warn().Msg("redis not configured, cancel requests will not reach this worker")
	}

	q, err := queue.NewAMQPQueue(cfg.AMQP.URL, cfg.Queue.MaxRetries, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer q.Close()

	if err := queue.StartCampaignRunSubscriber(q, cfg.Queue.Name, executor, log); err != nil {
		log.Fatal().Err(err).Msg("failed to register consumer")
	}

	log.Info().Str("topic", cfg.Queue.Name).Msg("Worker running, waiting for campaign runs...")
	<-ctx.Done()
	log.Info().Msg("worker stopping")
}
