// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/mailblast-backend/internal/app"
	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/controller"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/handler"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/queue"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("queue_driver", cfg.Queue.Driver).Msg("starting mailblast server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer sqlDB.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = db.OpenRedis(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("connected to Redis")
	}

	tables, uploads, err := app.NewTableDecoder(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up table decoders")
	}

	campaignRepo := &repository.CampaignRepository{DB: sqlDB}
	resultRepo := &repository.DeliveryResultRepository{DB: sqlDB}

	var (
		q         queue.Queue
		memQueue  *queue.InMemoryQueue
		canceller service.Canceller
	)

	switch cfg.Queue.Driver {
	case "amqp":
		aq, err := queue.NewAMQPQueue(cfg.AMQP.URL, cfg.Queue.MaxRetries, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer aq.Close()
		q = aq
		log.Info().Str("topic", cfg.Queue.Name).Msg("campaign runs go to cmd/worker over AMQP")

	default:
		executor, err := app.NewExecutor(cfg, sqlDB, tables, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build executor")
		}

		memQueue = queue.NewInMemoryQueue(cfg.Queue.MaxRetries, log)
		if err := queue.StartCampaignRunSubscriber(memQueue, cfg.Queue.Name, executor, log); err != nil {
			log.Fatal().Err(err).Msg("failed to subscribe executor")
		}
		q = memQueue
		canceller = &service.LocalCanceller{Executor: executor}

		if rdb != nil {
			go service.ListenForCancels(ctx, rdb, executor, log)
		}
	}

	if rdb != nil {
		canceller = &service.RedisCanceller{Client: rdb}
	}
	if canceller == nil {
		log.Warn().Msg("cancellation disabled: AMQP workers need redis to receive cancel requests")
	}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		ResultRepo:   resultRepo,
		Tables:       tables,
		Uploads:      uploads,
		Queue:        q,
		Topic:        cfg.Queue.Name,
		Canceller:    canceller,
		Log:          log.WithComponent("campaigns"),
	}

	campaignController := &controller.CampaignController{
		CampaignService: campaignService,
		Log:             log.WithComponent("http"),
	}
	campaignHandler := handler.NewCampaignHandler(campaignService, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(handler.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := sqlDB.PingContext(r.Context()); err != nil {
			handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandlerWithStats)
	r.Get("/campaigns/{id}/results", campaignHandler.GetCampaignResultsHandler)
	r.Post("/campaigns/{id}/start", campaignController.StartCampaign)
	r.Post("/campaigns/{id}/cancel", campaignController.CancelCampaign)
	r.Post("/campaigns/{id}/preview", campaignController.PersonalizedPreview)

	// Tables and templates
	r.Post("/uploads", campaignHandler.UploadTableHandler)
	r.Post("/tables/preview", campaignHandler.PreviewTableHandler)
	r.Post("/templates/tags", campaignHandler.ExtractTagsHandler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("🚀 Server running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if memQueue != nil {
		log.Info().Msg("waiting for in-process campaign runs to finish")
		memQueue.Wait()
	}

	log.Info().Msg("server stopped")
}
