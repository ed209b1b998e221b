package cmd

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"

	"github.com/saheelsapovadia/dopamine-detox-backend/internal/cache"
	config "github.com/saheelsapovadia/dopamine-detox-backend/internal/configs"
	httpapi "github.com/saheelsapovadia/dopamine-detox-backend/internal/http"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/queue"
	repository "github.com/saheelsapovadia/dopamine-detox-backend/internal/repositories"
	"github.com/saheelsapovadia/dopamine-detox-backend/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Starts the task API, the cache sync worker and the maintenance job",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println(".env file not found, using environment variables")
		}

		cfg := config.Load()
		database := config.NewDatabaseClient(cfg.DatabaseDSN)
		redisClient := config.NewRedisClient(cfg.RedisAddr)
		defer redisClient.Close()

		taskRepo := repository.NewTaskRepository(database)
		taskCache := cache.NewRedisTaskCache(redisClient, cfg.CacheTTLSeconds)
		syncQueue := queue.NewRedisSyncQueue(redisClient, queue.RedisSyncQueueOptions{
			Stream:      cfg.SyncStreamKey,
			DLQ:         cfg.SyncDLQKey,
			Group:       cfg.SyncGroup,
			Consumer:    cfg.SyncConsumer,
			MaxLen:      cfg.SyncStreamMaxLen,
			DLQMaxLen:   cfg.DLQMaxLen,
			BlockMillis: cfg.SyncBlockMillis,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		worker := services.NewSyncWorker(syncQueue, taskRepo, cfg.SyncMaxRetries, cfg.SyncBatchSize)
		if err := worker.Start(ctx); err != nil {
			return err
		}

		maintenance := services.NewMaintenanceService(syncQueue, cfg.MaintenanceSpec)
		if err := maintenance.Start(); err != nil {
			return err
		}

		taskService := services.NewTaskService(taskRepo, taskCache, syncQueue)

		e := echo.New()
		handler := httpapi.NewHandler(taskService)
		httpapi.Register(e, handler, cfg.RateLimit)

		go func() {
			log.Printf("HTTP server listening on %s", cfg.AppURL)
			if err := e.Start(cfg.AppURL); err != nil {
				log.Printf("server stopped: %v", err)
			}
		}()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)

		worker.Stop(shutdownCtx)
		maintenance.Stop()

		log.Println("HTTP server and sync worker shut down gracefully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
