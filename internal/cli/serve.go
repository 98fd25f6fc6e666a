package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"oilcatalog/internal/core/pipeline"
	"oilcatalog/internal/core/run"
	"oilcatalog/internal/health"
	rds "oilcatalog/internal/platform/redis"
	"oilcatalog/internal/platform/tasks"
	"oilcatalog/internal/server"
	"oilcatalog/internal/worker"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the queue worker and the HTTP control plane.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if err := e.cfg.RequireRedis(); err != nil {
			return err
		}
		e.log.LogInfof("starting at %s (env=%s)", e.cfg.HTTPAddr, e.cfg.AppEnv)

		redisSvc, err := rds.New(rds.Options{Addr: e.cfg.RedisAddr, Password: e.cfg.RedisPassword})
		if err != nil {
			return err
		}
		defer redisSvc.Close()

		taskClient := tasks.New(redisSvc)
		defer taskClient.Close()
		runs := run.NewService(redisSvc)

		svc := e.pipeline().
			WithTracker(runs).
			WithCache(redisSvc.PageCache(e.cfg.PageCacheTTL))

		mux := worker.NewMux()
		mux.HandleFunc(tasks.TaskTypeCrawl, svc.HandleCrawlTask)
		asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), worker.Config(tasks.QueueDefault))
		if err := asynqServer.Start(mux.Mux()); err != nil {
			return fmt.Errorf("start worker: %w", err)
		}

		app := fiber.New(fiber.Config{
			AppName:               "oilcatalog",
			DisableStartupMessage: true,
			JSONEncoder: func(v interface{}) ([]byte, error) {
				var buf bytes.Buffer
				enc := json.NewEncoder(&buf)
				enc.SetEscapeHTML(false)
				if err := enc.Encode(v); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			},
		})

		healthHandler := server.RegisterRoutes(app, server.Dependencies{
			Runs: runs,
			Enqueue: func(ctx context.Context, req pipeline.Request) (string, error) {
				return svc.Enqueue(ctx, taskClient, req, e.cfg.TaskMaxRetries)
			},
			Checks: map[string]health.Check{
				"redis": redisSvc.HealthCheck,
				"store": func(context.Context) error { return dirWritable(e.cfg.DataDir) },
			},
		})
		healthHandler.SetReady()

		go func() {
			<-cmd.Context().Done()
			e.log.LogInfo("Shutting down...")
			asynqServer.Shutdown()
			_ = app.ShutdownWithTimeout(5 * time.Second)
		}()

		if err := app.Listen(e.cfg.HTTPAddr); err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	},
}

func dirWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
