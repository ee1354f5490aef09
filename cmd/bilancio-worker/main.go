package main

import (
	"context"
	"errors"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/lock"
	"bilancio/internal/log"
	"bilancio/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	logger.Info("Starting bilancio-worker")

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}

	app, err := cli.NewApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", log.FieldError, err.Error())
		os.Exit(1)
	}
	client, ok := app.Backend.Publisher.(*amqp.Client)
	if !ok {
		logger.Error("AMQP client unavailable", "url_set", cfg.AMQPURL != "")
		_ = app.Close()
		os.Exit(1)
	}

	recalc := worker.NewRecalcWorker(app.Aggregation, app.Backend.Reports, lock.NewDebounceLock(nil, cfg.RecalcDebounce), logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		recalc.Wait()
		if err := app.Close(); err != nil {
			logger.Error("Failed to release backend", log.FieldError, err.Error())
		}
	})

	// Catch up on anything appended while the worker was down.
	logger.Info("Performing startup recalculation")
	if err := recalc.Recalculate(ctx); err != nil {
		logger.Error("Startup recalculation failed", log.FieldError, err.Error())
	}

	go func() {
		err := client.ConsumeJournalAppended(ctx, recalc.HandleJournalAppended)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err.Error())
		}
	}()

	if cfg.RecalcInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.RecalcInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := recalc.Trigger(ctx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Error("Periodic recalculation failed", log.FieldError, err.Error())
					}
				}
			}
		}()
	}

	logger.Info("Worker started, consuming journal messages",
		"queue", cfg.AMQPQueue,
		"debounce", cfg.RecalcDebounce.String(),
		"interval", cfg.RecalcInterval.String())
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
