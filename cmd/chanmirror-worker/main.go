package main

import (
	"context"
	"os"
	"strconv"

	"github.com/dukex/chanmirror/pkg/cmd"
	"github.com/dukex/chanmirror/pkg/log"
	"github.com/dukex/chanmirror/pkg/metrics"
	"github.com/dukex/chanmirror/pkg/mirror"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"
)

const defaultMetricsPort = 9092

func main() {
	cmd.LoadDotEnv()

	command := &cli.Command{
		Name:                  "chanmirror-worker",
		EnableShellCompletion: true,
		Usage:                 "Run mirror passes requested on the event bus",
		Flags: cmd.Join(
			[]cli.Flag{
				&cli.StringFlag{
					Name:    "worker-id",
					Aliases: []string{"id"},
					Usage:   "Custom worker ID (auto-generated if not provided)",
					Sources: cli.EnvVars("WORKER_ID"),
				},
				&cli.IntFlag{
					Name:    "metrics-port",
					Usage:   "Port serving /metrics and /livez, 0 disables it",
					Value:   defaultMetricsPort,
					Sources: cli.EnvVars("METRICS_PORT"),
				},
				&cli.StringFlag{
					Name:    "redis-url",
					Usage:   "Redis URL for run locks shared between workers",
					Sources: cli.EnvVars("REDIS_URL"),
				},
				cmd.DatabaseFlag(),
				cmd.TracingFlag(),
			},
			cmd.EventBusFlags(),
			cmd.AdapterFlags(),
			cmd.LogFlags(),
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("chanmirror-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing chanmirror worker")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := persistence.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), "chanmirror-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			locker, err := cmd.NewLocker(ctx, logger, command.String("redis-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := locker.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close locker", "error", err)
				}
			}()

			engine := mirror.NewEngine(
				persistence,
				cmd.NewSourceFactory(command, logger),
				cmd.NewTargetFactory(command, logger),
				logger,
				mirror.Options{
					FetchLimit: command.Int("fetch-limit"),
					Tracer:     cmd.NewTracer(ctx, logger, command.Bool("otel-enabled"), "chanmirror-worker"),
				},
			)

			recorder := metrics.NewRecorder()

			if port := command.Int("metrics-port"); port > 0 {
				app := fiber.New()
				app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
				app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

				go func() {
					err := app.Listen(":" + strconv.Itoa(port))
					if err != nil {
						logger.ErrorContext(ctx, "Metrics server stopped", "error", err)
					}
				}()

				defer func() {
					err := app.Shutdown()
					if err != nil {
						logger.ErrorContext(ctx, "Failed to stop metrics server", "error", err)
					}
				}()
			}

			worker := NewWorkerManager(workerID, engine, locker, recorder, eventBus, logger)

			return worker.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		log.WithModule("chanmirror-worker").Error("chanmirror-worker failed", "error", err)
		os.Exit(1)
	}
}
