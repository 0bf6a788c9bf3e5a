package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/adapters/render"
	"github.com/samirrijal/livemap/internal/core/usecases"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/internal/pkg/logging"
	"github.com/samirrijal/livemap/internal/workflows"
)

func main() {
	cfg, err := config.Load("livemap-exporter")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Telemetry.ServiceName, cfg.Logging.Level, cfg.Logging.Format)

	app := &cli.App{
		Name:  "exporter",
		Usage: "Regenerates the static stop, shape and parking collections",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "route-type",
				Value: cfg.Map.RouteType,
				Usage: "route type selector, e.g. COMMUTER_RAIL",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "run the Temporal worker executing export workflows",
				Action: func(c *cli.Context) error {
					return runWorker(c.Context, cfg)
				},
			},
			{
				Name:  "schedule",
				Usage: "start the cron workflow (temporal.cron)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cron", Value: cfg.Temporal.Cron, Usage: "cron schedule"},
				},
				Action: func(c *cli.Context) error {
					return startWorkflow(c.Context, cfg, c.String("cron"), c.String("route-type"), false)
				},
			},
			{
				Name:  "trigger",
				Usage: "run the export workflow once and wait for it",
				Action: func(c *cli.Context) error {
					return startWorkflow(c.Context, cfg, "", c.String("route-type"), true)
				},
			},
			{
				Name:  "run-once",
				Usage: "export directly without Temporal",
				Action: func(c *cli.Context) error {
					return runOnce(c.Context, cfg, c.String("route-type"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func dialTemporal(cfg *config.Config) (client.Client, error) {
	return client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slog.Default(),
	})
}

// newActivities connects the stores the activities need. The returned
// function releases them.
func newActivities(ctx context.Context, cfg *config.Config) (*workflows.ExportActivities, func(), error) {
	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{MaxConns: 4})
	if err != nil {
		return nil, nil, fmt.Errorf("db: %w", err)
	}
	acts := &workflows.ExportActivities{
		Export:    usecases.NewExportService(postgres.NewStaticRepo(db), render.StaticPopups{}),
		OutputDir: cfg.ExportDir(),
	}

	closers := []func(){db.Close}
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, exports will not be announced", "error", err)
	} else {
		acts.Notifier = pub
		closers = append(closers, pub.Close)
	}
	return acts, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	acts, closeAll, err := newActivities(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	c, err := dialTemporal(cfg)
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w, acts)

	slog.Info("export worker started", "task_queue", cfg.Temporal.TaskQueue, "output_dir", acts.OutputDir)
	return w.Run(worker.InterruptCh())
}

func startWorkflow(ctx context.Context, cfg *config.Config, cron, routeType string, wait bool) error {
	c, err := dialTemporal(cfg)
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := workflows.StartStaticExport(ctx, c, cfg.Temporal.TaskQueue, cron, workflows.StaticExportInput{RouteType: routeType})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("export workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID(), "cron", cron)
	if !wait {
		return nil
	}

	var res workflows.StaticExportResult
	if err := run.Get(ctx, &res); err != nil {
		return err
	}
	for _, l := range res.Layers {
		slog.Info("exported", "layer", l.Layer, "path", l.Path, "features", l.Features)
	}
	return nil
}

func runOnce(ctx context.Context, cfg *config.Config, routeType string) error {
	acts, closeAll, err := newActivities(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAll()

	_, err = workflows.ExportNow(ctx, acts, routeType)
	return err
}
