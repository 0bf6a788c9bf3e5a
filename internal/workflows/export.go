package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// StaticExportInput is the input for the static export workflow.
type StaticExportInput struct {
	RouteType string // e.g. COMMUTER_RAIL
}

// StaticExportResult lists the collections written by one run.
type StaticExportResult struct {
	RouteType string
	Layers    []LayerExport
}

// StaticExportWorkflow rebuilds the stop, shape and parking collections in
// parallel. Layers that fail keep their previous file; the others are
// still replaced and announced.
func StaticExportWorkflow(ctx workflow.Context, input StaticExportInput) (StaticExportResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting static export", "routeType", input.RouteType)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 10 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var layers []domain.LayerKind
	var futures []workflow.Future
	for _, layer := range domain.Layers {
		if usecases.StaticFile(layer) == "" {
			continue
		}
		layers = append(layers, layer)
		futures = append(futures, workflow.ExecuteActivity(ctx, "ExportLayer", ExportLayerInput{
			RouteType: input.RouteType,
			Layer:     layer,
		}))
	}

	result := StaticExportResult{RouteType: strings.ToUpper(input.RouteType)}
	var failed []string
	var firstErr error
	for i, f := range futures {
		var out LayerExport
		if err := f.Get(ctx, &out); err != nil {
			logger.Warn("layer export failed", "layer", layers[i], "error", err)
			failed = append(failed, string(layers[i]))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.Layers = append(result.Layers, out)
	}

	if len(result.Layers) > 0 {
		if err := workflow.ExecuteActivity(ctx, "NotifyExported", result).Get(ctx, nil); err != nil {
			logger.Warn("export notification failed", "error", err)
		}
	}

	if firstErr != nil {
		return result, fmt.Errorf("export %s failed: %w", strings.Join(failed, ", "), firstErr)
	}
	logger.Info("Static export finished", "layers", len(result.Layers))
	return result, nil
}

// Registry is implemented by worker.Worker and the test environment.
type Registry interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// Register adds the export workflow and its activities to a worker.
func Register(w Registry, acts *ExportActivities) {
	w.RegisterWorkflow(StaticExportWorkflow)
	w.RegisterActivity(acts)
}

// WorkflowID is the id of the export workflow of one route type. Reusing
// it keeps at most one cron schedule per route type.
func WorkflowID(routeType string) string {
	return "livemap-static-export-" + strings.ToLower(routeType)
}

// StartStaticExport starts the export workflow. A non-empty cron schedules
// it instead of running it once.
func StartStaticExport(ctx context.Context, c client.Client, taskQueue, cron string, input StaticExportInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(input.RouteType),
		TaskQueue: taskQueue,
	}
	if cron != "" {
		opts.ID += "-cron"
		opts.CronSchedule = cron
	}
	return c.ExecuteWorkflow(ctx, opts, StaticExportWorkflow, input)
}
