package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/adapters/render"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

type mockStaticRepo struct {
	shapesErr error
}

func (m *mockStaticRepo) StopsByRouteType(ctx context.Context, routeType int, at time.Time) ([]domain.Stop, error) {
	return []domain.Stop{{
		StopID:   "place-sstat",
		Name:     "South Station",
		Location: domain.GeoPoint{Lat: 42.3523, Lon: -71.0552},
		Routes:   []domain.Route{{RouteID: "CR-Worcester", LongName: "Framingham/Worcester Line", RouteType: routeType}},
	}}, nil
}

func (m *mockStaticRepo) ShapesByRouteType(ctx context.Context, routeType int) ([]domain.Shape, error) {
	if m.shapesErr != nil {
		return nil, m.shapesErr
	}
	return []domain.Shape{{
		ShapeID: "9850002",
		Route:   domain.Route{RouteID: "CR-Worcester", LongName: "Framingham/Worcester Line", Color: "80276C"},
		Points:  []domain.GeoPoint{{Lat: 42.35, Lon: -71.05}, {Lat: 42.34, Lon: -71.08}},
	}}, nil
}

func (m *mockStaticRepo) FacilitiesByRouteType(ctx context.Context, routeType int) ([]domain.Facility, error) {
	return []domain.Facility{}, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []natsadapter.StaticExported
}

func (n *recordingNotifier) PublishStaticExported(ctx context.Context, ev natsadapter.StaticExported) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func newActivities(t *testing.T, repo *mockStaticRepo, notifier ExportNotifier) *ExportActivities {
	return &ExportActivities{
		Export:    usecases.NewExportService(repo, render.StaticPopups{}),
		OutputDir: t.TempDir(),
		Notifier:  notifier,
	}
}

func TestExportLayer_WritesCollection(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts := newActivities(t, &mockStaticRepo{}, nil)
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.ExportLayer, ExportLayerInput{RouteType: "commuter_rail", Layer: domain.LayerStops})
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	var out LayerExport
	if err := val.Get(&out); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(acts.OutputDir, "COMMUTER_RAIL", "stops.json")
	if out.Path != want || out.Features != 1 {
		t.Errorf("unexpected result %+v", out)
	}

	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 || fc.Features[0].ID != "place-sstat" {
		t.Fatalf("unexpected collection %s", data)
	}
	if popup, _ := fc.Features[0].Properties["popupContent"].(string); popup == "" {
		t.Error("expected a rendered popup")
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(want))
	if len(entries) != 1 {
		t.Errorf("expected only stops.json, got %d entries", len(entries))
	}
}

func TestExportLayer_RejectsInvalidInput(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	acts := newActivities(t, &mockStaticRepo{}, nil)
	env.RegisterActivity(acts)

	if _, err := env.ExecuteActivity(acts.ExportLayer, ExportLayerInput{RouteType: "FERRYBOAT", Layer: domain.LayerStops}); err == nil {
		t.Error("expected an error for an unknown route type")
	}
	if _, err := env.ExecuteActivity(acts.ExportLayer, ExportLayerInput{RouteType: "COMMUTER_RAIL", Layer: domain.LayerVehicles}); err == nil {
		t.Error("expected an error for the vehicles layer")
	}
}

func TestStaticExportWorkflow(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	notifier := &recordingNotifier{}
	acts := newActivities(t, &mockStaticRepo{}, notifier)
	Register(env, acts)

	env.ExecuteWorkflow(StaticExportWorkflow, StaticExportInput{RouteType: "COMMUTER_RAIL"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var res StaticExportResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatal(err)
	}
	if len(res.Layers) != 3 {
		t.Fatalf("expected 3 layers, got %+v", res.Layers)
	}
	for _, file := range []string{"stops.json", "shapes.json", "park.json"} {
		if _, err := os.Stat(filepath.Join(acts.OutputDir, "COMMUTER_RAIL", file)); err != nil {
			t.Errorf("expected %s: %v", file, err)
		}
	}

	if len(notifier.events) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.RouteType != "COMMUTER_RAIL" || ev.Features["stops"] != 1 || ev.Features["parking"] != 0 {
		t.Errorf("unexpected notification %+v", ev)
	}
}

func TestStaticExportWorkflow_PartialFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	notifier := &recordingNotifier{}
	acts := newActivities(t, &mockStaticRepo{shapesErr: errors.New("relation shapes does not exist")}, notifier)
	Register(env, acts)

	env.ExecuteWorkflow(StaticExportWorkflow, StaticExportInput{RouteType: "COMMUTER_RAIL"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err == nil {
		t.Fatal("expected the shapes failure to fail the workflow")
	}
	if _, err := os.Stat(filepath.Join(acts.OutputDir, "COMMUTER_RAIL", "shapes.json")); !os.IsNotExist(err) {
		t.Errorf("shapes.json should not exist, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(acts.OutputDir, "COMMUTER_RAIL", "stops.json")); err != nil {
		t.Errorf("stops.json should still be written: %v", err)
	}
	// The layers that succeeded are still announced.
	if len(notifier.events) != 1 || len(notifier.events[0].Features) != 2 {
		t.Errorf("unexpected notifications %+v", notifier.events)
	}
}

func TestWorkflowID(t *testing.T) {
	if got := WorkflowID("COMMUTER_RAIL"); got != "livemap-static-export-commuter_rail" {
		t.Errorf("unexpected id %q", got)
	}
}

func TestExportNow(t *testing.T) {
	notifier := &recordingNotifier{}
	acts := newActivities(t, &mockStaticRepo{}, notifier)

	res, err := ExportNow(context.Background(), acts, "commuter_rail")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.RouteType != "COMMUTER_RAIL" || len(res.Layers) != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	if len(notifier.events) != 1 || notifier.events[0].Features["shapes"] != 1 {
		t.Errorf("unexpected notifications %+v", notifier.events)
	}
}
