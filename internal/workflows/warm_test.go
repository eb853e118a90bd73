package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/fobi-id/obsmap/internal/core/domain"
	"github.com/fobi-id/obsmap/internal/core/geocode"
	"github.com/fobi-id/obsmap/internal/core/grid"
)

type stubLevels struct {
	points []domain.Observation
	err    error
}

func (s *stubLevels) LevelSet(ctx context.Context, userID string, src domain.Source) (domain.GridLevelSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	return grid.BuildLevelSet(s.points), nil
}

type stubResolver struct {
	fail map[float64]bool
}

func (s *stubResolver) Resolve(ctx context.Context, lat, lon float64) string {
	if s.fail[lat] {
		return geocode.Fallback(lat, lon)
	}
	return "Somewhere"
}

func point(lat, lon float64) domain.Observation {
	return domain.Observation{ID: "fobi_x", Source: domain.SourceFOBI, Latitude: &lat, Longitude: &lon}
}

func TestWarmPlaceNamesWorkflow(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterWorkflow(WarmPlaceNamesWorkflow)
	env.RegisterActivity(&WarmActivities{
		Levels: &stubLevels{points: []domain.Observation{
			point(-7.795, 110.369),
			point(-7.796, 110.368), // same small cell as the first
			point(-6.2, 106.8),
			point(-8.65, 115.2),
		}},
		Resolver: &stubResolver{fail: map[float64]bool{-8.65: true}},
	})

	env.ExecuteWorkflow(WarmPlaceNamesWorkflow, WarmInput{UserID: "42", GridSize: domain.GridSmall, Interval: time.Second})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res WarmResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Cells != 3 || res.Resolved != 2 || res.Failed != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWarmPlaceNamesWorkflow_MaxCells(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterWorkflow(WarmPlaceNamesWorkflow)
	env.RegisterActivity(&WarmActivities{
		Levels:   &stubLevels{points: []domain.Observation{point(1, 1), point(2, 2), point(3, 3)}},
		Resolver: &stubResolver{},
	})

	env.ExecuteWorkflow(WarmPlaceNamesWorkflow, WarmInput{UserID: "42", GridSize: domain.GridExtraLarge, MaxCells: 2})

	var res WarmResult
	if err := env.GetWorkflowResult(&res); err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Cells != 2 || res.Resolved != 2 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestWarmPlaceNamesWorkflow_LevelSetError(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	env.RegisterWorkflow(WarmPlaceNamesWorkflow)
	env.RegisterActivity(&WarmActivities{
		Levels:   &stubLevels{err: errors.New("db down")},
		Resolver: &stubResolver{},
	})

	env.ExecuteWorkflow(WarmPlaceNamesWorkflow, WarmInput{UserID: "42"})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
}

func TestWarmWorkflowID(t *testing.T) {
	if got := WarmWorkflowID(WarmInput{UserID: "42"}); got != "warm-place-names-42" {
		t.Errorf("got %q", got)
	}
	if got := WarmWorkflowID(WarmInput{UserID: "42", Source: domain.SourceTaxa}); got != "warm-place-names-42-taxa" {
		t.Errorf("got %q", got)
	}
}
