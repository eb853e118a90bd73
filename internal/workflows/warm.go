package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/fobi-id/obsmap/internal/core/domain"
)

// WarmInput is the input for the place-name warm-up workflow.
type WarmInput struct {
	UserID   string
	Source   domain.Source
	GridSize domain.GridSize
	// MaxCells caps the number of lookups; 0 means no cap.
	MaxCells int
	// Interval spaces consecutive geocoder lookups.
	Interval time.Duration
}

// WarmResult summarises a warm-up run.
type WarmResult struct {
	Cells    int
	Resolved int
	Failed   int
}

// WarmPlaceNamesWorkflow aggregates a user's observations at one grid size
// and resolves the place name of each cell's first member into the shared
// cache, so popups open without waiting on the geocoder. Lookups are best
// effort: a failed lookup is counted, never fatal.
func WarmPlaceNamesWorkflow(ctx workflow.Context, input WarmInput) (*WarmResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting place-name warm-up", "userID", input.UserID, "gridSize", input.GridSize)

	size := input.GridSize
	if size == "" {
		size = domain.GridSmall
	}

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var anchors []domain.GeoPoint
	err := workflow.ExecuteActivity(ctx, "CellAnchors", input.UserID, input.Source, size, input.MaxCells).Get(ctx, &anchors)
	if err != nil {
		return nil, err
	}

	res := &WarmResult{Cells: len(anchors)}
	for i, p := range anchors {
		if i > 0 && input.Interval > 0 {
			if err := workflow.Sleep(ctx, input.Interval); err != nil {
				return res, err
			}
		}
		var ok bool
		if err := workflow.ExecuteActivity(ctx, "WarmPlaceName", p.Lat, p.Lon).Get(ctx, &ok); err != nil || !ok {
			res.Failed++
			continue
		}
		res.Resolved++
	}

	logger.Info("Place-name warm-up finished", "cells", res.Cells, "resolved", res.Resolved, "failed", res.Failed)
	return res, nil
}
