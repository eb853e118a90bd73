package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// WarmWorkflowID is the workflow id of a user's warm-up run. Starting a
// run while one is in flight for the same user joins the existing run.
func WarmWorkflowID(input WarmInput) string {
	id := "warm-place-names-" + input.UserID
	if input.Source != "" {
		id += "-" + string(input.Source)
	}
	return id
}

// StartWarmUp starts WarmPlaceNamesWorkflow on the given task queue.
func StartWarmUp(ctx context.Context, c client.Client, taskQueue string, input WarmInput) (client.WorkflowRun, error) {
	if input.UserID == "" {
		return nil, fmt.Errorf("warm-up needs a user id")
	}
	opts := client.StartWorkflowOptions{
		ID:        WarmWorkflowID(input),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, WarmPlaceNamesWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("start warm-up for %s: %w", input.UserID, err)
	}
	return run, nil
}
