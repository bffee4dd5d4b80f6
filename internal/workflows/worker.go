package workflows

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// NewWorker builds a worker on the pipeline task queue with every workflow
// and activity registered. Activity concurrency stays low; the real
// throughput bound is the AI provider's rate limit, not the worker.
func NewWorker(c client.Client, taskQueue string, a *Activities) worker.Worker {
	w := worker.New(c, taskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     4,
		MaxConcurrentWorkflowTaskExecutionSize: 8,
	})
	Register(w, a)
	return w
}
