package worker

import (
	"context"
	"log"
	"time"

	"github.com/bobarin/storyreel/internal/models"
	"github.com/bobarin/storyreel/internal/queue"
	"golang.org/x/sync/errgroup"
)

// Worker consumes async generation jobs from the Redis queue. Each
// consumer runs jobs one at a time through its own Pipeline invocation, so
// concurrent jobs never share timing state or temp files.
type Worker struct {
	queue    *queue.Queue
	pipeline *Pipeline
}

func New(q *queue.Queue, pipeline *Pipeline) *Worker {
	return &Worker{
		queue:    q,
		pipeline: pipeline,
	}
}

// Start runs concurrency consumer loops until the context ends.
func (w *Worker) Start(ctx context.Context, concurrency int) {
	log.Printf("[Worker] Started with concurrency: %d", concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			w.consume(gctx)
			return nil
		})
	}

	g.Wait()
	log.Println("[Worker] Shutting down...")
}

func (w *Worker) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			job, err := w.queue.Dequeue(ctx, 5*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[Worker] Error dequeuing: %v", err)
				continue
			}

			if job == nil {
				continue // No job available, retry
			}

			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job *queue.Job) {
	log.Printf("[Worker] Processing job %s", job.ID)

	record := &models.JobRecord{
		ID:        job.ID,
		Status:    models.JobStatusRunning,
		CreatedAt: job.CreatedAt,
	}
	if err := w.queue.SetJobRecord(ctx, record); err != nil {
		log.Printf("[Worker] Failed to mark job running: %v", err)
	}

	result, err := w.pipeline.Run(ctx, job.Request)

	now := time.Now()
	record.FinishedAt = &now
	if err != nil {
		log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		record.Status = models.JobStatusFailed
		record.Error = err.Error()
	} else {
		log.Printf("[Worker] Job %s completed", job.ID)
		record.Status = models.JobStatusSucceeded
		record.Result = result
	}

	if err := w.queue.SetJobRecord(ctx, record); err != nil {
		log.Printf("[Worker] Failed to store job result: %v", err)
	}
}
