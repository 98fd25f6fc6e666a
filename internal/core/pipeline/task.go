package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"oilcatalog/internal/platform/tasks"
)

// Enqueuer puts tasks on the queue.
type Enqueuer interface {
	Enqueue(task *asynq.Task, id string, maxRetries int) error
}

type TaskPayload struct {
	Request Request `json:"request"`
}

// Enqueue records a pending run and queues it; the returned id is the run id.
func (s *Service) Enqueue(ctx context.Context, q Enqueuer, req Request, maxRetries int) (string, error) {
	if _, err := s.resolve(req.Categories); err != nil {
		return "", err
	}
	if req.RunID == "" {
		req.RunID = uuid.New().String()
	}
	payload, err := json.Marshal(TaskPayload{Request: req})
	if err != nil {
		return "", err
	}
	if s.tracker != nil {
		if err := s.tracker.Pending(ctx, req.RunID, req); err != nil {
			return "", err
		}
	}
	if err := q.Enqueue(asynq.NewTask(tasks.TaskTypeCrawl, payload), req.RunID, maxRetries); err != nil {
		return "", fmt.Errorf("enqueue run %s: %w", req.RunID, err)
	}
	s.log.LogInfof("enqueued run %s for %v from page %d", req.RunID, req.Categories, req.StartPage)
	return req.RunID, nil
}

// HandleCrawlTask is the asynq handler for queued runs. Per-item failures are
// already absorbed by Run, so any error here is worth a retry.
func (s *Service) HandleCrawlTask(ctx context.Context, task *asynq.Task) error {
	var p TaskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	s.log.LogInfof("processing run %s", p.Request.RunID)
	_, err := s.Run(ctx, p.Request)
	return err
}
