package tasks

import (
	"errors"
	"fmt"
	"time"

	"oilcatalog/internal/platform/redis"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeCrawl = "catalog:crawl"
	QueueDefault  = "default"

	// a full-catalog crawl with polite delays takes hours
	runTimeout = 6 * time.Hour
)

var ErrDuplicateRun = errors.New("run already queued")

type Client struct{ c *asynq.Client }

func New(r *redis.Service) *Client { return &Client{c: asynq.NewClient(r.AsynqRedisOpt())} }

// Enqueue queues task under id, so one run id is never queued twice.
func (t *Client) Enqueue(task *asynq.Task, id string, maxRetries int) error {
	_, err := t.c.Enqueue(task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(id),
		asynq.MaxRetry(maxRetries),
		asynq.Timeout(runTimeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("%s: %w", id, ErrDuplicateRun)
	}
	return err
}

func (t *Client) Close() error { return t.c.Close() }
