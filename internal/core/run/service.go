// Package run keeps crawl run status in redis for the control plane.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"oilcatalog/internal/core/pipeline"
	rds "oilcatalog/internal/platform/redis"
)

// Service implements pipeline.Tracker on top of redis.
type Service struct{ redis *rds.Service }

var _ pipeline.Tracker = (*Service)(nil)

func NewService(redis *rds.Service) *Service { return &Service{redis: redis} }

func key(id string) string { return "run:" + id }

func ttl(s Status) time.Duration {
	if s == StatusPending || s == StatusProcessing {
		return 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	var r Run
	if err := s.redis.CacheGet(ctx, key(id), &r); err != nil {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return &r, nil
}

// update loads the run, applies fn, stores it and publishes an update event.
func (s *Service) update(ctx context.Context, id string, fn func(r *Run)) error {
	var r Run
	_ = s.redis.CacheGet(ctx, key(id), &r)
	r.RunID = id
	fn(&r)
	if err := s.redis.CacheSet(ctx, key(id), r, ttl(r.Status)); err != nil {
		return err
	}
	b, _ := json.Marshal(r)
	_ = s.redis.Client().Publish(ctx, key(id), b).Err()
	return nil
}

func (s *Service) Pending(ctx context.Context, id string, req pipeline.Request) error {
	now := time.Now()
	return s.update(ctx, id, func(r *Run) {
		r.Status = StatusPending
		r.Request = req
		r.QueuedAt = &now
	})
}

func (s *Service) Start(ctx context.Context, id string, req pipeline.Request) error {
	now := time.Now()
	return s.update(ctx, id, func(r *Run) {
		r.Status = StatusProcessing
		r.Request = req
		r.StartedAt = &now
	})
}

func (s *Service) Progress(ctx context.Context, id string, state pipeline.State, stats pipeline.Stats) error {
	return s.update(ctx, id, func(r *Run) {
		r.Status = StatusProcessing
		r.State = state
		r.Stats = stats
	})
}

func (s *Service) Finish(ctx context.Context, sum pipeline.Summary) error {
	return s.update(ctx, sum.RunID, func(r *Run) {
		r.Status = statusOf(sum.State)
		r.State = sum.State
		r.Stats = sum.Stats
		r.Error = sum.Error
		r.Published = sum.Published
		finished := sum.Finished
		r.FinishedAt = &finished
		if r.StartedAt == nil {
			started := sum.Started
			r.StartedAt = &started
		}
	})
}
