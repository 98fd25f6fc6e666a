package worker

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"oilcatalog/internal/logger"
)

type Mux struct {
	mux *asynq.ServeMux
	log *logger.Logger
}

func NewMux() *Mux {
	m := &Mux{mux: asynq.NewServeMux(), log: logger.New("Worker")}
	m.mux.Use(m.recoverer)
	return m
}

func (m *Mux) HandleFunc(t string, h func(ctx context.Context, task *asynq.Task) error) {
	m.mux.HandleFunc(t, h)
}

func (m *Mux) Mux() *asynq.ServeMux { return m.mux }

// recoverer turns a handler panic into a task error so the worker keeps serving.
func (m *Mux) recoverer(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.log.LogErrorf("task %s panicked: %v", t.Type(), r)
				err = fmt.Errorf("task %s panicked: %v", t.Type(), r)
			}
		}()
		return next.ProcessTask(ctx, t)
	})
}

// Config is the asynq server config for catalog runs. Concurrency stays at one
// so queued runs never interleave partition writes.
func Config(queue string) asynq.Config {
	return asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{queue: 1},
	}
}
