package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"oilcatalog/internal/logger"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

type HealthHandler struct {
	log       *logger.Logger
	checks    map[string]Check
	startTime time.Time
	ready     atomic.Bool
}

func NewHealthHandler(checks map[string]Check) *HealthHandler {
	return &HealthHandler{
		log:       logger.New("HealthCheck"),
		checks:    checks,
		startTime: time.Now(),
	}
}

// SetReady marks the application as ready to receive traffic
func (h *HealthHandler) SetReady() {
	h.ready.Store(true)
	h.log.LogSuccessf("Application marked as ready for traffic after %v", time.Since(h.startTime))
}

type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type OverallHealth struct {
	OverallStatus string                     `json:"overall_status"`
	Timestamp     string                     `json:"timestamp"`
	Ready         bool                       `json:"ready"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Components    map[string]ComponentStatus `json:"components"`
}

// HandleHealth runs every check concurrently; the service is healthy only when
// it is ready and every component passes.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	started := time.Now()
	ctx, cancel := context.WithTimeout(c.UserContext(), 8*time.Second)
	defer cancel()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		allOk = true
	)
	statuses := make(map[string]ComponentStatus, len(h.checks))
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			st := ComponentStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				st = ComponentStatus{Status: "error", Error: err.Error()}
				h.log.LogErrorf("Health check failed for %s after %v: %v", name, time.Since(started), err)
			}
			mu.Lock()
			statuses[name] = st
			if st.Status != "ok" {
				allOk = false
			}
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	ready := h.ready.Load()
	resp := OverallHealth{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Ready:         ready,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Components:    statuses,
	}
	switch {
	case allOk && ready:
		resp.OverallStatus = "ok"
		return c.Status(http.StatusOK).JSON(resp)
	case !ready:
		resp.OverallStatus = "starting"
	default:
		resp.OverallStatus = "error"
		h.log.LogWarnf("Health check failed after %v. Statuses: %+v", time.Since(started), statuses)
	}
	return c.Status(http.StatusServiceUnavailable).JSON(resp)
}

func HealthLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Rate limit exceeded"})
		},
	})
}
