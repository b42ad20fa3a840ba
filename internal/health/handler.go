package health

import (
	"context"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	healthy        = "healthy"
	unhealthy      = "unhealthy"

	defaultTimeout = 2 * time.Second
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RedisChecker adapts redis.Client to Checker interface.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Handler handles health check operations.
type Handler struct {
	checkers map[string]Checker
	timeout  time.Duration
}

// NewHandler creates a health handler reporting on each named dependency.
func NewHandler(checkers map[string]Checker) *Handler {
	return &Handler{checkers: checkers, timeout: defaultTimeout}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// Check pings every dependency concurrently. Any failure degrades the overall status.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	resp := &Response{}
	resp.Body.Status = statusOK
	resp.Body.Checks = make(map[string]string, len(h.checkers))

	for name, checker := range h.checkers {
		wg.Go(func() {
			state := healthy
			if err := checker.Ping(ctx); err != nil {
				state = unhealthy
			}

			mu.Lock()
			defer mu.Unlock()

			resp.Body.Checks[name] = state
			if state == unhealthy {
				resp.Body.Status = statusDegraded
			}
		})
	}

	wg.Wait()

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Report dependency health",
		Tags:        []string{"Health"},
	}, h.Check)
}
