package usecase

import (
	"context"
	"sync"
	"time"

	"OptionScan/internal/domain/models"
	domrepo "OptionScan/internal/domain/repository"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// HealthService probes optional infrastructure. Failing checks degrade the
// status but the service keeps answering, since every source has a fallback.
type HealthService struct {
	version string
	checks  []domrepo.HealthChecker
	timeout time.Duration
	now     func() time.Time
}

func NewHealthService(version string, checks ...domrepo.HealthChecker) *HealthService {
	return &HealthService{version: version, checks: checks, timeout: 2 * time.Second, now: time.Now}
}

func (s *HealthService) Check(ctx context.Context) models.HealthResponse {
	resp := models.HealthResponse{
		Status:    StatusOK,
		Version:   s.version,
		Timestamp: s.now().UTC(),
	}
	if len(s.checks) == 0 {
		return resp
	}

	resp.Checks = make(map[string]string, len(s.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, hc := range s.checks {
		wg.Add(1)
		go func(hc domrepo.HealthChecker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			err := hc.Health(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				resp.Checks[hc.Name()] = err.Error()
				resp.Status = StatusDegraded
				return
			}
			resp.Checks[hc.Name()] = StatusOK
		}(hc)
	}
	wg.Wait()
	return resp
}

// CheckFunc adapts a probe function to a HealthChecker.
type CheckFunc struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (c CheckFunc) Name() string                     { return c.Label }
func (c CheckFunc) Health(ctx context.Context) error { return c.Fn(ctx) }
