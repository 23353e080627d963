package health

import (
	"context"
	"sync"
	"time"
)

type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type Checker interface {
	Check(ctx context.Context) CheckResult
}

// ProbeRunner answers readiness probes. Results are cached for the refresh
// interval so probe storms do not translate into dependency storms.
type ProbeRunner struct {
	interval time.Duration
	timeout  time.Duration
	checkers []Checker

	mu        sync.Mutex
	lastRun   time.Time
	lastReady bool
	lastRes   []CheckResult
}

func NewProbeRunner(interval, timeout time.Duration, checkers ...Checker) *ProbeRunner {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = interval
	}
	return &ProbeRunner{interval: interval, timeout: timeout, checkers: checkers}
}

func (p *ProbeRunner) Ready(ctx context.Context) (bool, []CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.lastRun) < p.interval && p.lastRes != nil {
		return p.lastReady, p.lastRes
	}

	results := make([]CheckResult, 0, len(p.checkers))
	ready := true
	for _, c := range p.checkers {
		checkCtx := ctx
		var cancel context.CancelFunc
		if p.timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		res := c.Check(checkCtx)
		if cancel != nil {
			cancel()
		}
		if !res.Healthy {
			ready = false
		}
		results = append(results, res)
	}

	p.lastRun = time.Now()
	p.lastReady = ready
	p.lastRes = results
	return ready, results
}

// CheckFunc adapts a plain function into a Checker.
type CheckFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

func (c CheckFunc) Check(ctx context.Context) CheckResult {
	if err := c.Fn(ctx); err != nil {
		return CheckResult{Name: c.Name, Healthy: false, Error: err.Error()}
	}
	return CheckResult{Name: c.Name, Healthy: true}
}
