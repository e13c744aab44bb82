// Package health serves /livez and /readyz from checks that run in the
// background. A check flips to unhealthy only after FailureThreshold
// consecutive failures and back after SuccessThreshold consecutive passes.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Default thresholds for registered checks.
const (
	FailureThreshold = 3
	SuccessThreshold = 1
)

type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	return &probe{name: name, timeout: timeout, fn: fn, healthy: true}
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.passes = 0
		if p.fails++; p.fails >= FailureThreshold {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	if p.passes++; p.passes >= SuccessThreshold {
		p.healthy = true
	}
}

// failure returns the reason p is unhealthy, or "" when it is healthy.
func (p *probe) failure() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.healthy:
		return ""
	case p.lastErr != nil:
		return p.lastErr.Error()
	default:
		return "check is unhealthy"
	}
}

// Health holds the liveness and readiness checks of the service. A new
// Health is not ready until SetReady(true).
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	stop      context.CancelFunc
}

// New creates an empty Health.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a check that decides whether the process should
// be restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a check that decides whether the service may
// receive traffic.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, fn))
}

func (h *Health) probes() (live, ready []*probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.liveness), slices.Clone(h.readiness)
}

// Start runs every registered check now and then every interval until Stop
// is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.stop = cancel
	h.mu.Unlock()

	live, ready := h.probes()
	for _, p := range append(live, ready...) {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.run(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop halts the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady marks the service as ready or draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	_, ready := h.probes()
	return h.ready.Load() && len(failures(ready)) == 0
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	live, _ := h.probes()
	writeStatus(w, failures(live))
}

// ReadyEndpoint serves /readyz. A service not marked ready reports the
// "_readiness" failure.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	_, ready := h.probes()
	failed := failures(ready)
	if !h.ready.Load() {
		failed = append(failed, [2]string{"_readiness", "service is not ready"})
	}
	writeStatus(w, failed)
}

// failures lists (name, reason) pairs of unhealthy probes in registration
// order.
func failures(probes []*probe) [][2]string {
	var out [][2]string
	for _, p := range probes {
		if reason := p.failure(); reason != "" {
			out = append(out, [2]string{p.name, reason})
		}
	}
	return out
}

// writeStatus writes {"status":"ok"} with 200, or
// {"status":"unhealthy","checks":{...}} with 503.
func writeStatus(w http.ResponseWriter, failed [][2]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")
		e.FieldStart("checks")
		e.ObjStart()
		for _, f := range failed {
			e.FieldStart(f[0])
			e.Str(f[1])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
