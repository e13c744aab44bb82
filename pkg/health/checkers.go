package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than limit goroutines are running,
// which usually means a leak.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent stop-the-world GC pause exceeded limit.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("GC pause %s over %s", pause, limit)
			}
		}
		return nil
	}
}

// Pinger is implemented by connection pools such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be pinged.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}
