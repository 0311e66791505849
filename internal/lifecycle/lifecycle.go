package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"
)

var shuttingDown atomic.Bool

// SetShuttingDown sets the drain flag. /health reports shutting-down with 503 while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// WaitForShutdown blocks until SIGINT or SIGTERM arrives or ctx is done, then sets the drain flag.
func WaitForShutdown(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	SetShuttingDown(true)
}

// Drain waits for delay while the drain flag is visible to load balancers polling /health.
// It returns early when ctx is done.
func Drain(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
