// Package groutine starts named goroutines. The name shows up as a pprof
// label, which makes long-lived background goroutines (connection monitors,
// schedulers, scan loops) identifiable in profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

// Go runs fn on a new goroutine labeled with name. A nil parentCtx defaults
// to context.Background().
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	go pprof.Do(parentCtx, pprof.Labels("goroutine_name", name), fn)
}
