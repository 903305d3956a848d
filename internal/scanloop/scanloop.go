// Package scanloop runs a function periodically until cancelled.
package scanloop

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/benbjohnson/clock"
)

// Run executes fn at a jittered interval until ctx is cancelled.
// The interval is: minInterval + random([0, jitterRange)).
//
// The next interval starts after fn returns, so runs never overlap. A run
// that is in progress when ctx is cancelled completes before Run returns.
func Run(ctx context.Context, clk clock.Clock, minInterval, jitterRange time.Duration, fn func(context.Context)) {
	if clk == nil {
		clk = clock.New()
	}
	if minInterval <= 0 {
		minInterval = time.Second
	}
	if jitterRange < 0 {
		jitterRange = 0
	}

	for {
		interval := minInterval
		if jitterRange > 0 {
			interval += time.Duration(rand.Int64N(int64(jitterRange)))
		}

		timer := clk.Timer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		fn(ctx)
	}
}
