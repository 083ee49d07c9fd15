// Package monitor runs a ping session on a schedule: a fixed number
// of rounds (or until cancelled) at a fixed interval, streaming every
// round's per-target results to an output writer.
package monitor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/velemoonkon/thunder/pkg/config"
	"github.com/velemoonkon/thunder/pkg/output"
	"github.com/velemoonkon/thunder/pkg/ping"
	"golang.org/x/time/rate"
)

// Pinger is the slice of ping.Session the runner needs. Taken as an
// interface so tests can substitute a scripted session.
type Pinger interface {
	SendRound(ctx context.Context, timeout time.Duration) (int, error)
	Results() iter.Seq[ping.ResultView]
	Count() int
}

// Config controls the round schedule.
type Config struct {
	// Count is the number of rounds to run. 0 or negative means run
	// until the context is cancelled.
	Count int

	// Interval is the pacing between round starts.
	Interval time.Duration

	// Timeout is the per-round reply deadline passed to SendRound.
	Timeout time.Duration
}

// DefaultConfig returns the environment-backed scheduling defaults.
func DefaultConfig() Config {
	return Config{
		Count:    config.Monitor.DefaultCount,
		Interval: config.Monitor.DefaultInterval,
		Timeout:  config.Monitor.DefaultTimeout,
	}
}

// Runner drives rounds against one session and forwards results.
type Runner struct {
	pinger  Pinger
	cfg     Config
	limiter *rate.Limiter
	sink    output.Writer
}

// New builds a runner. The limiter paces round starts: the first
// round fires immediately, later ones one Interval apart.
func New(p Pinger, cfg Config, sink output.Writer) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.Monitor.DefaultTimeout
	}
	var limiter *rate.Limiter
	if cfg.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Interval), 1)
	} else {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Runner{pinger: p, cfg: cfg, limiter: limiter, sink: sink}
}

// Run executes the configured rounds. Cancellation between rounds or
// mid-round stops the loop; results already collected are flushed to
// the sink before returning.
func (r *Runner) Run(ctx context.Context) error {
	for round := 0; r.cfg.Count <= 0 || round < r.cfg.Count; round++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		replies, err := r.pinger.SendRound(ctx, r.cfg.Timeout)
		cancelled := err != nil
		if cancelled && ctx.Err() == nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		slog.Debug("round complete",
			"round", round,
			"targets", r.pinger.Count(),
			"replies", replies)

		at := time.Now()
		for view := range r.pinger.Results() {
			if werr := r.sink.Write(output.FromView(at, view)); werr != nil {
				return fmt.Errorf("write result: %w", werr)
			}
		}
		if cancelled {
			return err
		}
	}
	return nil
}
