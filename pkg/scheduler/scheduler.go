// Package scheduler runs the periodic check-in sweep: on every cron tick it
// walks the private streams of the default platform and asks the proactive
// plugin to reach out to a random subset of well-regarded users.
package scheduler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/dispatch"
	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/logger"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
)

// Reason is passed to the action for scheduled sends.
const Reason = "scheduled check-in"

// Actor is the proactive action entry point.
type Actor interface {
	Act(ctx context.Context, in proactive.ActionInput, inv proactive.Invocation) dispatch.Result
}

// Summary reports what one sweep did.
type Summary struct {
	Streams        int
	Skipped        int // lost the probability draw
	BelowThreshold int
	Attempted      int
	Sent           int
	Failures       map[string]string // user id -> detail
}

type Scheduler struct {
	cfg     *config.Config
	streams host.StreamRegistry
	dir     host.Directory
	actor   Actor
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRand fixes the random source for the probability draw.
func WithRand(r *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(cfg *config.Config, streams host.StreamRegistry, dir host.Directory, actor Actor, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:     cfg,
		streams: streams,
		dir:     dir,
		actor:   actor,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Sweep makes one pass over the private streams.
func (s *Scheduler) Sweep(ctx context.Context) (Summary, error) {
	platform := s.cfg.General.DefaultPlatform
	sum := Summary{Failures: make(map[string]string)}

	streams, err := s.streams.PrivateStreams(ctx, platform)
	if err != nil {
		return sum, fmt.Errorf("list private streams: %w", err)
	}
	sum.Streams = len(streams)

	for _, st := range streams {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		if !s.draw() {
			sum.Skipped++
			continue
		}
		if s.impression(ctx, platform, st.UserID) < s.cfg.SmartChat.MinImpressionThreshold {
			sum.BelowThreshold++
			continue
		}

		sum.Attempted++
		res := s.actor.Act(ctx, proactive.ActionInput{Target: st.UserID, Reason: Reason}, proactive.Invocation{Platform: platform})
		if res.OK {
			sum.Sent++
		} else {
			sum.Failures[st.UserID] = res.Detail
		}
	}
	return sum, nil
}

func (s *Scheduler) draw() bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.cfg.SmartChat.TriggerProbability
}

// impression reads the stored impression; anything missing or unreadable is 0.
func (s *Scheduler) impression(ctx context.Context, platform, userID string) int {
	n, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0
	}
	pid, ok, err := s.dir.PersonID(ctx, platform, n)
	if err != nil || !ok {
		return 0
	}
	v, ok, err := s.dir.PersonValue(ctx, pid, host.AttrImpression)
	if err != nil || !ok {
		return 0
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		i, _ := strconv.Atoi(val)
		return i
	default:
		return 0
	}
}

// Run sweeps on every tick of the configured cron expression until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	expr := s.cfg.Schedule.Cron
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid schedule.cron %q", expr)
	}

	logger.InfoCF("scheduler", "Check-in sweep scheduled", map[string]any{"cron": expr})
	for {
		next, err := gronx.NextTickAfter(expr, s.now(), false)
		if err != nil {
			return fmt.Errorf("next tick for %q: %w", expr, err)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		sum, err := s.Sweep(ctx)
		if err != nil {
			logger.ErrorCF("scheduler", "Sweep failed", map[string]any{"error": err.Error()})
			continue
		}
		logger.InfoCF("scheduler", "Sweep finished", map[string]any{
			"streams":         sum.Streams,
			"skipped":         sum.Skipped,
			"below_threshold": sum.BelowThreshold,
			"attempted":       sum.Attempted,
			"sent":            sum.Sent,
		})
	}
}
