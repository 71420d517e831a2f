package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/dmclaw/pkg/config"
	"github.com/tinyland-inc/dmclaw/pkg/dispatch"
	"github.com/tinyland-inc/dmclaw/pkg/host"
	"github.com/tinyland-inc/dmclaw/pkg/host/hosttest"
	"github.com/tinyland-inc/dmclaw/pkg/proactive"
)

type recordingActor struct {
	mu    sync.Mutex
	calls []proactive.ActionInput
	fail  map[string]bool
}

func (a *recordingActor) Act(_ context.Context, in proactive.ActionInput, inv proactive.Invocation) dispatch.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, in)
	if a.fail[in.Target] {
		return dispatch.Result{Detail: "cooldown active, 100 seconds remaining"}
	}
	return dispatch.Result{OK: true, Detail: "sent"}
}

func fixture(impressions map[int64]any) (*config.Config, *hosttest.Registry, *hosttest.Directory) {
	cfg := config.DefaultConfig()
	reg := hosttest.NewRegistry()
	dir := hosttest.NewDirectory()
	for id, imp := range impressions {
		reg.AddPrivate("qq", fmt.Sprint(id), "")
		attrs := map[string]any{}
		if imp != nil {
			attrs[host.AttrImpression] = imp
		}
		dir.Add(hosttest.Person{ID: host.PersonID(fmt.Sprint("p", id)), Platform: "qq", UserID: id, Attrs: attrs})
	}
	return cfg, reg, dir
}

func TestSweep_ProbabilityOneRespectsThreshold(t *testing.T) {
	cfg, reg, dir := fixture(map[int64]any{1: 80, 2: 10, 3: nil, 4: int64(50), 5: 75.0})
	cfg.SmartChat.TriggerProbability = 1
	actor := &recordingActor{}

	sum, err := New(cfg, reg, dir, actor).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Streams)
	assert.Equal(t, 0, sum.Skipped)
	assert.Equal(t, 2, sum.BelowThreshold)
	assert.Equal(t, 3, sum.Attempted)
	assert.Equal(t, 3, sum.Sent)

	var targets []string
	for _, c := range actor.calls {
		targets = append(targets, c.Target)
		assert.Equal(t, Reason, c.Reason)
		assert.Empty(t, c.Message)
	}
	assert.ElementsMatch(t, []string{"1", "4", "5"}, targets)
}

func TestSweep_ProbabilityZeroNeverActs(t *testing.T) {
	cfg, reg, dir := fixture(map[int64]any{1: 99, 2: 99})
	cfg.SmartChat.TriggerProbability = 0
	actor := &recordingActor{}

	sum, err := New(cfg, reg, dir, actor).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
	assert.Empty(t, actor.calls)
}

func TestSweep_DrawIsSeeded(t *testing.T) {
	impressions := map[int64]any{}
	for i := int64(1); i <= 200; i++ {
		impressions[i] = 100
	}
	cfg, reg, dir := fixture(impressions)
	actor := &recordingActor{}

	sum, err := New(cfg, reg, dir, actor, WithRand(rand.New(rand.NewPCG(11, 12)))).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, sum.Attempted+sum.Skipped)
	assert.InDelta(t, 0.3, float64(sum.Attempted)/200, 0.1)
}

func TestSweep_RecordsFailures(t *testing.T) {
	cfg, reg, dir := fixture(map[int64]any{1: 90, 2: 90})
	cfg.SmartChat.TriggerProbability = 1
	actor := &recordingActor{fail: map[string]bool{"2": true}}

	sum, err := New(cfg, reg, dir, actor).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Sent)
	assert.Equal(t, map[string]string{"2": "cooldown active, 100 seconds remaining"}, sum.Failures)
}

func TestSweep_ListError(t *testing.T) {
	cfg, reg, dir := fixture(nil)
	reg.ListErr = errors.New("db locked")

	_, err := New(cfg, reg, dir, &recordingActor{}).Sweep(context.Background())
	assert.ErrorContains(t, err, "db locked")
}

func TestRun_InvalidCron(t *testing.T) {
	cfg, reg, dir := fixture(nil)
	cfg.Schedule.Cron = "not a cron"

	err := New(cfg, reg, dir, &recordingActor{}).Run(context.Background())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg, reg, dir := fixture(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- New(cfg, reg, dir, &recordingActor{}).Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
