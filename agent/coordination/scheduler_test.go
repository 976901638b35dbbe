package coordination

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/agentcoord/testutil"
	"github.com/BaSui01/agentcoord/testutil/fixtures"
	"github.com/BaSui01/agentcoord/types"
)

type rebalanceCall struct {
	projectID   string
	initiatedBy string
	reason      string
	traced      bool
}

type fakeRebalancer struct {
	mu     sync.Mutex
	calls  []rebalanceCall
	failOn map[string]error
}

func (f *fakeRebalancer) RebalanceWorkload(ctx context.Context, projectID, initiatedBy, reason string) (*RebalanceResult, error) {
	_, traced := types.TraceID(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, rebalanceCall{projectID, initiatedBy, reason, traced})
	err := f.failOn[projectID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &RebalanceResult{RebalanceID: "rb-" + projectID, ProjectID: projectID}, nil
}

func (f *fakeRebalancer) snapshot() []rebalanceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]rebalanceCall(nil), f.calls...)
}

func schedulerConfig(projects ...string) SchedulerConfig {
	cfg := DefaultSchedulerConfig()
	cfg.Projects = projects
	return cfg
}

func TestNewRebalanceScheduler_Validation(t *testing.T) {
	_, err := NewRebalanceScheduler(nil, DefaultSchedulerConfig(), nil)
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)

	cfg := DefaultSchedulerConfig()
	cfg.Interval = 0
	_, err = NewRebalanceScheduler(&fakeRebalancer{}, cfg, nil)
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)
}

func TestRebalanceScheduler_RunOnceIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeRebalancer{failOn: map[string]error{"beta": errors.New("store down")}}
	s, err := NewRebalanceScheduler(r, schedulerConfig("alpha", "beta", "gamma"), zaptest.NewLogger(t))
	require.NoError(t, err)

	runs := s.RunOnce(testutil.TestContext(t))
	require.Len(t, runs, 3)
	assert.Equal(t, "alpha", runs[0].ProjectID)
	assert.NoError(t, runs[0].Err)
	assert.Equal(t, "rb-alpha", runs[0].Result.RebalanceID)
	assert.EqualError(t, runs[1].Err, "store down")
	assert.Nil(t, runs[1].Result)
	assert.NoError(t, runs[2].Err)

	calls := r.snapshot()
	require.Len(t, calls, 3)
	projects := make([]string, 0, len(calls))
	for _, c := range calls {
		projects = append(projects, c.projectID)
		assert.Equal(t, "scheduler", c.initiatedBy)
		assert.Equal(t, scheduledReason, c.reason)
		assert.True(t, c.traced, "each run carries its own trace id")
	}
	sort.Strings(projects)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, projects)
}

func TestRebalanceScheduler_RunServesTriggersAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeRebalancer{}
	cfg := schedulerConfig()
	cfg.Interval = time.Hour
	s, err := NewRebalanceScheduler(r, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, s.Trigger("alpha"))
	testutil.AssertEventuallyTrue(t, func() bool { return len(r.snapshot()) == 1 }, 2*time.Second)
	call := r.snapshot()[0]
	assert.Equal(t, "alpha", call.projectID)
	assert.Equal(t, manualReason, call.reason)

	assert.Error(t, s.Run(ctx), "a second Run is rejected while the first is active")

	cancel()
	err, ok := testutil.WaitForChannel(done, 2*time.Second)
	require.True(t, ok, "Run did not stop after cancel")
	assert.NoError(t, err)
}

func TestRebalanceScheduler_RunTicks(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := &fakeRebalancer{}
	cfg := schedulerConfig("alpha")
	cfg.Interval = 10 * time.Millisecond
	s, err := NewRebalanceScheduler(r, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	testutil.AssertEventuallyTrue(t, func() bool { return len(r.snapshot()) >= 2 }, 2*time.Second)
	cancel()
	_, ok := testutil.WaitForChannel(done, 2*time.Second)
	require.True(t, ok)
}

func TestRebalanceScheduler_TriggerLimits(t *testing.T) {
	r := &fakeRebalancer{}

	cfg := schedulerConfig()
	cfg.TriggerRate = 0.001
	cfg.TriggerBurst = 2
	s, err := NewRebalanceScheduler(r, cfg, nil)
	require.NoError(t, err)

	testutil.AssertErrorCode(t, s.Trigger(""), types.ErrInvalidInput)
	require.NoError(t, s.Trigger("alpha"))
	require.NoError(t, s.Trigger("alpha"))
	assert.ErrorIs(t, s.Trigger("alpha"), ErrTriggerRateLimited)

	cfg.TriggerRate = 1000
	cfg.TriggerBurst = 100
	s, err = NewRebalanceScheduler(r, cfg, nil)
	require.NoError(t, err)
	for i := 0; i < triggerQueue; i++ {
		require.NoError(t, s.Trigger("alpha"))
	}
	assert.ErrorIs(t, s.Trigger("alpha"), ErrTriggerQueueFull)
}

func TestRebalanceScheduler_DrivesOrchestrator(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newHarness(t, fixtures.OverloadedTeam(), nil)
	s, err := NewRebalanceScheduler(h.orch, schedulerConfig(fixtures.DefaultProject), zaptest.NewLogger(t))
	require.NoError(t, err)

	runs := s.RunOnce(testutil.TestContext(t))
	require.Len(t, runs, 1)
	require.NoError(t, runs[0].Err)
	assert.Len(t, runs[0].Result.TasksReassigned, 2)
}
