package coordination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/testutil"
	"github.com/BaSui01/agentcoord/testutil/fixtures"
	"github.com/BaSui01/agentcoord/testutil/mocks"
	"github.com/BaSui01/agentcoord/types"
)

func TestGetAgentWorkload(t *testing.T) {
	h := newHarness(t,
		[]*types.Agent{
			fixtures.NewAgent("X", fixtures.WithCapacity(4)),
			fixtures.NewAgent("Z"),
		},
		[]*types.Task{fixtures.NewTask("T1"), fixtures.NewTask("T2")})
	ctx := testutil.TestContext(t)

	for _, taskID := range []string{"T1", "T2"} {
		_, err := h.orch.AssignAgentToTask(ctx, AssignRequest{TaskID: taskID, AgentID: "X", Role: "developer"})
		require.NoError(t, err)
	}
	// a second assignment of T1 supersedes the first one in the report
	latest, err := h.orch.AssignAgentToTask(ctx, AssignRequest{TaskID: "T1", AgentID: "X", Role: "reviewer"})
	require.NoError(t, err)

	req := designHandoff()
	req.TaskID = "T2"
	out, err := h.orch.RequestWorkHandoff(ctx, req)
	require.NoError(t, err)

	w, err := h.orch.GetAgentWorkload(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 2, w.ActiveTaskCount)
	assert.Equal(t, 4, w.Capacity)
	assert.InDelta(t, 50.0, w.WorkloadPercentage, 0.001)
	assert.True(t, w.CanAcceptWork)
	require.Len(t, w.ActiveAssignments, 2)
	assert.Equal(t, latest.ID, w.ActiveAssignments[0].ID)
	assert.Equal(t, "T2", w.ActiveAssignments[1].TaskID)
	assert.Empty(t, w.PendingHandoffsIn)
	require.Len(t, w.PendingHandoffsOut, 1)
	assert.Equal(t, out.ID, w.PendingHandoffsOut[0].ID)

	wz, err := h.orch.GetAgentWorkload(ctx, "Z")
	require.NoError(t, err)
	assert.Zero(t, wz.ActiveTaskCount)
	require.Len(t, wz.PendingHandoffsIn, 1)

	_, err = h.orch.GetAgentWorkload(ctx, "ghost")
	testutil.AssertErrorCode(t, err, types.ErrAgentNotFound)
}

func TestBroadcastAgentStatus(t *testing.T) {
	h := newHarness(t, []*types.Agent{fixtures.NewAgent("X", fixtures.WithLoad(2))}, nil)
	ctx := testutil.TestContext(t)

	updated, err := h.orch.BroadcastAgentStatus(ctx, StatusUpdate{
		AgentID:            "X",
		Status:             types.AgentStatusBlocked,
		CurrentTaskID:      "X-load-1",
		CurrentActivity:    "waiting on schema review",
		BlockerDescription: "schema not approved",
	})
	require.NoError(t, err)
	assert.Equal(t, types.AgentStatusBlocked, updated.Status)

	stored := h.agent(t, "X")
	assert.Equal(t, types.AgentStatusBlocked, stored.Status)
	assert.Equal(t, "schema not approved", stored.BlockerDescription)
	assert.Len(t, stored.ActiveTasks, 2, "status updates keep active tasks")

	broadcasts := mocks.EventsOf[events.AgentStatusBroadcast](h.bus)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, "blocked", broadcasts[0].Status)
	assert.Equal(t, "X-load-1", broadcasts[0].CurrentTaskID)
	assert.InDelta(t, 40.0, broadcasts[0].WorkloadPercentage, 0.001)
}

func TestBroadcastAgentStatus_Validation(t *testing.T) {
	h := newHarness(t, []*types.Agent{fixtures.NewAgent("X")}, nil)
	ctx := testutil.TestContext(t)

	_, err := h.orch.BroadcastAgentStatus(ctx, StatusUpdate{AgentID: "X", Status: "sleeping"})
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)

	_, err = h.orch.BroadcastAgentStatus(ctx, StatusUpdate{AgentID: "ghost", Status: types.AgentStatusBusy})
	testutil.AssertErrorCode(t, err, types.ErrAgentNotFound)

	assert.Equal(t, types.AgentStatusAvailable, h.agent(t, "X").Status)
	assert.Empty(t, h.bus.Events())
}

func TestBlockedAgentIsNotAssigned(t *testing.T) {
	h := newHarness(t, []*types.Agent{fixtures.NewAgent("X")}, []*types.Task{fixtures.NewTask("T1")})
	ctx := testutil.TestContext(t)

	_, err := h.orch.BroadcastAgentStatus(ctx, StatusUpdate{AgentID: "X", Status: types.AgentStatusBlocked})
	require.NoError(t, err)

	_, err = h.orch.AssignAgentToTask(ctx, AssignRequest{TaskID: "T1", AgentID: "X"})
	testutil.AssertErrorCode(t, err, types.ErrAgentUnavailable)
}

func TestReleaseTask(t *testing.T) {
	for _, tc := range []struct {
		name  string
		hopts []harnessOption
	}{
		{name: "reserver"},
		{name: "keyed mutex", hopts: []harnessOption{withoutReserver()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, []*types.Agent{
				fixtures.NewAgent("X", fixtures.WithCapacity(1), fixtures.WithActiveTasks("T1")),
			}, []*types.Task{fixtures.NewTask("T2")}, tc.hopts...)
			ctx := testutil.TestContext(t)

			_, err := h.orch.AssignAgentToTask(ctx, AssignRequest{TaskID: "T2", AgentID: "X"})
			testutil.AssertErrorCode(t, err, types.ErrAgentUnavailable)

			released, err := h.orch.ReleaseTask(ctx, "X", "T1")
			require.NoError(t, err)
			assert.Empty(t, released.ActiveTasks)

			again, err := h.orch.ReleaseTask(ctx, "X", "T1")
			require.NoError(t, err, "releasing a task that is not held is a no-op")
			assert.Empty(t, again.ActiveTasks)

			_, err = h.orch.AssignAgentToTask(ctx, AssignRequest{TaskID: "T2", AgentID: "X"})
			require.NoError(t, err)

			_, err = h.orch.ReleaseTask(ctx, "ghost", "T1")
			testutil.AssertErrorCode(t, err, types.ErrAgentNotFound)
		})
	}
}
