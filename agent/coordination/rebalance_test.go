package coordination

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcoord/agent/events"
	"github.com/BaSui01/agentcoord/agent/handoff"
	"github.com/BaSui01/agentcoord/agent/persistence"
	"github.com/BaSui01/agentcoord/testutil"
	"github.com/BaSui01/agentcoord/testutil/fixtures"
	"github.com/BaSui01/agentcoord/testutil/mocks"
	"github.com/BaSui01/agentcoord/types"
)

func TestRebalanceWorkload_MovesOneTaskToUnderutilizedAgent(t *testing.T) {
	h := newHarness(t, []*types.Agent{
		fixtures.NewAgent("A", fixtures.WithCapacity(10), fixtures.WithLoad(9)),
		fixtures.NewAgent("B", fixtures.WithCapacity(10), fixtures.WithLoad(2)),
	}, nil)
	ctx := testutil.TestContext(t)

	result, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "sprint review")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RebalanceID)
	assert.Equal(t, map[string]string{"A-load-1": "B"}, result.TasksReassigned)
	assert.Equal(t, []string{"A", "B"}, result.AgentsAffected)
	assert.Equal(t, map[string]int{"A": 9, "B": 2}, result.WorkloadBefore)
	assert.Equal(t, map[string]int{"A": 9, "B": 2}, result.WorkloadAfter, "handoffs are only pending")

	h1, err := h.orch.GetHandoff(ctx, result.HandoffIDs["A-load-1"])
	require.NoError(t, err)
	assert.Equal(t, handoff.StatusPending, h1.Status)
	assert.Equal(t, "A", h1.FromAgentID)
	assert.Equal(t, "B", h1.ToAgentID)
	assert.Equal(t, "Workload rebalancing", h1.WorkSummary)
	assert.Equal(t, []string{"Continue current work"}, h1.RemainingItems)
	assert.Equal(t, "sprint review", h1.HandoffNotes)

	assert.Equal(t, []events.EventType{
		events.TypeWorkHandoffRequested,
		events.TypeAgentWorkloadRebalanced,
	}, h.bus.Types())
	rebalanced := mocks.EventsOf[events.AgentWorkloadRebalanced](h.bus)
	require.Len(t, rebalanced, 1)
	assert.Equal(t, result.RebalanceID, rebalanced[0].RebalanceID)
	assert.Equal(t, "admin", rebalanced[0].InitiatedBy)
	assert.Equal(t, result.TasksReassigned, rebalanced[0].TasksReassigned)
}

func TestRebalanceWorkload_BalancedProjectIsNoop(t *testing.T) {
	h := newHarness(t, []*types.Agent{
		fixtures.NewAgent("A", fixtures.WithCapacity(10), fixtures.WithLoad(6)),
		fixtures.NewAgent("B", fixtures.WithCapacity(10), fixtures.WithLoad(5)),
	}, nil)

	result, err := h.orch.RebalanceWorkload(testutil.TestContext(t), fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	assert.Empty(t, result.TasksReassigned)
	assert.Empty(t, result.AgentsAffected)
	assert.Equal(t, []events.EventType{events.TypeAgentWorkloadRebalanced}, h.bus.Types())
}

func TestRebalanceWorkload_TargetKeepsReceivingWhileUnderutilized(t *testing.T) {
	h := newHarness(t, fixtures.OverloadedTeam(), nil)

	result, err := h.orch.RebalanceWorkload(testutil.TestContext(t), fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"busy-1-load-1": "idle-1",
		"busy-2-load-1": "idle-1",
	}, result.TasksReassigned)
	assert.Equal(t, []string{"busy-1", "busy-2", "idle-1"}, result.AgentsAffected)
}

func TestRebalanceWorkload_CountsPendingHandoffs(t *testing.T) {
	h := newHarness(t, fixtures.OverloadedTeam(), nil)
	ctx := testutil.TestContext(t)

	first, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	second, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)

	for taskID := range second.TasksReassigned {
		assert.NotContains(t, first.TasksReassigned, taskID, "task already offered must not be offered again")
	}
	// idle-1 has two inbound handoffs (30%) and reaches 40% after one more.
	assert.Equal(t, map[string]string{
		"busy-1-load-2": "idle-1",
		"busy-2-load-2": "idle-2",
	}, second.TasksReassigned)

	pending, err := h.orch.ListHandoffs(ctx, persistence.HandoffFilter{Status: handoff.StatusPending})
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestRebalanceWorkload_RejectedHandoffStopsCounting(t *testing.T) {
	h := newHarness(t, []*types.Agent{
		fixtures.NewAgent("A", fixtures.WithCapacity(10), fixtures.WithLoad(9)),
		fixtures.NewAgent("B", fixtures.WithCapacity(10), fixtures.WithLoad(3)),
	}, nil)
	ctx := testutil.TestContext(t)

	first, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	require.Len(t, first.TasksReassigned, 1)

	// B sits at 40% with the pending handoff and is not a target.
	second, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	assert.Empty(t, second.TasksReassigned)

	_, err = h.orch.RejectHandoff(ctx, first.HandoffIDs["A-load-1"], "B", "focused elsewhere")
	require.NoError(t, err)

	third, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A-load-1": "B"}, third.TasksReassigned)
}

func TestRebalanceWorkload_SkipsUnavailableTargets(t *testing.T) {
	h := newHarness(t, []*types.Agent{
		fixtures.NewAgent("A", fixtures.WithCapacity(10), fixtures.WithLoad(9)),
		fixtures.NewAgent("B", fixtures.WithCapacity(10), fixtures.WithStatus(types.AgentStatusOffline)),
	}, nil)

	result, err := h.orch.RebalanceWorkload(testutil.TestContext(t), fixtures.DefaultProject, "admin", "")
	require.NoError(t, err)
	assert.Empty(t, result.TasksReassigned)
}

func TestRebalanceWorkload_StoreFailure(t *testing.T) {
	h := newHarness(t, fixtures.OverloadedTeam(), nil)
	h.store.WithError(mocks.MethodListHandoffs, errors.New("connection reset"))

	_, err := h.orch.RebalanceWorkload(testutil.TestContext(t), fixtures.DefaultProject, "admin", "")
	testutil.AssertErrorCode(t, err, types.ErrStoreUnavailable)
	assert.Empty(t, h.bus.Events())
}

func TestRebalanceWorkload_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one task per overloaded agent, only to underutilized agents", prop.ForAll(
		func(loads []int) bool {
			agents := make([]*types.Agent, len(loads))
			for i, n := range loads {
				agents[i] = fixtures.NewAgent(fmt.Sprintf("agent-%d", i),
					fixtures.WithCapacity(10), fixtures.WithLoad(n))
			}
			h := newHarness(t, agents, nil)
			result, err := h.orch.RebalanceWorkload(testutil.TestContext(t), fixtures.DefaultProject, "prop", "")
			if err != nil {
				return false
			}

			overloaded := 0
			for _, n := range loads {
				if n*10 > 80 {
					overloaded++
				}
			}
			if len(result.TasksReassigned) > overloaded {
				return false
			}

			sources := make(map[string]bool)
			inbound := make(map[string]int)
			for taskID, target := range result.TasksReassigned {
				ho, err := h.orch.GetHandoff(testutil.TestContext(t), result.HandoffIDs[taskID])
				if err != nil || ho.ToAgentID != target {
					return false
				}
				if sources[ho.FromAgentID] || result.WorkloadBefore[ho.FromAgentID]*10 <= 80 {
					return false
				}
				sources[ho.FromAgentID] = true
				inbound[target]++
			}
			for target, n := range inbound {
				// the last handoff may lift the target to the threshold but never past it
				if (result.WorkloadBefore[target]+n-1)*10 >= 40 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}

func TestRebalanceWorkload_SummaryPublishFailureKeepsHandoff(t *testing.T) {
	h := newHarness(t, []*types.Agent{
		fixtures.NewAgent("A", fixtures.WithCapacity(10), fixtures.WithLoad(9)),
		fixtures.NewAgent("B", fixtures.WithCapacity(10), fixtures.WithLoad(2)),
	}, nil)
	h.bus.WithPublishErrorOn(events.TypeAgentWorkloadRebalanced, errors.New("broker down"))
	ctx := testutil.TestContext(t)

	result, err := h.orch.RebalanceWorkload(ctx, fixtures.DefaultProject, "admin", "")
	testutil.AssertErrorCode(t, err, types.ErrEventPublishFailed)
	assert.Nil(t, result)

	// 已提交的交接不回滚
	pending, err := h.orch.ListHandoffs(ctx, persistence.HandoffFilter{Status: handoff.StatusPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "A-load-1", pending[0].TaskID)
	assert.Equal(t, []events.EventType{events.TypeWorkHandoffRequested}, h.bus.Types())
}
