package coordination

import "time"

// MetricsRecorder receives coordination measurements. internal/metrics.Collector
// implements it.
type MetricsRecorder interface {
	RecordAssignment(role, status string)
	RecordHandoff(action, status string)
	RecordConflict(conflictType, action string)
	RecordRebalance(status string, tasksReassigned int)
	RecordAgentWorkload(agentID string, percentage float64)
	RecordOperation(operation, status string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordAssignment(string, string)               {}
func (nopMetrics) RecordHandoff(string, string)                  {}
func (nopMetrics) RecordConflict(string, string)                 {}
func (nopMetrics) RecordRebalance(string, int)                   {}
func (nopMetrics) RecordAgentWorkload(string, float64)           {}
func (nopMetrics) RecordOperation(string, string, time.Duration) {}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
