// Package handoff provides the work handoff protocol used to transfer
// in-progress work from one agent to another.
package handoff

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/agentcoord/types"
)

// HandoffStatus represents the status of a handoff.
type HandoffStatus string

const (
	StatusPending  HandoffStatus = "pending"
	StatusAccepted HandoffStatus = "accepted"
	StatusRejected HandoffStatus = "rejected"
)

// validTransitions lists the states reachable from each state.
// Accepted and rejected are terminal.
var validTransitions = map[HandoffStatus][]HandoffStatus{
	StatusPending:  {StatusAccepted, StatusRejected},
	StatusAccepted: {},
	StatusRejected: {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to HandoffStatus) bool {
	return slices.Contains(validTransitions[from], to)
}

// IsTerminal reports whether no further transition is possible.
func (s HandoffStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// WorkHandoff is a proposal to transfer a task from one agent to another.
type WorkHandoff struct {
	ID             string        `json:"id"`
	FromAgentID    string        `json:"from_agent_id"`
	ToAgentID      string        `json:"to_agent_id"`
	TaskID         string        `json:"task_id"`
	InitiatedAt    time.Time     `json:"initiated_at"`
	WorkSummary    string        `json:"work_summary"`
	CompletedItems []string      `json:"completed_items"`
	RemainingItems []string      `json:"remaining_items"`
	HandoffNotes   string        `json:"handoff_notes,omitempty"`
	Status         HandoffStatus `json:"status"`
	RespondedAt    *time.Time    `json:"responded_at,omitempty"`
	// ResponseNotes holds the acceptance notes or the rejection reason.
	ResponseNotes string `json:"response_notes,omitempty"`
	OwnerID       string `json:"owner_id,omitempty"`
}

// Request carries the fields needed to open a handoff.
type Request struct {
	FromAgentID    string
	ToAgentID      string
	TaskID         string
	WorkSummary    string
	CompletedItems []string
	RemainingItems []string
	Notes          string
	OwnerID        string
}

// New validates req and returns a pending handoff.
func New(req Request, now time.Time) (*WorkHandoff, error) {
	switch {
	case strings.TrimSpace(req.FromAgentID) == "":
		return nil, types.NewInvalidInputError("handoff source agent is required")
	case strings.TrimSpace(req.ToAgentID) == "":
		return nil, types.NewInvalidInputError("handoff target agent is required")
	case strings.TrimSpace(req.TaskID) == "":
		return nil, types.NewInvalidInputError("handoff task is required")
	case req.FromAgentID == req.ToAgentID:
		return nil, types.Errorf(types.ErrInvalidInput, "agent %s cannot hand off work to itself", req.FromAgentID)
	}

	return &WorkHandoff{
		ID:             uuid.New().String(),
		FromAgentID:    req.FromAgentID,
		ToAgentID:      req.ToAgentID,
		TaskID:         req.TaskID,
		InitiatedAt:    now,
		WorkSummary:    req.WorkSummary,
		CompletedItems: nonNil(req.CompletedItems),
		RemainingItems: nonNil(req.RemainingItems),
		HandoffNotes:   req.Notes,
		Status:         StatusPending,
		OwnerID:        req.OwnerID,
	}, nil
}

// IsPending reports whether the handoff still awaits a response.
func (h *WorkHandoff) IsPending() bool {
	return h.Status == StatusPending
}

// CheckResponder verifies that agentID may act on the handoff and that the
// handoff can still move to next. It does not mutate h.
func (h *WorkHandoff) CheckResponder(agentID string, next HandoffStatus) error {
	if agentID != h.ToAgentID {
		return types.Errorf(types.ErrInvalidActor,
			"agent %s is not the recipient of handoff %s", agentID, h.ID)
	}
	if !CanTransition(h.Status, next) {
		return types.Errorf(types.ErrInvalidTransition,
			"handoff %s cannot move from %s to %s", h.ID, h.Status, next)
	}
	return nil
}

// Accept moves the handoff to accepted on behalf of the recipient.
func (h *WorkHandoff) Accept(agentID, notes string, at time.Time) error {
	if err := h.CheckResponder(agentID, StatusAccepted); err != nil {
		return err
	}
	h.respond(StatusAccepted, notes, at)
	return nil
}

// Reject moves the handoff to rejected on behalf of the recipient. A reason is required.
func (h *WorkHandoff) Reject(agentID, reason string, at time.Time) error {
	if err := h.CheckResponder(agentID, StatusRejected); err != nil {
		return err
	}
	if strings.TrimSpace(reason) == "" {
		return types.NewInvalidInputError("a rejection reason is required")
	}
	h.respond(StatusRejected, reason, at)
	return nil
}

func (h *WorkHandoff) respond(status HandoffStatus, notes string, at time.Time) {
	h.Status = status
	h.ResponseNotes = notes
	h.RespondedAt = &at
}

// Clone returns a deep copy.
func (h *WorkHandoff) Clone() *WorkHandoff {
	if h == nil {
		return nil
	}
	c := *h
	c.CompletedItems = slices.Clone(h.CompletedItems)
	c.RemainingItems = slices.Clone(h.RemainingItems)
	if h.RespondedAt != nil {
		at := *h.RespondedAt
		c.RespondedAt = &at
	}
	return &c
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return slices.Clone(items)
}
