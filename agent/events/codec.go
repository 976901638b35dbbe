package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEventType 无法识别的事件类型
var ErrUnknownEventType = errors.New("unknown event type")

// Envelope 事件的线上格式
type Envelope struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode 将事件编码为 JSON 信封
func Encode(e Event) ([]byte, error) {
	if e == nil {
		return nil, errors.New("encode event: nil event")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", e.Type(), err)
	}
	return json.Marshal(Envelope{
		Type:      e.Type(),
		Timestamp: e.Timestamp(),
		Payload:   payload,
	})
}

// Decode 从 JSON 信封还原事件
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Type {
	case TypeAgentAssigned:
		return decodePayload[AgentAssigned](env)
	case TypeWorkHandoffRequested:
		return decodePayload[WorkHandoffRequested](env)
	case TypeWorkHandoffAccepted:
		return decodePayload[WorkHandoffAccepted](env)
	case TypeWorkHandoffRejected:
		return decodePayload[WorkHandoffRejected](env)
	case TypeConflictDetected:
		return decodePayload[ConflictDetected](env)
	case TypeConflictResolved:
		return decodePayload[ConflictResolved](env)
	case TypeAgentStatusBroadcast:
		return decodePayload[AgentStatusBroadcast](env)
	case TypeAgentWorkloadRebalanced:
		return decodePayload[AgentWorkloadRebalanced](env)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, env.Type)
	}
}

func decodePayload[E Event](env Envelope) (Event, error) {
	var e E
	if err := json.Unmarshal(env.Payload, &e); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return e, nil
}
