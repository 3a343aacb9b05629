// Package audit records message and status events off the routing path.
package audit

import (
	"context"
	"time"
)

// Direction of a recorded message.
type Direction string

const (
	DirectionInbound   Direction = "INBOUND"
	DirectionOutbound  Direction = "OUTBOUND"
	DirectionAutomated Direction = "AUTOMATED"
)

// MessageEntry is one message that passed through the router.
type MessageEntry struct {
	ID             string    `json:"id" bson:"_id"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
	SessionKey     string    `json:"session_key" bson:"session_key"`
	Direction      Direction `json:"direction" bson:"direction"`
	PodName        string    `json:"pod_name,omitempty" bson:"pod_name,omitempty"`
	ThreadID       string    `json:"thread_id,omitempty" bson:"thread_id,omitempty"`
	OperatorID     string    `json:"operator_id,omitempty" bson:"operator_id,omitempty"`
	Body           string    `json:"body" bson:"body"`
	DeliveryID     string    `json:"delivery_id,omitempty" bson:"delivery_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	Demo           bool      `json:"demo" bson:"demo"`
	Error          string    `json:"error,omitempty" bson:"error,omitempty"`
}

// StatusChangeEntry is one session state transition.
type StatusChangeEntry struct {
	ID         string    `json:"id" bson:"_id"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	SessionKey string    `json:"session_key" bson:"session_key"`
	Action     string    `json:"action" bson:"action"`
	FromState  string    `json:"from_state,omitempty" bson:"from_state,omitempty"`
	ToState    string    `json:"to_state" bson:"to_state"`
	PodName    string    `json:"pod_name,omitempty" bson:"pod_name,omitempty"`
	Region     string    `json:"region,omitempty" bson:"region,omitempty"`
	Actor      string    `json:"actor,omitempty" bson:"actor,omitempty"`
	Demo       bool      `json:"demo" bson:"demo"`
}

// Recorder persists audit entries.
type Recorder interface {
	RecordMessage(ctx context.Context, entry MessageEntry) error
	RecordStatusChange(ctx context.Context, entry StatusChangeEntry) error
}
