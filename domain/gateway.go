package domain

import (
	"context"
	"time"
)

// InboundMessage is a user message delivered by the messaging gateway.
type InboundMessage struct {
	ContactAddress string
	OriginNumber   string
	Body           string
	Attachments    []string
	ReceivedAt     time.Time
}

// OutboundMessage is a message sent to a user.
type OutboundMessage struct {
	ContactAddress string
	OriginNumber   string
	Body           string
	// IdempotencyKey is unique per send attempt.
	IdempotencyKey string
}

// OperatorMessage is a reply (or command) posted by an operator in a thread.
type OperatorMessage struct {
	// EventID identifies the chat-platform event; retries reuse it.
	EventID    string
	PodHandle  string
	ThreadID   string
	OperatorID string
	Body       string
}

// ThreadMessage is one entry of a thread's history.
type ThreadMessage struct {
	Author string
	Body   string
	SentAt time.Time
}

// ThreadStatus is the state shown on a thread's status panel.
type ThreadStatus string

const (
	ThreadUnclaimed ThreadStatus = "UNCLAIMED"
	ThreadActive    ThreadStatus = "ACTIVE"
	ThreadRerouted  ThreadStatus = "REROUTED"
	ThreadClosed    ThreadStatus = "CLOSED"
)

// Blocks is the status panel attached to a thread.
type Blocks struct {
	Status    ThreadStatus `json:"status"`
	PodName   string       `json:"pod_name,omitempty"`
	ClaimedBy string       `json:"claimed_by,omitempty"`
	Engaged   bool         `json:"engaged"`
	Note      string       `json:"note,omitempty"`
}

// MessagingGateway delivers messages to end users.
type MessagingGateway interface {
	SendToUser(ctx context.Context, msg OutboundMessage) (deliveryID string, err error)
}

// ChatGateway is the team-chat platform operators work in.
type ChatGateway interface {
	CreateThread(ctx context.Context, podHandle, body string, blocks Blocks) (threadID string, err error)
	PostToThread(ctx context.Context, podHandle, threadID, body string) error
	FetchThreadBlocks(ctx context.Context, podHandle, threadID string) (Blocks, error)
	ReplaceThreadBlocks(ctx context.Context, podHandle, threadID string, blocks Blocks) error
	FetchThreadMessages(ctx context.Context, podHandle, threadID string) ([]ThreadMessage, error)
	// ResolvePodHandleByName returns "" when no pod has that name.
	ResolvePodHandleByName(ctx context.Context, name string) (string, error)
	ListAllPods(ctx context.Context) (map[string]string, error)
}
