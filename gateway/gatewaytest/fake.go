// Package gatewaytest provides in-memory gateways for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pilab-dev/helpline/domain"
)

var errUnknownThread = errors.New("unknown thread")

// Messaging records every message sent to users.
type Messaging struct {
	mu   sync.Mutex
	sent []domain.OutboundMessage
	// Err, when set, fails every send.
	Err error
}

// SendToUser implements domain.MessagingGateway.
func (m *Messaging) SendToUser(_ context.Context, msg domain.OutboundMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

// Sent returns a copy of the delivered messages.
func (m *Messaging) Sent() []domain.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutboundMessage(nil), m.sent...)
}

// Bodies returns the bodies of the delivered messages.
func (m *Messaging) Bodies() []string {
	sent := m.Sent()
	out := make([]string, len(sent))
	for i, msg := range sent {
		out[i] = msg.Body
	}
	return out
}

// Thread is a thread held by Chat.
type Thread struct {
	PodHandle string
	ID        string
	Blocks    domain.Blocks
	Messages  []domain.ThreadMessage
}

// Chat is an in-memory team-chat workspace.
type Chat struct {
	mu      sync.Mutex
	pods    map[string]string
	threads map[string]*Thread
	order   []string
	seq     int

	// CreateErr, when set, fails CreateThread.
	CreateErr error
	// PostErr, when set, fails PostToThread.
	PostErr error
	// Now stamps posted messages; defaults to time.Now.
	Now func() time.Time
}

// NewChat creates a workspace with the given pod name→handle map.
func NewChat(pods map[string]string) *Chat {
	c := &Chat{
		pods:    make(map[string]string, len(pods)),
		threads: make(map[string]*Thread),
	}
	for name, handle := range pods {
		c.pods[name] = handle
	}
	return c
}

// AddPod registers a pod.
func (c *Chat) AddPod(name, handle string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pods[name] = handle
}

func threadKey(podHandle, threadID string) string {
	return podHandle + "/" + threadID
}

func (c *Chat) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CreateThread implements domain.ChatGateway.
func (c *Chat) CreateThread(_ context.Context, podHandle, body string, blocks domain.Blocks) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return "", c.CreateErr
	}
	c.seq++
	id := fmt.Sprintf("T%d", c.seq)
	k := threadKey(podHandle, id)
	c.threads[k] = &Thread{
		PodHandle: podHandle,
		ID:        id,
		Blocks:    blocks,
		Messages:  []domain.ThreadMessage{{Author: "helpline", Body: body, SentAt: c.now()}},
	}
	c.order = append(c.order, k)
	return id, nil
}

// PostToThread implements domain.ChatGateway.
func (c *Chat) PostToThread(_ context.Context, podHandle, threadID, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PostErr != nil {
		return c.PostErr
	}
	t, ok := c.threads[threadKey(podHandle, threadID)]
	if !ok {
		return errUnknownThread
	}
	t.Messages = append(t.Messages, domain.ThreadMessage{Author: "helpline", Body: body, SentAt: c.now()})
	return nil
}

// FetchThreadBlocks implements domain.ChatGateway.
func (c *Chat) FetchThreadBlocks(_ context.Context, podHandle, threadID string) (domain.Blocks, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[threadKey(podHandle, threadID)]
	if !ok {
		return domain.Blocks{}, errUnknownThread
	}
	return t.Blocks, nil
}

// ReplaceThreadBlocks implements domain.ChatGateway.
func (c *Chat) ReplaceThreadBlocks(_ context.Context, podHandle, threadID string, blocks domain.Blocks) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[threadKey(podHandle, threadID)]
	if !ok {
		return errUnknownThread
	}
	t.Blocks = blocks
	return nil
}

// FetchThreadMessages implements domain.ChatGateway.
func (c *Chat) FetchThreadMessages(_ context.Context, podHandle, threadID string) ([]domain.ThreadMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[threadKey(podHandle, threadID)]
	if !ok {
		return nil, errUnknownThread
	}
	return append([]domain.ThreadMessage(nil), t.Messages...), nil
}

// ResolvePodHandleByName implements domain.ChatGateway.
func (c *Chat) ResolvePodHandleByName(_ context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pods[name], nil
}

// ListAllPods implements domain.ChatGateway.
func (c *Chat) ListAllPods(context.Context) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.pods))
	for name, handle := range c.pods {
		out[name] = handle
	}
	return out, nil
}

// Thread returns a copy of a thread, or nil.
func (c *Chat) Thread(podHandle, threadID string) *Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.threads[threadKey(podHandle, threadID)]
	if !ok {
		return nil
	}
	cp := *t
	cp.Messages = append([]domain.ThreadMessage(nil), t.Messages...)
	return &cp
}

// Threads returns copies of every thread in creation order.
func (c *Chat) Threads() []Thread {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Thread, 0, len(c.order))
	for _, k := range c.order {
		t := *c.threads[k]
		t.Messages = append([]domain.ThreadMessage(nil), t.Messages...)
		out = append(out, t)
	}
	return out
}

// SetThreadMessages replaces a thread's history.
func (c *Chat) SetThreadMessages(podHandle, threadID string, msgs []domain.ThreadMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t, ok := c.threads[threadKey(podHandle, threadID)]; ok {
		t.Messages = append([]domain.ThreadMessage(nil), msgs...)
	}
}

var (
	_ domain.MessagingGateway = (*Messaging)(nil)
	_ domain.ChatGateway      = (*Chat)(nil)
)
