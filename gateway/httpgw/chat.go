package httpgw

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/pilab-dev/helpline/domain"
)

// Chat drives pod threads through the team-chat adapter.
type Chat struct {
	c client
}

// NewChat creates a chat gateway. A nil httpClient uses a client with a 10s
// timeout.
func NewChat(baseURL, token string, httpClient *http.Client) *Chat {
	return &Chat{c: newClient(baseURL, token, httpClient)}
}

func threadPath(podHandle, threadID string) string {
	return "/pods/" + url.PathEscape(podHandle) + "/threads/" + url.PathEscape(threadID)
}

type createThreadRequest struct {
	Body   string        `json:"body"`
	Blocks domain.Blocks `json:"blocks"`
}

type createThreadResponse struct {
	ThreadID string `json:"thread_id"`
}

// CreateThread implements domain.ChatGateway.
func (g *Chat) CreateThread(ctx context.Context, podHandle, body string, blocks domain.Blocks) (string, error) {
	var out createThreadResponse
	err := g.c.do(ctx, http.MethodPost, "/pods/"+url.PathEscape(podHandle)+"/threads",
		createThreadRequest{Body: body, Blocks: blocks}, &out, nil)
	if err != nil {
		return "", err
	}
	return out.ThreadID, nil
}

type postRequest struct {
	Body string `json:"body"`
}

// PostToThread implements domain.ChatGateway.
func (g *Chat) PostToThread(ctx context.Context, podHandle, threadID, body string) error {
	return g.c.do(ctx, http.MethodPost, threadPath(podHandle, threadID)+"/messages", postRequest{Body: body}, nil, nil)
}

// FetchThreadBlocks implements domain.ChatGateway.
func (g *Chat) FetchThreadBlocks(ctx context.Context, podHandle, threadID string) (domain.Blocks, error) {
	var out domain.Blocks
	err := g.c.do(ctx, http.MethodGet, threadPath(podHandle, threadID)+"/blocks", nil, &out, nil)
	return out, err
}

// ReplaceThreadBlocks implements domain.ChatGateway.
func (g *Chat) ReplaceThreadBlocks(ctx context.Context, podHandle, threadID string, blocks domain.Blocks) error {
	return g.c.do(ctx, http.MethodPut, threadPath(podHandle, threadID)+"/blocks", blocks, nil, nil)
}

type threadMessage struct {
	Author string    `json:"author"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

type threadMessagesResponse struct {
	Messages []threadMessage `json:"messages"`
}

// FetchThreadMessages implements domain.ChatGateway.
func (g *Chat) FetchThreadMessages(ctx context.Context, podHandle, threadID string) ([]domain.ThreadMessage, error) {
	var out threadMessagesResponse
	if err := g.c.do(ctx, http.MethodGet, threadPath(podHandle, threadID)+"/messages", nil, &out, nil); err != nil {
		return nil, err
	}
	msgs := make([]domain.ThreadMessage, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = domain.ThreadMessage{Author: m.Author, Body: m.Body, SentAt: m.SentAt}
	}
	return msgs, nil
}

type podResponse struct {
	Handle string `json:"handle"`
}

// ResolvePodHandleByName implements domain.ChatGateway. Unknown names yield
// an empty handle.
func (g *Chat) ResolvePodHandleByName(ctx context.Context, name string) (string, error) {
	var out podResponse
	err := g.c.do(ctx, http.MethodGet, "/pods/by-name/"+url.PathEscape(name), nil, &out, nil)
	if errors.Is(err, errNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return out.Handle, nil
}

type podsResponse struct {
	Pods map[string]string `json:"pods"`
}

// ListAllPods implements domain.ChatGateway.
func (g *Chat) ListAllPods(ctx context.Context) (map[string]string, error) {
	var out podsResponse
	if err := g.c.do(ctx, http.MethodGet, "/pods", nil, &out, nil); err != nil {
		return nil, err
	}
	if out.Pods == nil {
		out.Pods = map[string]string{}
	}
	return out.Pods, nil
}

var _ domain.ChatGateway = (*Chat)(nil)
