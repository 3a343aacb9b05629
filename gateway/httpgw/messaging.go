package httpgw

import (
	"context"
	"net/http"

	"github.com/pilab-dev/helpline/domain"
)

// IdempotencyHeader carries the per-send idempotency key.
const IdempotencyHeader = "Idempotency-Key"

// Messaging sends SMS through the messaging adapter.
type Messaging struct {
	c client
}

// NewMessaging creates a messaging gateway. A nil httpClient uses a client
// with a 10s timeout.
func NewMessaging(baseURL, token string, httpClient *http.Client) *Messaging {
	return &Messaging{c: newClient(baseURL, token, httpClient)}
}

type sendRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type sendResponse struct {
	DeliveryID string `json:"delivery_id"`
}

// SendToUser implements domain.MessagingGateway.
func (m *Messaging) SendToUser(ctx context.Context, msg domain.OutboundMessage) (string, error) {
	var out sendResponse
	headers := map[string]string{}
	if msg.IdempotencyKey != "" {
		headers[IdempotencyHeader] = msg.IdempotencyKey
	}
	err := m.c.do(ctx, http.MethodPost, "/messages", sendRequest{
		To:   msg.ContactAddress,
		From: msg.OriginNumber,
		Body: msg.Body,
	}, &out, headers)
	if err != nil {
		return "", err
	}
	return out.DeliveryID, nil
}

var _ domain.MessagingGateway = (*Messaging)(nil)
