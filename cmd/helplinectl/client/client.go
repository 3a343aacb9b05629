// Package client talks to the helpline admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilab-dev/helpline/api"
	"github.com/pilab-dev/helpline/errors"
)

// Client is an admin API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client for the server at baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// ListPods lists the pods of region.
func (c *Client) ListPods(ctx context.Context, region string, demo bool) (*api.PodsResponse, error) {
	q := url.Values{}
	q.Set("region", region)
	if demo {
		q.Set("demo", "true")
	}
	var out api.PodsResponse
	if err := c.do(ctx, http.MethodGet, "/admin/pods?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetPodState opens pod for entryPoints; none closes it.
func (c *Client) SetPodState(ctx context.Context, req api.PodStateRequest) error {
	return c.do(ctx, http.MethodPost, "/admin/pods", req, nil)
}

// RunCommand runs an admin command and returns the session key it acted on.
func (c *Client) RunCommand(ctx context.Context, req api.SessionCommandRequest) (string, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodPost, "/admin/sessions/command", req, &out); err != nil {
		return "", err
	}
	return out.SessionKey, nil
}

// EndSession ends the selected session.
func (c *Client) EndSession(ctx context.Context, sel api.SessionSelector, actor string) (string, error) {
	q := url.Values{}
	for k, v := range map[string]string{
		"session_key":     sel.SessionKey,
		"contact_address": sel.ContactAddress,
		"origin_number":   sel.OriginNumber,
		"actor":           actor,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodDelete, "/admin/sessions?"+q.Encode(), nil, &out); err != nil {
		return "", err
	}
	return out.SessionKey, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var apiErr errors.APIError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Code != "" {
			return &apiErr
		}
		return fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
