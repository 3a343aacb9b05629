// Package api holds the JSON bodies of the helpline HTTP API, shared by the
// server and helplinectl.
package api

import "github.com/pilab-dev/helpline/domain"

// InboundSMSRequest is delivered by the messaging gateway for each user
// message.
type InboundSMSRequest struct {
	From        string   `json:"from"`
	To          string   `json:"to"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

// ChatEventRequest is delivered by the chat gateway for each operator
// message posted in a thread.
type ChatEventRequest struct {
	EventID    string `json:"event_id"`
	PodHandle  string `json:"pod_handle"`
	ThreadID   string `json:"thread_id"`
	OperatorID string `json:"operator_id"`
	Body       string `json:"body"`
}

// PodStateRequest opens a pod for the listed entry points and closes it for
// the rest.
type PodStateRequest struct {
	Region      string   `json:"region"`
	Pod         string   `json:"pod"`
	EntryPoints []string `json:"entry_points"`
}

// PodsResponse lists the pods of a region group.
type PodsResponse struct {
	Region string       `json:"region"`
	Demo   bool         `json:"demo"`
	Pods   []domain.Pod `json:"pods"`
}

// SessionSelector identifies a session either by its store key or by the
// contact address and origin number it was opened from.
type SessionSelector struct {
	SessionKey     string `json:"session_key,omitempty" query:"session_key"`
	ContactAddress string `json:"contact_address,omitempty" query:"contact_address"`
	OriginNumber   string `json:"origin_number,omitempty" query:"origin_number"`
}

// SessionCommandRequest runs an admin command against a session.
type SessionCommandRequest struct {
	SessionSelector
	Command string `json:"command"`
	Arg     string `json:"arg,omitempty"`
	Actor   string `json:"actor,omitempty"`
}

// StatusResponse acknowledges an accepted request.
type StatusResponse struct {
	Status     string `json:"status"`
	SessionKey string `json:"session_key,omitempty"`
}
