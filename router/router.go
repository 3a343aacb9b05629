// Package router drives a user's session through disclaimer and region
// determination to a pod thread, and relays messages in both directions.
package router

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pilab-dev/helpline/dedup"
	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/internal/audit"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/pilab-dev/helpline/log"
	"github.com/pilab-dev/helpline/routing"
	"github.com/pilab-dev/helpline/sessions"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
)

var tracer = otel.Tracer("github.com/pilab-dev/helpline/router")

// Defaults applied by New when Options leaves them empty.
const (
	DefaultLobbyPod             = "lobby"
	DefaultDisclaimerToken      = "agree"
	DefaultRegionSelectionLimit = 2
	DefaultWelcomeBackAfter     = 24 * time.Hour
)

// Options configures routing behavior.
type Options struct {
	// UserIDSecret keys the contact address hash.
	UserIDSecret []byte
	// LobbyPod takes PULL sessions until their region is known; the demo
	// lobby is derived with the "demo-" prefix unless DemoLobbyPod is set.
	LobbyPod     string
	DemoLobbyPod string
	// DemoNumbers are origin numbers whose sessions use the demo namespace.
	DemoNumbers []string
	// PushNumberRegions maps outreach origin numbers to the region they
	// serve; an empty region routes to the overflow pods.
	PushNumberRegions    map[string]string
	DisclaimerToken      string
	RegionSelectionLimit int
	WelcomeBackAfter     time.Duration
}

// AuditSink receives audit entries; it must not block.
type AuditSink interface {
	Message(entry audit.MessageEntry)
	StatusChange(entry audit.StatusChangeEntry)
}

// Router is safe for concurrent use; all state lives in the stores.
type Router struct {
	sessions  *sessions.Store
	balancer  *routing.Balancer
	regions   *routing.Regions
	handles   *routing.HandleCache
	dedup     *dedup.Deduplicator
	messaging domain.MessagingGateway
	chat      domain.ChatGateway
	audit     AuditSink
	logger    log.Logger
	opts      Options
	now       func() time.Time
}

// Deps groups the collaborators of a Router.
type Deps struct {
	Sessions  *sessions.Store
	Balancer  *routing.Balancer
	Regions   *routing.Regions
	Handles   *routing.HandleCache
	Dedup     *dedup.Deduplicator
	Messaging domain.MessagingGateway
	Chat      domain.ChatGateway
	Audit     AuditSink
	Logger    log.Logger
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a Router.
func New(deps Deps, opts Options) *Router {
	if opts.LobbyPod == "" {
		opts.LobbyPod = DefaultLobbyPod
	}
	if opts.DemoLobbyPod == "" {
		opts.DemoLobbyPod = domain.DemoName(opts.LobbyPod, true)
	}
	if opts.DisclaimerToken == "" {
		opts.DisclaimerToken = DefaultDisclaimerToken
	}
	if opts.RegionSelectionLimit <= 0 {
		opts.RegionSelectionLimit = DefaultRegionSelectionLimit
	}
	if opts.WelcomeBackAfter <= 0 {
		opts.WelcomeBackAfter = DefaultWelcomeBackAfter
	}
	r := &Router{
		sessions:  deps.Sessions,
		balancer:  deps.Balancer,
		regions:   deps.Regions,
		handles:   deps.Handles,
		dedup:     deps.Dedup,
		messaging: deps.Messaging,
		chat:      deps.Chat,
		audit:     deps.Audit,
		logger:    deps.Logger,
		opts:      opts,
		now:       deps.Now,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = log.Nop()
	}
	if r.audit == nil {
		r.audit = nopAudit{}
	}
	return r
}

// SessionKey returns the store key of the session for a contact on an
// origin number.
func (r *Router) SessionKey(contactAddress, originNumber string) (string, error) {
	userID, err := sessions.UserID(r.opts.UserIDSecret, contactAddress)
	if err != nil {
		return "", err
	}
	return domain.SessionKey(userID, originNumber), nil
}

// HandleInbound routes one message from a user.
func (r *Router) HandleInbound(ctx context.Context, msg domain.InboundMessage) error {
	ctx, span := tracer.Start(ctx, "router.HandleInbound")
	defer span.End()

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = r.now()
	}
	userID, err := sessions.UserID(r.opts.UserIDSecret, msg.ContactAddress)
	if err != nil {
		return err
	}
	key := domain.SessionKey(userID, msg.OriginNumber)

	sess, err := r.sessions.Get(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return r.startSession(ctx, userID, msg)
	}
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("session.state", string(sess.State)))

	switch sess.State {
	case domain.StateAwaitingDisclaimer:
		return r.handleDisclaimer(ctx, sess, msg)
	case domain.StateAwaitingRegion:
		return r.handleRegion(ctx, sess, msg)
	case domain.StateCleared:
		return r.handleCleared(ctx, sess, msg)
	default:
		r.logger.Warn(ctx, "session in unexpected state, starting over", map[string]interface{}{
			"session": key,
			"state":   string(sess.State),
		})
		return r.startSession(ctx, userID, msg)
	}
}

func (r *Router) isDemo(originNumber string) bool {
	return slices.Contains(r.opts.DemoNumbers, originNumber)
}

func (r *Router) entryPoint(originNumber string) domain.EntryPoint {
	if _, ok := r.opts.PushNumberRegions[originNumber]; ok {
		return domain.EntryPointPush
	}
	return domain.EntryPointPull
}

func (r *Router) lobby(demo bool) string {
	if demo {
		return r.opts.DemoLobbyPod
	}
	return r.opts.LobbyPod
}

func (r *Router) blocks(sess *domain.Session, podName string) domain.Blocks {
	return domain.Blocks{
		Status:    sess.Status,
		PodName:   podName,
		ClaimedBy: sess.ClaimedBy,
		Engaged:   sess.VolunteerEngaged,
	}
}

func threadRef(sess *domain.Session) domain.ThreadRef {
	return domain.ThreadRef{
		ContactAddress: sess.ContactAddress,
		OriginNumber:   sess.OriginNumber,
		UserID:         sess.UserID,
	}
}

// relayBody renders a user message, attachments included, for a thread.
func relayBody(msg domain.InboundMessage) string {
	if len(msg.Attachments) == 0 {
		return msg.Body
	}
	var b strings.Builder
	b.WriteString(msg.Body)
	for _, a := range msg.Attachments {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("[attachment] ")
		b.WriteString(a)
	}
	return b.String()
}

// relay posts a user message to the session's active thread.
func (r *Router) relay(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	body := relayBody(msg)
	threadID := sess.ActiveThreadID()
	if err := r.chat.PostToThread(ctx, sess.ActivePodID, threadID, body); err != nil {
		return fmt.Errorf("failed to relay message to %s: %w", sess.ActivePodName, err)
	}
	r.audit.Message(audit.MessageEntry{
		SessionKey: sess.Key(),
		Direction:  audit.DirectionInbound,
		PodName:    sess.ActivePodName,
		ThreadID:   threadID,
		Body:       body,
		Demo:       sess.IsDemo,
	})
	return nil
}

// send delivers a message to the user with a fresh idempotency key. Failures
// are counted, audited and returned wrapping domain.ErrSendFailed.
func (r *Router) send(ctx context.Context, sess *domain.Session, body string, dir audit.Direction, operatorID string) (string, error) {
	key := uuid.NewString()
	deliveryID, err := r.messaging.SendToUser(ctx, domain.OutboundMessage{
		ContactAddress: sess.ContactAddress,
		OriginNumber:   sess.OriginNumber,
		Body:           body,
		IdempotencyKey: key,
	})
	entry := audit.MessageEntry{
		SessionKey:     sess.Key(),
		Direction:      dir,
		PodName:        sess.ActivePodName,
		ThreadID:       sess.ActiveThreadID(),
		OperatorID:     operatorID,
		Body:           body,
		DeliveryID:     deliveryID,
		IdempotencyKey: key,
		Demo:           sess.IsDemo,
	}
	if err != nil {
		metrics.SendFailuresTotal.Inc()
		entry.Error = err.Error()
		r.audit.Message(entry)
		r.logger.Error(ctx, "send to user failed", err, map[string]interface{}{"session": sess.Key()})
		return "", fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}
	r.audit.Message(entry)
	return deliveryID, nil
}

// sendAutomated sends a prompt unless a volunteer already took over.
func (r *Router) sendAutomated(ctx context.Context, sess *domain.Session, body string) error {
	if sess.VolunteerEngaged {
		return nil
	}
	_, err := r.send(ctx, sess, body, audit.DirectionAutomated, "")
	return err
}

// annotate posts an operator-visible note; failures are only logged.
func (r *Router) annotate(ctx context.Context, podHandle, threadID, note string) {
	if podHandle == "" || threadID == "" {
		return
	}
	if err := r.chat.PostToThread(ctx, podHandle, threadID, note); err != nil {
		r.logger.Warn(ctx, "failed to annotate thread", map[string]interface{}{
			"pod":    podHandle,
			"thread": threadID,
			"error":  err.Error(),
		})
	}
}

func (r *Router) statusChange(sess *domain.Session, action string, from domain.SessionState, actor string) {
	r.audit.StatusChange(audit.StatusChangeEntry{
		SessionKey: sess.Key(),
		Action:     action,
		FromState:  string(from),
		ToState:    string(sess.State),
		PodName:    sess.ActivePodName,
		Region:     sess.RegionName,
		Actor:      actor,
		Demo:       sess.IsDemo,
	})
}

// matchesToken compares ignoring case, punctuation and spacing.
func matchesToken(body, token string) bool {
	return squash(body) == squash(token)
}

func squash(s string) string {
	var b strings.Builder
	for _, c := range cases.Fold().String(s) {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	return b.String()
}

type nopAudit struct{}

func (nopAudit) Message(audit.MessageEntry)           {}
func (nopAudit) StatusChange(audit.StatusChangeEntry) {}
