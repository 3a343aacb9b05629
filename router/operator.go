package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/internal/audit"
	"github.com/pilab-dev/helpline/sessions"
	"go.opentelemetry.io/otel/attribute"
)

// OperatorDedupKey is the dedup key of a chat event.
func OperatorDedupKey(eventID string) string {
	return "chat:" + eventID
}

// HandleOperatorMessage relays an operator reply to the user, or executes it
// when it is a command. Redelivered events are ignored unless the earlier
// delivery failed: the event is released on error so a retry runs again.
func (r *Router) HandleOperatorMessage(ctx context.Context, m domain.OperatorMessage) (err error) {
	ctx, span := tracer.Start(ctx, "router.HandleOperatorMessage")
	defer span.End()

	if m.EventID != "" {
		key := OperatorDedupKey(m.EventID)
		if !r.dedup.Claim(ctx, key) {
			span.SetAttributes(attribute.Bool("duplicate", true))
			return nil
		}
		defer func() {
			if err != nil {
				r.dedup.Release(ctx, key)
			}
		}()
	}

	ref, err := r.sessions.LookupThread(ctx, m.PodHandle, m.ThreadID)
	if err != nil {
		return err
	}
	sess, err := r.sessions.Get(ctx, ref.SessionKey())
	if err != nil {
		return err
	}

	cmd, isCommand, err := ParseCommand(m.Body)
	if isCommand {
		if err == nil {
			err = r.execute(ctx, sess, cmd, m.OperatorID)
		}
		if err != nil {
			r.annotate(ctx, m.PodHandle, m.ThreadID, fmt.Sprintf(noteCommandFailed, m.Body, err))
		}
		return err
	}

	if m.PodHandle != sess.ActivePodID || m.ThreadID != sess.ActiveThreadID() {
		r.annotate(ctx, m.PodHandle, m.ThreadID, fmt.Sprintf(noteInactiveThread, sess.ActivePodName))
		return domain.ErrThreadInactive
	}
	if sess.IsStale() {
		r.annotate(ctx, m.PodHandle, m.ThreadID, noteStale)
		return domain.ErrStaleSession
	}

	if _, err := r.send(ctx, sess, m.Body, audit.DirectionOutbound, m.OperatorID); err != nil {
		r.annotate(ctx, m.PodHandle, m.ThreadID, fmt.Sprintf(noteSendFailed, err))
		return err
	}
	return r.markEngaged(ctx, sess, m.OperatorID)
}

// markEngaged records the first operator reply on the session and its panel.
func (r *Router) markEngaged(ctx context.Context, sess *domain.Session, operatorID string) error {
	if sess.VolunteerEngaged && sess.Status == domain.ThreadActive {
		return nil
	}
	sess.VolunteerEngaged = true
	sess.Status = domain.ThreadActive
	if sess.ClaimedBy == "" {
		sess.ClaimedBy = operatorID
	}
	if err := r.sessions.Put(ctx, sess.Key(), sessions.Fields{
		sessions.FieldVolunteerEngaged: true,
		sessions.FieldStatus:           string(sess.Status),
		sessions.FieldClaimedBy:        sess.ClaimedBy,
	}); err != nil {
		return err
	}
	if err := r.chat.ReplaceThreadBlocks(ctx, sess.ActivePodID, sess.ActiveThreadID(), r.blocks(sess, sess.ActivePodName)); err != nil {
		r.logger.Warn(ctx, "failed to update thread blocks", map[string]interface{}{"session": sess.Key(), "error": err.Error()})
	}
	return nil
}

// Execute runs an administrative command against the session stored under
// key.
func (r *Router) Execute(ctx context.Context, key string, cmd domain.Command, actor string) error {
	sess, err := r.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	return r.execute(ctx, sess, cmd, actor)
}

func (r *Router) execute(ctx context.Context, sess *domain.Session, cmd domain.Command, actor string) error {
	ctx, span := tracer.Start(ctx, "router.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("command", cmd.Name()))

	r.logger.Info(ctx, "executing session command", map[string]interface{}{
		"session": sess.Key(),
		"command": cmd.Name(),
		"actor":   actor,
	})

	switch c := cmd.(type) {
	case domain.RerouteCommand:
		return r.reroute(ctx, sess, c.PodName, actor)
	case domain.ForceRegionCommand:
		region, ok := r.regions.Canonical(c.Region)
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownRegion, c.Region)
		}
		return r.assignRegion(ctx, sess, region, actor)
	case domain.ResumeSessionCommand:
		return r.resume(ctx, sess)
	case domain.NewSessionCommand:
		return r.newSession(ctx, sess, c.PodName, actor)
	case domain.EndSessionCommand:
		return r.endSession(ctx, sess, actor)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownCommand, cmd.Name())
	}
}

// resume gives a stale session a start time, taken from the earliest
// message of its active thread.
func (r *Router) resume(ctx context.Context, sess *domain.Session) error {
	if !sess.IsStale() {
		return nil
	}
	start := r.now()
	if threadID := sess.ActiveThreadID(); threadID != "" {
		msgs, err := r.chat.FetchThreadMessages(ctx, sess.ActivePodID, threadID)
		if err != nil {
			r.logger.Warn(ctx, "failed to fetch thread history, resuming from now", map[string]interface{}{
				"session": sess.Key(),
				"error":   err.Error(),
			})
		}
		for _, m := range msgs {
			if !m.SentAt.IsZero() && m.SentAt.Before(start) {
				start = m.SentAt
			}
		}
	}
	sess.SessionStartAt = start
	if err := r.sessions.Put(ctx, sess.Key(), sessions.Fields{sessions.FieldSessionStartEpoch: start}); err != nil {
		return err
	}
	r.annotate(ctx, sess.ActivePodID, sess.ActiveThreadID(), noteResumed)
	return nil
}

// newSession ends the current session and opens a fresh, cleared one in
// podName for the same user.
func (r *Router) newSession(ctx context.Context, sess *domain.Session, podName, actor string) error {
	handle, err := r.handles.Resolve(ctx, podName)
	if err != nil {
		return err
	}
	if err := r.endSession(ctx, sess, actor); err != nil {
		return err
	}

	now := r.now()
	fresh := &domain.Session{
		UserID:              sess.UserID,
		OriginNumber:        sess.OriginNumber,
		ContactAddress:      sess.ContactAddress,
		EntryPoint:          sess.EntryPoint,
		IsDemo:              sess.IsDemo,
		State:               domain.StateNew,
		ConfirmedDisclaimer: true,
		RegionName:          sess.RegionName,
		Threads:             make(map[string]string),
		Status:              domain.ThreadUnclaimed,
		LastMessageAt:       now,
		SessionStartAt:      now,
	}
	threadID, err := r.chat.CreateThread(ctx, handle, rerouteSummary(fresh, "", actor), r.blocks(fresh, podName))
	if err != nil {
		return fmt.Errorf("failed to create thread in %s: %w", podName, err)
	}
	if err := r.sessions.PutThread(ctx, handle, threadID, threadRef(fresh)); err != nil {
		return err
	}
	fresh.Threads[handle] = threadID
	fresh.ActivePodID = handle
	fresh.ActivePodName = podName
	if err := fresh.Transition(domain.StateCleared); err != nil {
		return err
	}
	if err := r.sessions.Save(ctx, fresh); err != nil {
		return err
	}
	r.statusChange(fresh, "session_started", domain.StateNew, actor)
	return nil
}

// EndSession tears down the session stored under key.
func (r *Router) EndSession(ctx context.Context, key, actor string) error {
	sess, err := r.sessions.Get(ctx, key)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return r.endSession(ctx, sess, actor)
}

// endSession closes the active thread, drops every reverse lookup and
// deletes the record. All steps run; their errors are combined.
func (r *Router) endSession(ctx context.Context, sess *domain.Session, actor string) error {
	from := sess.State
	if err := sess.Transition(domain.StateEnded); err != nil {
		return err
	}

	var result *multierror.Error
	if threadID := sess.ActiveThreadID(); threadID != "" {
		blocks := r.blocks(sess, sess.ActivePodName)
		blocks.Status = domain.ThreadClosed
		blocks.Note = noteEnded
		if err := r.chat.ReplaceThreadBlocks(ctx, sess.ActivePodID, threadID, blocks); err != nil {
			result = multierror.Append(result, fmt.Errorf("close thread: %w", err))
		}
	}
	for handle, threadID := range sess.Threads {
		if err := r.sessions.DeleteThread(ctx, handle, threadID); err != nil {
			result = multierror.Append(result, fmt.Errorf("drop thread %s: %w", threadID, err))
		}
	}
	if err := r.sessions.Delete(ctx, sess.Key()); err != nil {
		result = multierror.Append(result, err)
	}

	r.statusChange(sess, "session_ended", from, actor)
	return result.ErrorOrNil()
}
