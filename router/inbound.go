package router

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"

	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/internal/metrics"
	"github.com/pilab-dev/helpline/routing"
	"github.com/pilab-dev/helpline/sessions"
)

// startSession creates the session for a first contact. PUSH sessions go
// straight to a regional pod; PULL sessions wait in the lobby for the
// disclaimer.
func (r *Router) startSession(ctx context.Context, userID string, msg domain.InboundMessage) error {
	demo := r.isDemo(msg.OriginNumber)
	sess := &domain.Session{
		UserID:         userID,
		OriginNumber:   msg.OriginNumber,
		ContactAddress: msg.ContactAddress,
		EntryPoint:     r.entryPoint(msg.OriginNumber),
		IsDemo:         demo,
		State:          domain.StateNew,
		Threads:        make(map[string]string),
		Status:         domain.ThreadUnclaimed,
		LastMessageAt:  msg.ReceivedAt,
		SessionStartAt: msg.ReceivedAt,
	}
	metrics.SessionsCreatedTotal.WithLabelValues(string(sess.EntryPoint), strconv.FormatBool(demo)).Inc()

	if sess.EntryPoint == domain.EntryPointPush {
		region := r.opts.PushNumberRegions[msg.OriginNumber]
		if region == "" {
			region = routing.OverflowRegion
		}
		sess.RegionName = region
		podName := r.balancer.SelectPod(ctx, region, sess.EntryPoint, demo)
		err := r.openThread(ctx, sess, podName, relayBody(msg))
		if errors.Is(err, domain.ErrPodNotFound) && podName != routing.SyntheticOverflowPod(demo) {
			r.logger.Warn(ctx, "push pod unroutable, using overflow", map[string]interface{}{
				"session": sess.Key(),
				"pod":     podName,
				"error":   err.Error(),
			})
			cause := err
			if err = r.openThread(ctx, sess, routing.SyntheticOverflowPod(demo), relayBody(msg)); err == nil {
				r.annotate(ctx, sess.ActivePodID, sess.ActiveThreadID(), fmt.Sprintf(noteUnroutable, region, cause))
			}
		}
		if err != nil {
			return err
		}
		if err := sess.Transition(domain.StateCleared); err != nil {
			return err
		}
		if err := r.sessions.Save(ctx, sess); err != nil {
			return err
		}
		r.statusChange(sess, "session_started", domain.StateNew, "")
		return nil
	}

	if err := r.openThread(ctx, sess, r.lobby(demo), relayBody(msg)); err != nil {
		return err
	}
	if err := sess.Transition(domain.StateAwaitingDisclaimer); err != nil {
		return err
	}
	if err := r.sessions.Save(ctx, sess); err != nil {
		return err
	}
	r.statusChange(sess, "session_started", domain.StateNew, "")
	return r.sendAutomated(ctx, sess, promptWelcome)
}

// openThread creates a thread for sess in the named pod, makes it active and
// records its reverse lookup. The session record itself is not written.
func (r *Router) openThread(ctx context.Context, sess *domain.Session, podName, body string) error {
	handle, err := r.handles.Resolve(ctx, podName)
	if err != nil {
		return err
	}
	threadID, err := r.chat.CreateThread(ctx, handle, body, r.blocks(sess, podName))
	if err != nil {
		return fmt.Errorf("failed to create thread in %s: %w", podName, err)
	}
	if err := r.sessions.PutThread(ctx, handle, threadID, threadRef(sess)); err != nil {
		return err
	}
	sess.Threads[handle] = threadID
	sess.ActivePodID = handle
	sess.ActivePodName = podName
	return nil
}

func (r *Router) handleDisclaimer(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	if err := r.relay(ctx, sess, msg); err != nil {
		return err
	}
	sess.LastMessageAt = msg.ReceivedAt
	if sess.VolunteerEngaged {
		return r.sessions.Put(ctx, sess.Key(), sessions.Fields{sessions.FieldLastMessageEpoch: sess.LastMessageAt})
	}

	if !matchesToken(msg.Body, r.opts.DisclaimerToken) {
		if err := r.sessions.Put(ctx, sess.Key(), sessions.Fields{sessions.FieldLastMessageEpoch: sess.LastMessageAt}); err != nil {
			return err
		}
		return r.sendAutomated(ctx, sess, promptDisclaimerRetry)
	}

	from := sess.State
	if err := sess.Transition(domain.StateAwaitingRegion); err != nil {
		return err
	}
	sess.ConfirmedDisclaimer = true
	if err := r.sessions.Put(ctx, sess.Key(), sessions.Fields{
		sessions.FieldConfirmedDisclaimer: true,
		sessions.FieldState:               string(sess.State),
		sessions.FieldLastMessageEpoch:    sess.LastMessageAt,
	}); err != nil {
		return err
	}
	r.statusChange(sess, "disclaimer_confirmed", from, "")
	return r.sendAutomated(ctx, sess, promptRegion)
}

func (r *Router) handleRegion(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	if err := r.relay(ctx, sess, msg); err != nil {
		return err
	}
	sess.LastMessageAt = msg.ReceivedAt
	if sess.VolunteerEngaged {
		return r.sessions.Put(ctx, sess.Key(), sessions.Fields{sessions.FieldLastMessageEpoch: sess.LastMessageAt})
	}

	region, ok := r.regions.Parse(msg.Body)
	if !ok {
		sess.RegionSelectionAttempts++
		if err := r.sessions.Put(ctx, sess.Key(), sessions.Fields{
			sessions.FieldRegionAttempts:   sess.RegionSelectionAttempts,
			sessions.FieldLastMessageEpoch: sess.LastMessageAt,
		}); err != nil {
			return err
		}
		if sess.RegionSelectionAttempts < r.opts.RegionSelectionLimit {
			return r.sendAutomated(ctx, sess, promptRegionRetry)
		}
		region = routing.OverflowRegion
		metrics.RegionFallbacksTotal.Inc()
	}

	if err := r.assignRegion(ctx, sess, region, ""); err != nil {
		if !errors.Is(err, domain.ErrPodNotFound) {
			return err
		}
		// The session stays in the lobby; the user can name the state again.
		r.logger.Warn(ctx, "region pod unroutable", map[string]interface{}{
			"session": sess.Key(),
			"region":  region,
			"error":   err.Error(),
		})
		r.annotate(ctx, sess.ActivePodID, sess.ActiveThreadID(), fmt.Sprintf(noteUnroutable, region, err))
		return r.sendAutomated(ctx, sess, fmt.Sprintf(promptUnroutable, region))
	}
	if region == routing.OverflowRegion {
		return r.sendAutomated(ctx, sess, promptConnectingOverflow)
	}
	return r.sendAutomated(ctx, sess, fmt.Sprintf(promptConnecting, region))
}

// assignRegion clears the session into the next pod of region.
func (r *Router) assignRegion(ctx context.Context, sess *domain.Session, region, actor string) error {
	podName := r.balancer.SelectPod(ctx, region, sess.EntryPoint, sess.IsDemo)
	from := sess.State
	next := *sess
	next.Threads = maps.Clone(sess.Threads)
	next.RegionName = region
	next.ConfirmedDisclaimer = true
	if err := next.Transition(domain.StateCleared); err != nil {
		return err
	}
	if _, err := r.moveTo(ctx, &next, podName, actor); err != nil {
		return err
	}
	*sess = next
	r.statusChange(sess, "region_assigned", from, actor)
	return nil
}

func (r *Router) handleCleared(ctx context.Context, sess *domain.Session, msg domain.InboundMessage) error {
	if !sess.VolunteerEngaged && !sess.LastMessageAt.IsZero() &&
		msg.ReceivedAt.Sub(sess.LastMessageAt) > r.opts.WelcomeBackAfter {
		metrics.WelcomeBackTotal.Inc()
		if err := r.sendAutomated(ctx, sess, promptWelcomeBack); err != nil {
			r.logger.Warn(ctx, "welcome back notice not sent", map[string]interface{}{
				"session": sess.Key(),
				"error":   err.Error(),
			})
		}
	}

	if sess.ActiveThreadID() == "" {
		podName := sess.ActivePodName
		if podName == "" {
			podName = r.balancer.SelectPod(ctx, sess.RegionName, sess.EntryPoint, sess.IsDemo)
		}
		if podName == "" {
			podName = routing.SyntheticOverflowPod(sess.IsDemo)
		}
		if err := r.openThread(ctx, sess, podName, relayBody(msg)); err != nil {
			return err
		}
		sess.LastMessageAt = msg.ReceivedAt
		return r.sessions.Save(ctx, sess)
	}

	if err := r.relay(ctx, sess, msg); err != nil {
		return err
	}
	return r.sessions.Put(ctx, sess.Key(), sessions.Fields{sessions.FieldLastMessageEpoch: msg.ReceivedAt})
}
