package router

import (
	"context"
	"fmt"
	"maps"
	"strconv"

	"github.com/pilab-dev/helpline/domain"
	"github.com/pilab-dev/helpline/internal/metrics"
	"go.opentelemetry.io/otel/attribute"
)

// Reroute moves the session stored under key to the named pod. Unknown pods
// yield domain.ErrPodNotFound and leave the session untouched.
func (r *Router) Reroute(ctx context.Context, key, podName, actor string) error {
	ctx, span := tracer.Start(ctx, "router.Reroute")
	defer span.End()
	span.SetAttributes(attribute.String("pod.name", podName))

	sess, err := r.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	return r.reroute(ctx, sess, podName, actor)
}

func (r *Router) reroute(ctx context.Context, sess *domain.Session, podName, actor string) error {
	next := *sess
	next.Threads = maps.Clone(sess.Threads)
	if _, err := r.moveTo(ctx, &next, podName, actor); err != nil {
		return err
	}
	*sess = next
	r.statusChange(sess, "rerouted", sess.State, actor)
	return nil
}

// moveTo makes podName the active pod of sess and persists the session. A
// pod visited before has its thread reactivated; otherwise a new thread is
// created with a summary. The previous thread is marked rerouted. It reports
// whether a new thread was created. Nothing is written unless the
// destination thread is ready.
func (r *Router) moveTo(ctx context.Context, sess *domain.Session, podName, actor string) (bool, error) {
	handle, err := r.handles.Resolve(ctx, podName)
	if err != nil {
		return false, err
	}

	prevHandle, prevThread, prevName := sess.ActivePodID, sess.ActiveThreadID(), sess.ActivePodName
	if handle == prevHandle && prevThread != "" {
		sess.ActivePodName = podName
		return false, r.sessions.Save(ctx, sess)
	}

	blocks := r.blocks(sess, podName)
	threadID, visited := sess.Threads[handle]
	if visited {
		if err := r.chat.ReplaceThreadBlocks(ctx, handle, threadID, blocks); err != nil {
			return false, fmt.Errorf("failed to reactivate thread in %s: %w", podName, err)
		}
		r.annotate(ctx, handle, threadID, rerouteSummary(sess, prevName, actor))
	} else {
		threadID, err = r.chat.CreateThread(ctx, handle, rerouteSummary(sess, prevName, actor), blocks)
		if err != nil {
			return false, fmt.Errorf("failed to create thread in %s: %w", podName, err)
		}
		if err := r.sessions.PutThread(ctx, handle, threadID, threadRef(sess)); err != nil {
			return false, err
		}
	}

	sess.Threads[handle] = threadID
	sess.ActivePodID = handle
	sess.ActivePodName = podName
	if err := r.sessions.Save(ctx, sess); err != nil {
		return false, err
	}

	if prevThread != "" {
		r.markRerouted(ctx, prevHandle, prevThread, podName)
	}
	metrics.ReroutesTotal.WithLabelValues(strconv.FormatBool(!visited)).Inc()
	r.logger.Info(ctx, "session moved", map[string]interface{}{
		"session":    sess.Key(),
		"from":       prevName,
		"to":         podName,
		"new_thread": !visited,
	})
	return !visited, nil
}

// markRerouted flags a thread the session has left. Failures only cost the
// operators a stale panel, so they are logged.
func (r *Router) markRerouted(ctx context.Context, podHandle, threadID, destination string) {
	blocks, err := r.chat.FetchThreadBlocks(ctx, podHandle, threadID)
	if err != nil {
		r.logger.Warn(ctx, "failed to fetch thread blocks", map[string]interface{}{"pod": podHandle, "error": err.Error()})
	}
	blocks.Status = domain.ThreadRerouted
	blocks.Note = fmt.Sprintf(noteRerouted, destination)
	if err := r.chat.ReplaceThreadBlocks(ctx, podHandle, threadID, blocks); err != nil {
		r.logger.Warn(ctx, "failed to mark thread rerouted", map[string]interface{}{"pod": podHandle, "error": err.Error()})
	}
}

func rerouteSummary(sess *domain.Session, from, actor string) string {
	region := sess.RegionName
	if region == "" {
		region = "unknown region"
	}
	s := fmt.Sprintf("Session (%s, %s) moved here", region, sess.EntryPoint)
	if from != "" {
		s += " from " + from
	}
	if actor != "" {
		s += " by " + actor
	}
	return s + "."
}
