// Package sessions persists routing sessions and the thread reverse lookup
// on top of a cache.Store.
package sessions

import (
	"context"
	"fmt"
	"strings"

	"github.com/pilab-dev/helpline/cache"
	"github.com/pilab-dev/helpline/domain"
)

const (
	threadRefContact = "contactAddress"
	threadRefOrigin  = "originNumber"
	threadRefUser    = "userId"
)

// Store reads and writes session records.
type Store struct {
	kv cache.Store
}

// NewStore creates a session store over kv.
func NewStore(kv cache.Store) *Store {
	return &Store{kv: kv}
}

// ThreadKey is the reverse lookup key, "{podHandle}:{threadId}".
func ThreadKey(podHandle, threadID string) string {
	return podHandle + ":" + threadID
}

// Get loads a session. It returns domain.ErrSessionNotFound when absent.
func (s *Store) Get(ctx context.Context, key string) (*domain.Session, error) {
	raw, err := s.kv.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", key, err)
	}
	if len(raw) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return decode(key, raw), nil
}

// Put merges fields into the session record.
func (s *Store) Put(ctx context.Context, key string, fields Fields) error {
	encoded, err := fields.encode()
	if err != nil {
		return err
	}
	if err := s.kv.HSet(ctx, key, encoded); err != nil {
		return fmt.Errorf("failed to write session %s: %w", key, err)
	}
	return nil
}

// Save writes every field of sess, including its visit history.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	return s.Put(ctx, sess.Key(), SessionFields(sess))
}

// Delete removes whole session records.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if err := s.kv.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// PutThread records which session owns a thread.
func (s *Store) PutThread(ctx context.Context, podHandle, threadID string, ref domain.ThreadRef) error {
	return s.kv.HSet(ctx, ThreadKey(podHandle, threadID), map[string]string{
		threadRefContact: ref.ContactAddress,
		threadRefOrigin:  ref.OriginNumber,
		threadRefUser:    ref.UserID,
	})
}

// LookupThread resolves a thread to its session. It returns
// domain.ErrThreadNotFound when the thread is unknown.
func (s *Store) LookupThread(ctx context.Context, podHandle, threadID string) (domain.ThreadRef, error) {
	raw, err := s.kv.HGetAll(ctx, ThreadKey(podHandle, threadID))
	if err != nil {
		return domain.ThreadRef{}, fmt.Errorf("failed to look up thread: %w", err)
	}
	if len(raw) == 0 {
		return domain.ThreadRef{}, domain.ErrThreadNotFound
	}
	return domain.ThreadRef{
		ContactAddress: raw[threadRefContact],
		OriginNumber:   raw[threadRefOrigin],
		UserID:         raw[threadRefUser],
	}, nil
}

// DeleteThread drops the reverse lookup of a thread.
func (s *Store) DeleteThread(ctx context.Context, podHandle, threadID string) error {
	return s.kv.Del(ctx, ThreadKey(podHandle, threadID))
}

// SessionFields flattens a session into storable fields.
func SessionFields(sess *domain.Session) Fields {
	f := Fields{
		FieldUserID:              sess.UserID,
		FieldContactAddress:      sess.ContactAddress,
		FieldOriginNumber:        sess.OriginNumber,
		FieldEntryPoint:          string(sess.EntryPoint),
		FieldIsDemo:              sess.IsDemo,
		FieldState:               string(sess.State),
		FieldConfirmedDisclaimer: sess.ConfirmedDisclaimer,
		FieldRegionName:          sess.RegionName,
		FieldRegionAttempts:      sess.RegionSelectionAttempts,
		FieldActivePodID:         sess.ActivePodID,
		FieldActivePodName:       sess.ActivePodName,
		FieldStatus:              string(sess.Status),
		FieldClaimedBy:           sess.ClaimedBy,
		FieldVolunteerEngaged:    sess.VolunteerEngaged,
		FieldLastMessageEpoch:    sess.LastMessageAt,
		FieldSessionStartEpoch:   sess.SessionStartAt,
	}
	for podID, threadID := range sess.Threads {
		f[ThreadField(podID)] = threadID
	}
	return f
}

func decode(key string, raw map[string]string) *domain.Session {
	sess := &domain.Session{
		UserID:                  raw[FieldUserID],
		ContactAddress:          raw[FieldContactAddress],
		OriginNumber:            raw[FieldOriginNumber],
		EntryPoint:              domain.EntryPoint(raw[FieldEntryPoint]),
		IsDemo:                  parseBool(raw[FieldIsDemo]),
		State:                   domain.SessionState(raw[FieldState]),
		ConfirmedDisclaimer:     parseBool(raw[FieldConfirmedDisclaimer]),
		RegionName:              raw[FieldRegionName],
		RegionSelectionAttempts: parseInt(raw[FieldRegionAttempts]),
		ActivePodID:             raw[FieldActivePodID],
		ActivePodName:           raw[FieldActivePodName],
		Status:                  domain.ThreadStatus(raw[FieldStatus]),
		ClaimedBy:               raw[FieldClaimedBy],
		VolunteerEngaged:        parseBool(raw[FieldVolunteerEngaged]),
		LastMessageAt:           parseEpoch(raw[FieldLastMessageEpoch]),
		SessionStartAt:          parseEpoch(raw[FieldSessionStartEpoch]),
		Threads:                 make(map[string]string),
	}

	// Records written by older handlers carry neither userId nor originNumber.
	if sess.UserID == "" || sess.OriginNumber == "" {
		if i := strings.LastIndex(key, ":"); i > 0 {
			if sess.UserID == "" {
				sess.UserID = key[:i]
			}
			if sess.OriginNumber == "" {
				sess.OriginNumber = key[i+1:]
			}
		}
	}
	if sess.EntryPoint == "" {
		sess.EntryPoint = domain.EntryPointPull
	}
	if sess.State == "" {
		sess.State = domain.DeriveState(sess.ConfirmedDisclaimer, sess.RegionName)
	}

	for k, v := range raw {
		if podID, ok := strings.CutPrefix(k, ThreadFieldPrefix); ok && v != "" {
			sess.Threads[podID] = v
		}
	}
	return sess
}
