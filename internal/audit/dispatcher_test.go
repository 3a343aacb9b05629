package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordMessage(ctx context.Context, entry MessageEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockRecorder) RecordStatusChange(ctx context.Context, entry StatusChangeEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	rec := new(MockRecorder)
	var mu sync.Mutex
	var bodies []string
	rec.On("RecordMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		bodies = append(bodies, args.Get(1).(MessageEntry).Body)
	}).Return(nil)
	rec.On("RecordStatusChange", mock.Anything, mock.MatchedBy(func(e StatusChangeEntry) bool {
		return e.ID != "" && !e.Timestamp.IsZero() && e.ToState == "CLEARED"
	})).Return(nil).Once()

	d := NewDispatcher(rec, 10)
	d.Message(MessageEntry{Body: "one", Direction: DirectionInbound})
	d.Message(MessageEntry{Body: "two", Direction: DirectionOutbound})
	d.StatusChange(StatusChangeEntry{ToState: "CLEARED"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, []string{"one", "two"}, bodies)
	rec.AssertExpectations(t)
}

func TestDispatcher_FillsIDAndTimestamp(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("RecordMessage", mock.Anything, mock.MatchedBy(func(e MessageEntry) bool {
		return e.ID == "fixed" && !e.Timestamp.IsZero()
	})).Return(nil).Once()
	rec.On("RecordMessage", mock.Anything, mock.MatchedBy(func(e MessageEntry) bool {
		return e.ID != "" && e.ID != "fixed"
	})).Return(nil).Once()

	d := NewDispatcher(rec, 10)
	d.Message(MessageEntry{ID: "fixed"})
	d.Message(MessageEntry{})
	require.NoError(t, d.Close(context.Background()))
	rec.AssertExpectations(t)
}

func TestDispatcher_RecorderErrorsDoNotStopDelivery(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("RecordMessage", mock.Anything, mock.MatchedBy(func(e MessageEntry) bool { return e.Body == "bad" })).
		Return(errors.New("mongo down"))
	rec.On("RecordMessage", mock.Anything, mock.MatchedBy(func(e MessageEntry) bool { return e.Body == "good" })).
		Return(nil)

	d := NewDispatcher(rec, 10)
	d.Message(MessageEntry{Body: "bad"})
	d.Message(MessageEntry{Body: "good"})
	require.NoError(t, d.Close(context.Background()))
	rec.AssertNumberOfCalls(t, "RecordMessage", 2)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	rec := new(MockRecorder)
	release := make(chan struct{})
	rec.On("RecordMessage", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
	}).Return(nil)

	d := NewDispatcher(rec, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			d.Message(MessageEntry{Body: "x"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitting blocked on a full queue")
	}
	close(release)
	require.NoError(t, d.Close(context.Background()))

	calls := len(rec.Calls)
	assert.Less(t, calls, 50)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestDispatcher_EmitAfterCloseIsDropped(t *testing.T) {
	rec := new(MockRecorder)
	d := NewDispatcher(rec, 1)
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.Message(MessageEntry{Body: "late"}) })
	assert.NoError(t, d.Close(context.Background()))
	rec.AssertNotCalled(t, "RecordMessage", mock.Anything, mock.Anything)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	rec := NewLogRecorder(&buf)

	require.NoError(t, rec.RecordMessage(context.Background(), MessageEntry{
		ID:         "m1",
		SessionKey: "u1:+15550001",
		Direction:  DirectionAutomated,
		Body:       "Reply AGREE to continue",
	}))
	require.NoError(t, rec.RecordStatusChange(context.Background(), StatusChangeEntry{ID: "s1", ToState: "ENDED"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var line struct {
		Message MessageEntry `json:"audit_message"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &line))
	assert.Equal(t, "m1", line.Message.ID)
	assert.Equal(t, DirectionAutomated, line.Message.Direction)
	assert.Contains(t, lines[1], `"audit_status_change"`)
}
