package audit

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogRecorder writes audit entries as raw JSON log lines.
type LogRecorder struct {
	logger zerolog.Logger
}

// NewLogRecorder writes to w, or stdout when w is nil.
func NewLogRecorder(w io.Writer) *LogRecorder {
	if w == nil {
		w = os.Stdout
	}
	return &LogRecorder{logger: zerolog.New(w).With().Timestamp().Logger()}
}

// RecordMessage implements Recorder.
func (l *LogRecorder) RecordMessage(_ context.Context, entry MessageEntry) error {
	return l.write("audit_message", entry)
}

// RecordStatusChange implements Recorder.
func (l *LogRecorder) RecordStatusChange(_ context.Context, entry StatusChangeEntry) error {
	return l.write("audit_status_change", entry)
}

func (l *LogRecorder) write(kind string, entry any) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("kind", kind).Msg("Failed to marshal audit event to JSON")
		return err
	}
	l.logger.Log().RawJSON(kind, raw).Msg("")
	return nil
}
