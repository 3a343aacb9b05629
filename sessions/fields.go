package sessions

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrUnsupportedFieldType is returned when a session field is not a scalar.
var ErrUnsupportedFieldType = errors.New("unsupported session field type")

// Field names of the session hash. They are part of the persisted contract
// and must not change.
const (
	FieldContactAddress      = "contactAddress"
	FieldOriginNumber        = "originNumber"
	FieldUserID              = "userId"
	FieldEntryPoint          = "entryPoint"
	FieldIsDemo              = "isDemo"
	FieldState               = "state"
	FieldConfirmedDisclaimer = "confirmedDisclaimer"
	FieldRegionName          = "regionName"
	FieldRegionAttempts      = "numRegionSelectionAttempts"
	FieldActivePodID         = "activePodId"
	FieldActivePodName       = "activePodName"
	FieldStatus              = "status"
	FieldClaimedBy           = "claimedBy"
	FieldVolunteerEngaged    = "volunteerEngaged"
	FieldLastMessageEpoch    = "lastMessageEpoch"
	FieldSessionStartEpoch   = "sessionStartEpoch"

	// ThreadFieldPrefix prefixes the flattened visit history: one field
	// "thread:{podId}" per visited pod, holding the thread id.
	ThreadFieldPrefix = "thread:"
)

// ThreadField returns the hash field holding the thread of a pod.
func ThreadField(podID string) string {
	return ThreadFieldPrefix + podID
}

// Fields is a partial session update. Values must be string, bool, int,
// int64 or time.Time; a zero time.Time clears an epoch field.
type Fields map[string]any

// encode converts typed values into their stored string form.
func (f Fields) encode() (map[string]string, error) {
	out := make(map[string]string, len(f))
	for k, v := range f {
		switch val := v.(type) {
		case string:
			out[k] = val
		case bool:
			out[k] = strconv.FormatBool(val)
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case time.Time:
			if val.IsZero() {
				out[k] = ""
			} else {
				out[k] = strconv.FormatInt(val.Unix(), 10)
			}
		default:
			return nil, fmt.Errorf("%w: field %s is %T", ErrUnsupportedFieldType, k, v)
		}
	}
	return out, nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseEpoch(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil || sec <= 0 {
		return time.Time{}
	}
	return time.Unix(int64(sec), 0)
}
