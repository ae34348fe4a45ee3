package models

import (
	"encoding/json"
	"time"
)

// Millis is an epoch-millisecond timestamp that tolerates the two formats
// devices actually send: a numeric epoch-ms value or an ISO-8601 string.
// Anything unparseable decodes to zero and is later normalized by the
// record's Normalize method.
type Millis int64

func (m *Millis) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*m = 0
		return nil
	}
	switch value := v.(type) {
	case float64:
		*m = Millis(int64(value))
	case string:
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			*m = 0
			return nil
		}
		*m = Millis(t.UnixMilli())
	default:
		*m = 0
	}
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(m))
}

// NowMillis returns the current server time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
