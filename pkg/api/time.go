package api

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Layouts the backend has been seen to use. Zoneless values are the server's
// local date-times and are read in the local zone.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// timestamp decodes a date-time leniently. Anything it cannot read becomes
// the zero time instead of failing the whole response.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	// epoch milliseconds
	if data[0] != '"' {
		var ms int64
		if err := json.Unmarshal(data, &ms); err == nil && ms > 0 {
			t.Time = time.UnixMilli(ms)
		}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	t.Time = parseTimestamp(s)
	return nil
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}
