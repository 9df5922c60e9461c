package codec

import (
	"bytes"
	"encoding/json"
	"time"
)

// DateLayout is the wire format of every record date: UTC with millisecond
// precision and a trailing Z.
const DateLayout = "2006-01-02T15:04:05.000Z"

// dateLayouts lists the accepted historical formats in match priority. A
// layout is tried only when the input has exactly its length.
var dateLayouts = []struct {
	length int
	layout string
}{
	{24, "2006-01-02T15:04:05.000Z"},
	{23, "2006-01-02T15:04:05.000"},
	{27, "2006-01-02T15:04:05.000000Z"},
	{20, "2006-01-02T15:04:05Z"},
	{19, "2006-01-02T15:04:05"},
	{10, "2006-01-02"},
}

// FormatDate renders t in the wire format.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses any accepted wire format as UTC.
func ParseDate(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if len(s) != l.length {
			continue
		}
		if t, err := time.ParseInLocation(l.layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time is a record date. Unparsable or null values decode to the zero time
// instead of failing the whole record.
type Time struct {
	time.Time
}

// NewTime wraps t.
func NewTime(t time.Time) Time { return Time{Time: t} }

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(FormatDate(t.Time))
}

func (t *Time) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	if parsed, ok := ParseDate(s); ok {
		t.Time = parsed
	}
	return nil
}
