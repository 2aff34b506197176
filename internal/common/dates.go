package common

import (
	"net/http"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateRange is a half-open interval [From, To) in local time, built from
// inclusive YYYY-MM-DD query parameters.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Valid reports whether both bounds were supplied.
func (r DateRange) Valid() bool {
	return !r.From.IsZero() && !r.To.IsZero()
}

// ParseDateRange reads from_date/to_date query parameters. Either side may be
// omitted; when only one is present it bounds both ends, mirroring the way the
// cashbook endpoints treat single-sided ranges.
func ParseDateRange(r *http.Request) (DateRange, error) {
	from := strings.TrimSpace(r.URL.Query().Get("from_date"))
	to := strings.TrimSpace(r.URL.Query().Get("to_date"))
	if from == "" && to == "" {
		return DateRange{}, nil
	}
	if from == "" {
		from = to
	}
	if to == "" {
		to = from
	}
	f, err := time.ParseInLocation(DateLayout, from, time.Local)
	if err != nil {
		return DateRange{}, ValidationError("from_date must be YYYY-MM-DD")
	}
	t, err := time.ParseInLocation(DateLayout, to, time.Local)
	if err != nil {
		return DateRange{}, ValidationError("to_date must be YYYY-MM-DD")
	}
	return DateRange{From: f, To: t.AddDate(0, 0, 1)}, nil
}

// DayBounds returns the half-open [start, end) interval covering the calendar
// day that contains ts.
func DayBounds(ts time.Time) (time.Time, time.Time) {
	start := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	return start, start.AddDate(0, 0, 1)
}
