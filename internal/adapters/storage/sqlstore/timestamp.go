package sqlstore

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// naiveLayout is how timestamps are written: UTC wall clock, no zone.
const naiveLayout = "2006-01-02 15:04:05.000000"

var readLayouts = []string{
	naiveLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
}

// naiveTime stores an optional instant as a naive UTC timestamp and reads
// it back as UTC.
type naiveTime struct {
	t *time.Time
}

func naive(t *time.Time) naiveTime { return naiveTime{t: t} }

func naiveAt(t time.Time) naiveTime { return naiveTime{t: &t} }

func (n naiveTime) Value() (driver.Value, error) {
	if n.t == nil {
		return nil, nil
	}
	return n.t.UTC().Format(naiveLayout), nil
}

func (n *naiveTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.t = nil
		return nil
	case time.Time:
		// drivers hand back naive columns in UTC or with a fake zone; keep
		// the wall clock
		t := time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), time.UTC)
		n.t = &t
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (n *naiveTime) parse(s string) error {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			n.t = &t
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

// orZero returns the zero time for NULL.
func (n naiveTime) orZero() time.Time {
	if n.t == nil {
		return time.Time{}
	}
	return *n.t
}
