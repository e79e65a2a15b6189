package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date without time-of-day or zone. The zero value is an
// absent (NULL) date.
type Date struct {
	Time  time.Time // always UTC midnight when Valid
	Valid bool
}

// NewDate returns a valid Date for the given calendar day. Out-of-range
// values normalize the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// DateOf keeps the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses s with the first matching layout and keeps only the
// calendar day.
func ParseDate(s string, layouts ...string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("parse date: empty value")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("parse date: %q matches no known layout", s)
}

func (d Date) Year() int          { return d.Time.Year() }
func (d Date) Month() time.Month  { return d.Time.Month() }
func (d Date) Day() int           { return d.Time.Day() }
func (d Date) AddDays(n int) Date { return DateOf(d.Time.AddDate(0, 0, n)) }

// Before reports whether d is strictly earlier than o. Both must be valid.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// Equal compares two dates including validity.
func (d Date) Equal(o Date) bool {
	if d.Valid != o.Valid {
		return false
	}
	return !d.Valid || d.Time.Equal(o.Time)
}

// String renders the ISO form, or "" when absent.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(time.DateOnly)
}

// ISOWeekday numbers Monday as 1 through Sunday as 7.
func (d Date) ISOWeekday() int {
	wd := int(d.Time.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Quarter returns 1..4.
func (d Date) Quarter() int { return (int(d.Month())-1)/3 + 1 }

// Scan accepts the representations drivers hand back for DATE columns:
// time.Time (pgx, go-mssqldb, modernc with DATE affinity) or text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = DateOf(v)
		return nil
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("model.Date: cannot scan %T", src)
	}
}

func (d *Date) scanText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := ParseDate(s, time.DateOnly)
	if err != nil {
		return fmt.Errorf("model.Date: %w", err)
	}
	*d = parsed
	return nil
}

// Value binds the date as a UTC-midnight time.Time, or NULL.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time, nil
}
