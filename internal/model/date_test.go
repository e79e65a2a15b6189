package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestISOWeekdayAndQuarter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		d       Date
		weekday int
		quarter int
	}{
		{name: "monday_q1", d: NewDate(2024, time.January, 1), weekday: 1, quarter: 1},
		{name: "saturday", d: NewDate(2024, time.January, 6), weekday: 6, quarter: 1},
		{name: "sunday_is_7", d: NewDate(2024, time.January, 7), weekday: 7, quarter: 1},
		{name: "q2_start", d: NewDate(2024, time.April, 1), weekday: 1, quarter: 2},
		{name: "q3_end", d: NewDate(2024, time.September, 30), weekday: 1, quarter: 3},
		{name: "q4", d: NewDate(2024, time.December, 31), weekday: 2, quarter: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.d.ISOWeekday(); got != tc.weekday {
				t.Fatalf("ISOWeekday(%s)=%d, want %d", tc.d, got, tc.weekday)
			}
			if got := tc.d.Quarter(); got != tc.quarter {
				t.Fatalf("Quarter(%s)=%d, want %d", tc.d, got, tc.quarter)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	d, err := ParseDate(" 3/10/2024 ", time.DateOnly, "1/2/2006")
	if err != nil {
		t.Fatalf("ParseDate() err=%v", err)
	}
	if d.String() != "2024-03-10" {
		t.Fatalf("ParseDate()=%s, want 2024-03-10", d)
	}

	if _, err := ParseDate("", time.DateOnly); err == nil {
		t.Fatalf("expected error for empty value")
	}
	if _, err := ParseDate("not-a-date", time.DateOnly); err == nil {
		t.Fatalf("expected error for unparseable value")
	}
}

func TestDateOf_KeepsLocalCalendarDay(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+9", 9*3600)
	d := DateOf(time.Date(2024, time.March, 11, 1, 30, 0, 0, loc))
	if !d.Equal(NewDate(2024, time.March, 11)) {
		t.Fatalf("DateOf()=%s, want 2024-03-11", d)
	}
	if d.Time.Location() != time.UTC {
		t.Fatalf("DateOf() location=%s, want UTC", d.Time.Location())
	}
}

func TestAddDaysAcrossMonth(t *testing.T) {
	t.Parallel()

	d := NewDate(2024, time.February, 28).AddDays(2)
	if d.String() != "2024-03-01" {
		t.Fatalf("AddDays()=%s, want 2024-03-01", d)
	}
	if !NewDate(2024, time.February, 28).Before(d) {
		t.Fatalf("Before() = false, want true")
	}
}

func TestDateScan(t *testing.T) {
	t.Parallel()

	want := NewDate(2024, time.March, 12)
	tests := []struct {
		name    string
		src     any
		want    Date
		wantErr bool
	}{
		{name: "nil", src: nil, want: Date{}},
		{name: "time", src: time.Date(2024, time.March, 12, 0, 0, 0, 0, time.UTC), want: want},
		{name: "string", src: "2024-03-12", want: want},
		{name: "string_with_time", src: "2024-03-12T00:00:00Z", want: want},
		{name: "bytes", src: []byte("2024-03-12 00:00:00"), want: want},
		{name: "empty_string", src: "  ", want: Date{}},
		{name: "garbage", src: "12/03/2024", wantErr: true},
		{name: "unsupported", src: int64(20240312), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var d Date
			err := d.Scan(tc.src)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Scan(%v) err=nil, want error", tc.src)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan(%v) err=%v", tc.src, err)
			}
			if !d.Equal(tc.want) {
				t.Fatalf("Scan(%v)=%v, want %v", tc.src, d, tc.want)
			}
		})
	}
}

func TestDateValue(t *testing.T) {
	t.Parallel()

	v, err := Date{}.Value()
	if err != nil || v != nil {
		t.Fatalf("Value() of absent date=(%v,%v), want (nil,nil)", v, err)
	}

	v, err = NewDate(2024, time.March, 10).Value()
	if err != nil {
		t.Fatalf("Value() err=%v", err)
	}
	tm, ok := v.(time.Time)
	if !ok || !tm.Equal(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("Value()=%v, want 2024-03-10 UTC midnight", v)
	}
}

func TestRoundMoney(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"99.999": "100",
		"10.005": "10.01",
		"0.004":  "0",
		"-1.235": "-1.24",
	}
	for in, want := range tests {
		got := RoundMoney(decimal.RequireFromString(in))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("RoundMoney(%s)=%s, want %s", in, got, want)
		}
	}
}
