package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayLayout is the only format a Day is written in, both to the store and
// to clients.
const DayLayout = "2006-01-02"

// ErrBadDay is returned when a string cannot be read as a calendar day.
var ErrBadDay = errors.New("invalid date")

// Day is a calendar date without time of day or location.  Reservations
// are keyed by Day so two bookings on the same date always compare equal
// no matter how the date was typed.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar day of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day{Year: y, Month: m, Day: d}
}

// ParseDay reads the canonical 2006-01-02 form as well as the dotted and
// slashed shapes found in older rows ("2025. 9. 18.", "2025.09.18",
// "2025/9/18").  Impossible dates such as 2025-02-30 are rejected.
func ParseDay(s string) (Day, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Day{}, ErrBadDay
	}
	norm := strings.NewReplacer(".", " ", "/", " ", "-", " ").Replace(raw)
	parts := strings.Fields(norm)
	if len(parts) != 3 {
		return Day{}, fmt.Errorf("%w: %q", ErrBadDay, s)
	}
	nums := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Day{}, fmt.Errorf("%w: %q", ErrBadDay, s)
		}
		nums[i] = n
	}
	d := Day{Year: nums[0], Month: time.Month(nums[1]), Day: nums[2]}
	if !d.valid() {
		return Day{}, fmt.Errorf("%w: %q", ErrBadDay, s)
	}
	return d, nil
}

func (d Day) valid() bool {
	if d.Year < 1 || d.Month < time.January || d.Month > time.December || d.Day < 1 {
		return false
	}
	return DayOf(d.Time()) == d
}

// Time returns midnight UTC of the day.
func (d Day) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d == Day{} }

func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Value stores the day as its canonical string.
func (d Day) Value() (driver.Value, error) {
	return d.String(), nil
}

// Scan accepts the canonical string, any legacy shape ParseDay knows, or
// a DATE column decoded to time.Time.
func (d *Day) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DayOf(v)
		return nil
	case string:
		p, err := ParseDay(v)
		if err != nil {
			return err
		}
		*d = p
		return nil
	case []byte:
		return d.Scan(string(v))
	case nil:
		*d = Day{}
		return nil
	}
	return fmt.Errorf("model: cannot scan %T into Day", src)
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText lets echo bind ?date= query parameters straight into a Day.
func (d *Day) UnmarshalText(b []byte) error {
	p, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}
