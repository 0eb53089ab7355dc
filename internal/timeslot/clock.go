// Package timeslot holds the slot arithmetic behind room availability:
// converting clock strings to minutes, expanding stored range strings
// into 30-minute slots, compacting slots back into ranges and computing
// which slots of a room/day are already taken.
package timeslot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SlotLength is the booking granularity in minutes.
const SlotLength = 30

// The bookable day runs from GridOpen to GridClose; the last slot starts
// at 18:30.
const (
	GridOpen  = 9 * 60
	GridClose = 19 * 60
)

// ErrBadClock is returned for strings that are not HH:MM clock times.
var ErrBadClock = errors.New("invalid clock time")

// ToMinutes converts "HH:MM" into minutes since midnight.  Single-digit
// hours ("9:00") are accepted because older rows contain them.
func ToMinutes(clock string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	if !digits(h) || !digits(m) {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || len(h) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	mins, err := strconv.Atoi(m)
	if err != nil || mins > 59 || len(m) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadClock, clock)
	}
	return hour*60 + mins, nil
}

// digits reports whether s is a nonempty run of ASCII digits.  Atoi alone
// would let "+9" or "-0" through.
func digits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromMinutes renders minutes since midnight as zero-padded "HH:MM".
// Values past 23:59 are not wrapped; callers keep inputs inside a day.
func FromMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Add30 returns the clock time one slot after clock.
func Add30(clock string) (string, error) {
	m, err := ToMinutes(clock)
	if err != nil {
		return "", err
	}
	return FromMinutes(m + SlotLength), nil
}

// Grid returns every bookable slot start of a day, 09:00 through 18:30.
func Grid() []string {
	out := make([]string, 0, (GridClose-GridOpen)/SlotLength)
	for m := GridOpen; m < GridClose; m += SlotLength {
		out = append(out, FromMinutes(m))
	}
	return out
}

// OnGrid reports whether slot is a bookable slot start.
func OnGrid(slot string) bool {
	m, err := ToMinutes(slot)
	if err != nil {
		return false
	}
	return m >= GridOpen && m < GridClose && (m-GridOpen)%SlotLength == 0
}

// SlotRange renders the single-slot range "HH:MM - HH:MM" starting at slot.
func SlotRange(slot string) (string, error) {
	end, err := Add30(slot)
	if err != nil {
		return "", err
	}
	m, _ := ToMinutes(slot)
	return FromMinutes(m) + " - " + end, nil
}
