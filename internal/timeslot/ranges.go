package timeslot

import (
	"sort"
	"strings"
)

// Expand decomposes a stored time field such as "09:00 - 10:30" or
// "09:00-10:00, 14:00~15:00" into the slot starts it covers, in the order
// the ranges appear.  A range contributes every start s with
// start <= s < end.  Ranges missing a side or holding an unreadable clock
// are skipped.
func Expand(field string) []string {
	var slots []string
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		start, end, ok := splitRange(part)
		if !ok {
			continue
		}
		from, err := ToMinutes(start)
		if err != nil {
			continue
		}
		to, err := ToMinutes(end)
		if err != nil {
			continue
		}
		for m := from; m < to; m += SlotLength {
			slots = append(slots, FromMinutes(m))
		}
	}
	return slots
}

func splitRange(r string) (string, string, bool) {
	i := strings.IndexAny(r, "-~")
	if i < 0 {
		return "", "", false
	}
	start := strings.TrimSpace(r[:i])
	end := strings.TrimSpace(r[i+1:])
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}

// Compact merges slot starts into the fewest "start - end" ranges, joined
// by ", ".  Input order does not matter; duplicates and unreadable entries
// are dropped.  An empty input gives "".
func Compact(slots []string) string {
	mins := sortedMinutes(slots)
	if len(mins) == 0 {
		return ""
	}
	var groups []string
	start, end := mins[0], mins[0]+SlotLength
	for _, m := range mins[1:] {
		if m == end {
			end += SlotLength
			continue
		}
		groups = append(groups, FromMinutes(start)+" - "+FromMinutes(end))
		start, end = m, m+SlotLength
	}
	groups = append(groups, FromMinutes(start)+" - "+FromMinutes(end))
	return strings.Join(groups, ", ")
}

// SortSlots returns the valid, distinct slots of in ordered by time.
func SortSlots(in []string) []string {
	mins := sortedMinutes(in)
	out := make([]string, len(mins))
	for i, m := range mins {
		out[i] = FromMinutes(m)
	}
	return out
}

func sortedMinutes(slots []string) []int {
	seen := make(map[int]struct{}, len(slots))
	mins := make([]int, 0, len(slots))
	for _, s := range slots {
		m, err := ToMinutes(s)
		if err != nil {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		mins = append(mins, m)
	}
	sort.Ints(mins)
	return mins
}
