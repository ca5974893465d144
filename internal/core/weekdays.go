package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a set of weekdays stored as a bitmask, bit 0 = Sunday.
type WeekdaySet uint8

const allWeekdays WeekdaySet = 1<<7 - 1

// NewWeekdaySet builds a set from the given weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

// With returns s plus d. Values outside 0..6 are ignored.
func (s WeekdaySet) With(d time.Weekday) WeekdaySet {
	if d < time.Sunday || d > time.Saturday {
		return s
	}
	return s | 1<<uint(d)
}

func (s WeekdaySet) Contains(d time.Weekday) bool {
	if d < time.Sunday || d > time.Saturday {
		return false
	}
	return s&(1<<uint(d)) != 0
}

func (s WeekdaySet) IsEmpty() bool { return s&allWeekdays == 0 }

// Len returns the number of weekdays in the set.
func (s WeekdaySet) Len() int {
	n := 0
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			n++
		}
	}
	return n
}

// Days returns the members in ascending order.
func (s WeekdaySet) Days() []time.Weekday {
	out := make([]time.Weekday, 0, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// String returns the comma separated form, e.g. "1,3,5".
func (s WeekdaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

// ParseWeekdaySet parses "1,3,5". Blank input yields the empty set.
func ParseWeekdaySet(s string) (WeekdaySet, error) {
	var set WeekdaySet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return 0, fmt.Errorf("invalid weekday %q: must be 0..6", part)
		}
		set = set.With(time.Weekday(n))
	}
	return set, nil
}

// MarshalJSON encodes the set as an array of weekday numbers.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	days := s.Days()
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return []byte("[" + strings.Join(parts, ",") + "]"), nil
}

func (s *WeekdaySet) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = 0
		return nil
	}
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	parsed, err := ParseWeekdaySet(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
