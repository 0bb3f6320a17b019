package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from local
// midnight, rejecting anything else (including a full RFC 3339 timestamp —
// the schedule only ever carries a time-of-day, not a date). Exported so
// callers translating a ScheduleEntry into another package's representation
// don't need to re-implement the parse.
func ParseTimeOfDay(s string) (time.Duration, error) {
	return parseTimeOfDay(s)
}

func parseTimeOfDay(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time-of-day %q, want HH:MM or HH:MM:SS", s)
	}

	hh, err := strconv.Atoi(parts[0])
	if err != nil || hh < 0 || hh > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mm, err := strconv.Atoi(parts[1])
	if err != nil || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	ss := 0
	if len(parts) == 3 {
		ss, err = strconv.Atoi(parts[2])
		if err != nil || ss < 0 || ss > 59 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}

	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second, nil
}
