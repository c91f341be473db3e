package gate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time as an offset from local midnight.
type TimeOfDay time.Duration

var timeOfDayPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(?::(\d{2}))?$`)

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	m := timeOfDayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time of day %q, expected HH:MM[:SS]", s)
	}

	hour, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}

	if hour > 23 {
		return 0, fmt.Errorf("invalid hour: %d", hour)
	}
	if min > 59 {
		return 0, fmt.Errorf("invalid minute: %d", min)
	}
	if sec > 59 {
		return 0, fmt.Errorf("invalid second: %d", sec)
	}

	d := time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute + time.Duration(sec)*time.Second
	return TimeOfDay(d), nil
}

// Of returns the time of day of t in t's location.
func Of(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Weekday indexes days Monday first: 0=Mon .. 6=Sun.
type Weekday int

// WeekdayOf converts a Go weekday (Sunday first) to a Monday-first index.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// Schedule configures when and how often a monitor may apply colors.
// Nil bounds and an empty day set mean no restriction.
type Schedule struct {
	OnlyAtNight bool
	ActiveStart *TimeOfDay
	ActiveEnd   *TimeOfDay
	ActiveDays  []Weekday
	MinDelta    float64
	RateLimit   time.Duration
}

// Validate checks the value ranges that cannot be expressed in the type.
func (s Schedule) Validate() error {
	if s.MinDelta < 0 {
		return fmt.Errorf("min_delta must be >= 0, got %v", s.MinDelta)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("rate limit must be >= 0, got %s", s.RateLimit)
	}
	for _, d := range s.ActiveDays {
		if d < 0 || d > 6 {
			return fmt.Errorf("active day %d out of range 0..6", d)
		}
	}
	return nil
}

// inWindow reports whether now falls in the active window. The window is
// inclusive on both ends and wraps midnight when start is after end. A
// window with only one bound set does not restrict anything.
func (s Schedule) inWindow(now time.Time) bool {
	if s.ActiveStart == nil || s.ActiveEnd == nil {
		return true
	}
	start, end, cur := *s.ActiveStart, *s.ActiveEnd, Of(now)
	if start > end {
		return cur >= start || cur <= end
	}
	return start <= cur && cur <= end
}

func (s Schedule) onActiveDay(now time.Time) bool {
	if len(s.ActiveDays) == 0 {
		return true
	}
	today := WeekdayOf(now)
	for _, d := range s.ActiveDays {
		if d == today {
			return true
		}
	}
	return false
}
