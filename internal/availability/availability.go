// Package availability decides whether a product can be sold at a given
// time of day. Products carry up to two independent sale windows expressed
// as "HH:MM" clock strings; a product with no windows is always sellable.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"snackstand/backend/internal/domain"
)

// MinuteOfDay converts a wall-clock time to minutes since midnight in its
// own location.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// ParseClock parses an "HH:MM" string into minutes since midnight.
// Seconds are not accepted; windows never span midnight.
func ParseClock(value string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("clock value %q: want HH:MM", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("clock value %q: bad hour", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q: bad minute", value)
	}
	return hour*60 + minute, nil
}

// windowContains reports whether the minute falls inside one window, both
// bounds inclusive. A window whose start is after its end can never match;
// that is deliberate, misordered windows are surfaced as warnings at write
// time rather than silently reordered.
func windowContains(w domain.AvailabilityWindow, minute int) bool {
	start, err := ParseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return false
	}
	return minute >= start && minute <= end
}

func complete(w *domain.AvailabilityWindow) bool {
	return w != nil && w.Start != "" && w.End != ""
}

// Available reports whether the product may be sold at t. Any complete
// window containing the minute grants availability; half-configured windows
// are ignored.
func Available(p domain.Product, t time.Time) bool {
	return AvailableAt(p, MinuteOfDay(t))
}

func AvailableAt(p domain.Product, minute int) bool {
	first := complete(p.FirstWindow)
	second := complete(p.SecondWindow)
	if !first && !second {
		return true
	}
	if first && windowContains(*p.FirstWindow, minute) {
		return true
	}
	if second && windowContains(*p.SecondWindow, minute) {
		return true
	}
	return false
}

// ValidateWindows checks a product's window configuration. Malformed clock
// strings are hard errors; a misordered window (start after end) is legal
// but comes back as a warning since it can never match.
func ValidateWindows(first, second *domain.AvailabilityWindow) ([]string, error) {
	var warnings []string
	for _, w := range []struct {
		label  string
		window *domain.AvailabilityWindow
	}{
		{"first_window", first},
		{"second_window", second},
	} {
		if w.window == nil {
			continue
		}
		if w.window.Start == "" && w.window.End == "" {
			continue
		}
		if w.window.Start == "" || w.window.End == "" {
			warnings = append(warnings, fmt.Sprintf("%s is half-configured and will be ignored", w.label))
			continue
		}
		start, err := ParseClock(w.window.Start)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", w.label, err)
		}
		end, err := ParseClock(w.window.End)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", w.label, err)
		}
		if start > end {
			warnings = append(warnings, fmt.Sprintf("%s start %s is after end %s; the window will never match", w.label, w.window.Start, w.window.End))
		}
	}
	return warnings, nil
}
