package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const localMinuteLayout = "2006-01-02T15:04"

// parseDueTime accepts "now", a relative "+duration", RFC3339, or a local
// "YYYY-MM-DDTHH:MM" timestamp.
func parseDueTime(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return time.Time{}, fmt.Errorf("empty time")
	case strings.EqualFold(raw, "now"):
		return now, nil
	case strings.HasPrefix(raw, "+"):
		d, err := time.ParseDuration(raw[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return now.Add(d), nil
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localMinuteLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", raw)
	}
	return t, nil
}

// parseTargetArg maps "*" to an unbound target.
func parseTargetArg(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "*" {
		return ""
	}
	return raw
}

// parseContentArg maps "*" to random content.
func parseContentArg(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid content id %q", raw)
	}
	return id, nil
}

// parseIndex converts a 1-based index shown to operators into a 0-based one.
func parseIndex(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return n - 1, nil
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

// truncate shortens s to at most n runes for list output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
