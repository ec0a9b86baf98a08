package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptscheduler/services/scheduling-service/internal/interval"
)

const DateLayout = "2006-01-02"

// ParseDate reads an already-localized YYYY-MM-DD into a UTC midnight.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", raw)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(DateLayout)
}

// ParseClock reads HH:MM or HH:MM:SS into minutes since midnight. "24:00" is accepted as the
// end of the day.
func ParseClock(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	for _, p := range parts {
		if !twoDigits(p) {
			return 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
		}
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m > 59 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	if len(parts) == 3 {
		if s, err := strconv.Atoi(parts[2]); err != nil || s != 0 {
			return 0, fmt.Errorf("invalid time %q (seconds must be 00)", raw)
		}
	}
	total := h*60 + m
	if total > interval.MinutesPerDay {
		return 0, fmt.Errorf("invalid time %q (out of range)", raw)
	}
	return total, nil
}

func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func twoDigits(s string) bool {
	return len(s) == 2 && s[0] >= '0' && s[0] <= '9' && s[1] >= '0' && s[1] <= '9'
}
