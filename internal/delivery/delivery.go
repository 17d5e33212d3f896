package delivery

import (
	"fmt"
	"time"
)

// Default delay parameters. The floor guarantees even co-located pen pals
// wait for their chronicles.
const (
	DefaultSpeedKmh = 70.0
	DefaultMinHours = 2.0
)

// ComputeHours converts a distance into the delay a chronicle must wait
// before delivery: max(minHours, distanceKm/speedKmh).
func ComputeHours(distanceKm, speedKmh, minHours float64) float64 {
	hours := distanceKm / speedKmh
	if hours < minHours {
		return minHours
	}
	return hours
}

// Status is the delivery state of a chronicle at a given instant.
type Status struct {
	Delivered bool
	Remaining time.Duration
}

// ComputeStatus derives delivery state from the wall clock. The delivery
// instant is sentAt + delayHours; a chronicle is delivered at or after that
// instant, never before. Callers must re-derive on every read.
func ComputeStatus(sentAt time.Time, delayHours float64, now time.Time) Status {
	deliveryAt := sentAt.Add(time.Duration(delayHours * float64(time.Hour)))
	if !now.Before(deliveryAt) {
		return Status{Delivered: true}
	}
	return Status{Delivered: false, Remaining: deliveryAt.Sub(now)}
}

// TimeLeft renders the remaining wait as "3h 24m". Minutes are truncated,
// not rounded, so the countdown only reaches zero at the delivery instant.
// Returns "" once delivered.
func (s Status) TimeLeft() string {
	if s.Delivered {
		return ""
	}
	hours := int(s.Remaining / time.Hour)
	minutes := int((s.Remaining % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// FormatHours renders a delay in hours as a human-readable duration:
// "3 hours", "1 day", "2 weeks". Rounds to the nearest whole unit.
func FormatHours(hours float64) string {
	if hours < 24 {
		return plural(round(hours), "hour")
	}
	days := round(hours / 24)
	if days < 7 {
		return plural(days, "day")
	}
	return plural(round(float64(days)/7), "week")
}

func round(f float64) int {
	return int(f + 0.5)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
