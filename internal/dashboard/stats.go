// Package dashboard derives warranty statistics and card status from device
// records. Everything here is pure; callers pass the reference time.
package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/zombor/warranty-tracker/internal/warranty"
)

const (
	// ExpiringSoonDays is the horizon, inclusive, for the expiring-soon count
	ExpiringSoonDays = 60

	// UpcomingLimit is how many expirations the dashboard lists
	UpcomingLimit = 3

	day = 24 * time.Hour
)

// Stats are the dashboard counters
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	ExpiringSoon int `json:"expiring_soon"`
}

// Expiration is one entry of the upcoming expirations list
type Expiration struct {
	Device        *warranty.Device `json:"device"`
	DaysRemaining int              `json:"days_remaining"`
}

// ParseDate reads a YYYY-MM-DD date as UTC midnight. Anything else, including
// the empty string, is reported as not a date and treated as "no expiry".
func ParseDate(s string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// expiry returns the parsed expiry date, if any
func expiry(d *warranty.Device) (time.Time, bool) {
	return ParseDate(d.ExpiryDate)
}

// daysBetween is the ceiling of |to-from| in whole days
func daysBetween(from, to time.Time) int {
	diff := to.Sub(from)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(float64(diff) / float64(day)))
}

// IsExpired reports whether the device has a valid expiry date that is not after now
func IsExpired(d *warranty.Device, now time.Time) bool {
	exp, ok := expiry(d)
	return ok && !exp.After(now)
}

// IsExpiringSoon reports whether the expiry is in the future and within the window
func IsExpiringSoon(d *warranty.Device, now time.Time) bool {
	exp, ok := expiry(d)
	return ok && exp.After(now) && daysBetween(now, exp) <= ExpiringSoonDays
}

// Compute counts total, active and expiring-soon devices
func Compute(devices []*warranty.Device, now time.Time) Stats {
	stats := Stats{Total: len(devices)}
	for _, d := range devices {
		if !IsExpired(d, now) {
			stats.Active++
		}
		if IsExpiringSoon(d, now) {
			stats.ExpiringSoon++
		}
	}
	return stats
}

// Upcoming lists devices with a future expiry, soonest first, truncated to limit
func Upcoming(devices []*warranty.Device, now time.Time, limit int) []Expiration {
	type dated struct {
		device *warranty.Device
		at     time.Time
	}
	future := make([]dated, 0, len(devices))
	for _, d := range devices {
		if exp, ok := expiry(d); ok && exp.After(now) {
			future = append(future, dated{device: d, at: exp})
		}
	}
	sort.SliceStable(future, func(i, j int) bool {
		return future[i].at.Before(future[j].at)
	})

	if limit >= 0 && len(future) > limit {
		future = future[:limit]
	}
	out := make([]Expiration, 0, len(future))
	for _, f := range future {
		out = append(out, Expiration{Device: f.device, DaysRemaining: daysBetween(now, f.at)})
	}
	return out
}
