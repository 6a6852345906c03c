package dashboard

import (
	"math"
	"sort"
	"time"

	"github.com/zombor/warranty-tracker/internal/warranty"
)

// ServiceDate is one free service visit, marked against now
type ServiceDate struct {
	Date string `json:"date"`
	Past bool   `json:"past"`
}

// Card is the per-device display status
type Card struct {
	Device        *warranty.Device `json:"device"`
	Expired       bool             `json:"expired"`
	ExpiringSoon  bool             `json:"expiring_soon"`
	DaysRemaining *int             `json:"days_remaining"` // nil without a valid expiry; negative once expired
	ServiceDates  []ServiceDate    `json:"service_dates"`
}

// CardFor builds the display status of one device. It uses the same
// parse-or-fallback rule as Compute, so a card never disagrees with the counters.
func CardFor(d *warranty.Device, now time.Time) Card {
	card := Card{
		Device:       d,
		Expired:      IsExpired(d, now),
		ExpiringSoon: IsExpiringSoon(d, now),
		ServiceDates: serviceDates(d.FreeServiceDates, now),
	}
	if exp, ok := expiry(d); ok {
		days := int(math.Ceil(float64(exp.Sub(now)) / float64(day)))
		card.DaysRemaining = &days
	}
	return card
}

// Cards builds a card per device, keeping order
func Cards(devices []*warranty.Device, now time.Time) []Card {
	cards := make([]Card, 0, len(devices))
	for _, d := range devices {
		cards = append(cards, CardFor(d, now))
	}
	return cards
}

// serviceDates sorts a copy of the dates; unreadable entries go last, unmarked
func serviceDates(dates []string, now time.Time) []ServiceDate {
	out := make([]ServiceDate, 0, len(dates))
	for _, s := range dates {
		sd := ServiceDate{Date: s}
		if t, ok := ParseDate(s); ok {
			sd.Past = !t.After(now)
		}
		out = append(out, sd)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, iok := ParseDate(out[i].Date)
		tj, jok := ParseDate(out[j].Date)
		switch {
		case iok && jok:
			return ti.Before(tj)
		case iok != jok:
			return iok
		}
		return false
	})
	return out
}
