package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/poddon/concierge/internal/extract"
)

// DefaultGuestName is used when the platform supplies no display name.
const DefaultGuestName = "Гость"

// Slot is a draft field required before a booking can finalize.
type Slot string

const (
	SlotDate   Slot = "date"
	SlotTime   Slot = "time"
	SlotGuests Slot = "guests"
	SlotPhone  Slot = "phone"
)

// Label is the prompt wording for a missing slot.
func (s Slot) Label() string {
	switch s {
	case SlotDate:
		return "дату"
	case SlotTime:
		return "время"
	case SlotGuests:
		return "кол-во гостей (можно диапазон)"
	case SlotPhone:
		return "телефон (и имя)"
	default:
		return string(s)
	}
}

// Draft accumulates booking slots across turns. Zero values are unset.
type Draft struct {
	Date      time.Time
	Time      string
	GuestsMin int
	GuestsMax int
	Phone     string
	Name      string
}

// Merge overwrites fields that f carries; fields absent from f are kept.
func (d *Draft) Merge(f extract.Fields) {
	if !f.Date.IsZero() {
		d.Date = f.Date
	}
	if f.Time != "" {
		d.Time = f.Time
	}
	if f.GuestsMin != 0 {
		d.GuestsMin = f.GuestsMin
	}
	if f.GuestsMax != 0 {
		d.GuestsMax = f.GuestsMax
	}
	// a bound from this message beats a stale one from an earlier turn
	if d.GuestsMin != 0 && d.GuestsMax != 0 && d.GuestsMin > d.GuestsMax {
		switch {
		case f.GuestsMin == 0:
			d.GuestsMin = d.GuestsMax
		case f.GuestsMax == 0:
			d.GuestsMax = d.GuestsMin
		default:
			d.GuestsMin, d.GuestsMax = d.GuestsMax, d.GuestsMin
		}
	}
	if f.Phone != "" {
		d.Phone = f.Phone
	}
	if f.Name != "" {
		d.Name = f.Name
	}
}

// Missing lists unfilled slots in prompt order.
func (d Draft) Missing() []Slot {
	var missing []Slot
	if d.Date.IsZero() {
		missing = append(missing, SlotDate)
	}
	if d.Time == "" {
		missing = append(missing, SlotTime)
	}
	if d.GuestsMin == 0 && d.GuestsMax == 0 {
		missing = append(missing, SlotGuests)
	}
	if d.Phone == "" {
		missing = append(missing, SlotPhone)
	}
	return missing
}

// Complete reports whether every required slot is filled.
func (d Draft) Complete() bool {
	return len(d.Missing()) == 0
}

// guestBounds returns (lo, hi) with a single known bound mirrored.
func (d Draft) guestBounds() (int, int) {
	lo, hi := d.GuestsMin, d.GuestsMax
	if hi == 0 {
		hi = lo
	}
	if lo == 0 {
		lo = hi
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// GuestsLabel renders "3–5 чел." or "4 чел.".
func (d Draft) GuestsLabel() string {
	lo, hi := d.guestBounds()
	if lo != hi && d.GuestsMin != 0 {
		return fmt.Sprintf("%d–%d чел.", lo, hi)
	}
	return fmt.Sprintf("%d чел.", hi)
}

// GuestsRange renders the stored form: "3-5" or "4".
func (d Draft) GuestsRange() string {
	lo, hi := d.guestBounds()
	if lo != hi && d.GuestsMin != 0 {
		return fmt.Sprintf("%d-%d", lo, hi)
	}
	return strconv.Itoa(hi)
}

// Summary renders the known slots joined by " • ".
func (d Draft) Summary() string {
	var parts []string
	if !d.Date.IsZero() {
		parts = append(parts, d.Date.Format("02.01.2006"))
	}
	if d.Time != "" {
		parts = append(parts, d.Time)
	}
	if d.GuestsMin != 0 || d.GuestsMax != 0 {
		parts = append(parts, d.GuestsLabel())
	}
	if d.Phone != "" {
		parts = append(parts, "тел. "+d.Phone)
	}
	if len(parts) == 0 {
		return "пока ничего не уточнили"
	}
	return strings.Join(parts, " • ")
}
