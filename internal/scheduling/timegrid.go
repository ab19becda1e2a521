package scheduling

import (
	"sort"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

const (
	SlotsPerDay       = 24 * 60 / models.SlotDurationMinutes
	DefaultSlotHeight = 48.0
	dateKeyLayout     = "2006-01-02"
)

// SlotKey addresses one cell of the grid: a calendar day and a slot index in it.
type SlotKey struct {
	Date  string
	Index int
}

// TimeGrid lays publications out on 30 minute slots in a single zone.
// It is stateless apart from its configuration and safe to share.
type TimeGrid struct {
	loc        *time.Location
	slotHeight float64
}

func NewTimeGrid(loc *time.Location, slotHeight float64) *TimeGrid {
	if loc == nil {
		loc = time.UTC
	}
	if slotHeight <= 0 {
		slotHeight = DefaultSlotHeight
	}
	return &TimeGrid{loc: loc, slotHeight: slotHeight}
}

func (g *TimeGrid) Location() *time.Location {
	return g.loc
}

func (g *TimeGrid) SlotHeight() float64 {
	return g.slotHeight
}

// StartOfDay returns the first instant of t's calendar day in the grid zone.
// In zones that skip midnight it is the end of the gap.
func (g *TimeGrid) StartOfDay(t time.Time) time.Time {
	t = t.In(g.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, g.loc)
	if day.Day() != t.Day() {
		day = time.Date(t.Year(), t.Month(), t.Day(), 1, 0, 0, 0, g.loc)
	}
	return day
}

func (g *TimeGrid) DateKey(t time.Time) string {
	return t.In(g.loc).Format(dateKeyLayout)
}

// ParseDate reads a YYYY-MM-DD day in the grid zone.
func (g *TimeGrid) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateKeyLayout, s, g.loc)
}

// Dates returns the ordered days shown by view around anchor. Weeks start on Monday.
func (g *TimeGrid) Dates(view models.CalendarView, anchor time.Time) []time.Time {
	day := g.StartOfDay(anchor)
	switch view {
	case models.ViewDay:
		return []time.Time{day}
	case models.ViewMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, g.loc)
		n := first.AddDate(0, 1, -1).Day()
		return g.span(first, n)
	default:
		offset := (int(day.Weekday()) + 6) % 7
		return g.span(day.AddDate(0, 0, -offset), 7)
	}
}

func (g *TimeGrid) span(first time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, i)
	}
	return dates
}

// Slots returns the 48 dense slots of date. Slot i starts i*30 elapsed
// minutes after the start of the day, so starts strictly increase across
// DST changes. On a 23 hour day the last two slots reach into the next
// morning; on a 25 hour day the final hour shares the last slot.
func (g *TimeGrid) Slots(date time.Time) []models.TimeSlot {
	slots := make([]models.TimeSlot, SlotsPerDay)
	for i := range slots {
		slots[i] = g.slot(date, i)
	}
	return slots
}

func (g *TimeGrid) slot(date time.Time, index int) models.TimeSlot {
	return models.TimeSlot{
		Index:           index,
		Start:           g.SlotStart(date, index),
		DurationMinutes: models.SlotDurationMinutes,
	}
}

// SlotStart is the instant slot index begins on date's calendar day.
func (g *TimeGrid) SlotStart(date time.Time, index int) time.Time {
	return g.StartOfDay(date).Add(time.Duration(index*models.SlotDurationMinutes) * time.Minute).In(g.loc)
}

// SlotAt returns the slot at index on date.
func (g *TimeGrid) SlotAt(date time.Time, index int) (models.TimeSlot, error) {
	if index < 0 || index >= SlotsPerDay {
		return models.TimeSlot{}, ErrInvalidSlot
	}
	return g.slot(date, index), nil
}

// SlotIndex is the index of the slot containing t in its own calendar day.
func (g *TimeGrid) SlotIndex(t time.Time) int {
	idx := int(t.Sub(g.StartOfDay(t)) / (models.SlotDurationMinutes * time.Minute))
	return max(0, min(idx, SlotsPerDay-1))
}

// CombineSlot places the slot's index on date's calendar day. Seconds and
// sub-seconds are always zero.
func (g *TimeGrid) CombineSlot(date time.Time, slot models.TimeSlot) time.Time {
	return g.SlotStart(date, slot.Index)
}

// IsValidDropTarget reports whether dropping on (slot, date) lands at or after now.
func (g *TimeGrid) IsValidDropTarget(slot models.TimeSlot, date, now time.Time) bool {
	return !g.CombineSlot(date, slot).Before(now)
}

// AssignToSlots buckets publications into the cells of dates, using
// ScheduledAt when set and CreatedAt otherwise. Publications outside dates are
// left out. Cells keep the input order and are not capped.
func (g *TimeGrid) AssignToSlots(pubs []models.Publication, dates []time.Time) map[SlotKey][]models.Publication {
	days := make(map[string]bool, len(dates))
	for _, d := range dates {
		days[g.DateKey(d)] = true
	}

	cells := make(map[SlotKey][]models.Publication)
	for _, p := range pubs {
		at := p.PlacementTime().In(g.loc)
		if !days[g.DateKey(at)] {
			continue
		}
		key := SlotKey{Date: g.DateKey(at), Index: g.SlotIndex(at)}
		cells[key] = append(cells[key], p)
	}
	return cells
}

// SortedKeys returns the cell keys in calendar order.
func SortedKeys(cells map[SlotKey][]models.Publication) []SlotKey {
	keys := make([]SlotKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// VisibleSlice keeps the first limit publications of a cell and reports how
// many were hidden behind a "+N more" marker.
func VisibleSlice(pubs []models.Publication, limit int) ([]models.Publication, int) {
	if limit <= 0 || len(pubs) <= limit {
		return pubs, 0
	}
	return pubs[:limit], len(pubs) - limit
}

// CurrentTimePosition returns the vertical offset of the "now" marker and
// true, or false when today is not among dates. Each slot is drawn as two
// bands, so the marker never sits on the boundary shared with the next slot.
func (g *TimeGrid) CurrentTimePosition(now time.Time, dates []time.Time) (float64, bool) {
	n := now.In(g.loc)
	today := g.DateKey(n)
	visible := false
	for _, d := range dates {
		if g.DateKey(d) == today {
			visible = true
			break
		}
	}
	if !visible {
		return 0, false
	}

	idx := g.SlotIndex(n)
	into := min(int(n.Sub(g.SlotStart(n, idx))/time.Minute), models.SlotDurationMinutes-1)
	offset := float64(max(0, into)) / models.SlotDurationMinutes
	return float64(idx)*g.slotHeight + offset*g.slotHeight, true
}
