package models

import (
	"fmt"
	"strings"
	"time"
)

const SlotDurationMinutes = 30

// TimeSlot is one 30 minute row of a calendar day. Index is its position
// in the day, 0 through 47.
type TimeSlot struct {
	Index           int       `json:"index"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

func (s TimeSlot) End() time.Time {
	return s.Start.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Contains reports whether t falls in [Start, Start+Duration).
func (s TimeSlot) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End())
}

// Label renders the slot as "HH:MM".
func (s TimeSlot) Label() string {
	return s.Start.Format("15:04")
}

type CalendarView string

const (
	ViewDay   CalendarView = "day"
	ViewWeek  CalendarView = "week"
	ViewMonth CalendarView = "month"
)

func ParseCalendarView(s string) (CalendarView, error) {
	switch v := CalendarView(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewDay, ViewWeek, ViewMonth:
		return v, nil
	case "":
		return ViewWeek, nil
	default:
		return "", fmt.Errorf("unsupported calendar view %q", s)
	}
}
