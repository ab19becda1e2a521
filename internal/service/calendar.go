package service

import (
	"context"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/scheduling"
)

type CalendarEntry struct {
	Publication models.Publication     `json:"publication"`
	Affordances scheduling.Affordances `json:"affordances"`
}

type CalendarCell struct {
	Date         string          `json:"date"`
	SlotIndex    int             `json:"slot_index"`
	Label        string          `json:"label"`
	Publications []CalendarEntry `json:"publications"`
	Hidden       int             `json:"hidden"`
}

type CalendarPage struct {
	View       models.CalendarView `json:"view"`
	Anchor     string              `json:"anchor"`
	Timezone   string              `json:"timezone"`
	Dates      []string            `json:"dates"`
	Slots      []string            `json:"slots"`
	SlotHeight float64             `json:"slot_height"`
	Cells      []CalendarCell      `json:"cells"`
	// CurrentTimePosition is nil when today is not part of the view.
	CurrentTimePosition *float64 `json:"current_time_position"`
}

func (s *publicationService) Calendar(ctx context.Context, userID int64, view models.CalendarView, anchor, now time.Time) (*CalendarPage, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}

	dates := s.grid.Dates(view, anchor)
	from := dates[0]
	to := dates[len(dates)-1].AddDate(0, 0, 1)

	stored, err := s.pr.ListByUserInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("error loading calendar: %w", err)
	}
	pubs := make([]models.Publication, len(stored))
	for i, p := range stored {
		pubs[i] = *p
	}

	page := &CalendarPage{
		View:       view,
		Anchor:     s.grid.DateKey(anchor),
		Timezone:   s.grid.Location().String(),
		SlotHeight: s.grid.SlotHeight(),
		Cells:      []CalendarCell{},
	}
	for _, d := range dates {
		page.Dates = append(page.Dates, s.grid.DateKey(d))
	}
	for _, slot := range s.grid.Slots(dates[0]) {
		page.Slots = append(page.Slots, slot.Label())
	}

	cells := s.grid.AssignToSlots(pubs, dates)
	for _, key := range scheduling.SortedKeys(cells) {
		visible, hidden := scheduling.VisibleSlice(cells[key], s.maxVisible)
		cell := CalendarCell{
			Date:      key.Date,
			SlotIndex: key.Index,
			Label:     page.Slots[key.Index],
			Hidden:    hidden,
		}
		for _, p := range visible {
			cell.Publications = append(cell.Publications, CalendarEntry{
				Publication: p,
				Affordances: scheduling.AffordancesFor(p.Status),
			})
		}
		page.Cells = append(page.Cells, cell)
	}

	if pos, ok := s.grid.CurrentTimePosition(now, dates); ok {
		page.CurrentTimePosition = &pos
	}
	return page, nil
}
