package scheduling

import "github.com/maheshrc27/postflow/internal/models"

var transitions = map[models.PublicationStatus][]models.PublicationStatus{
	models.StatusDraft:      {models.StatusScheduled, models.StatusCancelled},
	models.StatusScheduled:  {models.StatusProcessing, models.StatusCancelled, models.StatusDraft},
	models.StatusProcessing: {models.StatusPublished, models.StatusError},
	models.StatusPublished:  {},
	models.StatusError:      {},
	models.StatusCancelled:  {},
}

// AllowedTransitions lists the statuses reachable from s in one step.
func AllowedTransitions(s models.PublicationStatus) []models.PublicationStatus {
	return append([]models.PublicationStatus(nil), transitions[s]...)
}

func CanTransition(from, to models.PublicationStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition returns to when the table allows from -> to. It never falls back
// to another status.
func Transition(from, to models.PublicationStatus) (models.PublicationStatus, error) {
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

// RescheduleStatus is the status a publication ends up in after being given a
// new time: drafts become scheduled, scheduled items stay scheduled.
func RescheduleStatus(from models.PublicationStatus) (models.PublicationStatus, error) {
	if from == models.StatusScheduled {
		return from, nil
	}
	if from != models.StatusDraft {
		return from, &InvalidTransitionError{From: from, To: models.StatusScheduled}
	}
	return Transition(from, models.StatusScheduled)
}

func IsEditable(s models.PublicationStatus) bool {
	return s == models.StatusDraft || s == models.StatusScheduled
}

// IsMovable governs drag and drop on the calendar.
func IsMovable(s models.PublicationStatus) bool {
	return s == models.StatusDraft || s == models.StatusScheduled
}

func IsInProgress(s models.PublicationStatus) bool {
	return s == models.StatusProcessing
}

func IsTerminal(s models.PublicationStatus) bool {
	switch s {
	case models.StatusPublished, models.StatusError, models.StatusCancelled:
		return true
	}
	return false
}

// ImmovableReason explains why a publication is locked on the calendar, or
// returns "" when it can be moved.
func ImmovableReason(s models.PublicationStatus) string {
	switch s {
	case models.StatusPublished:
		return "already published and cannot be moved"
	case models.StatusProcessing:
		return "being published right now"
	case models.StatusError:
		return "publishing failed; duplicate it to try again"
	case models.StatusCancelled:
		return "cancelled; duplicate it to reuse the content"
	}
	return ""
}

// Affordances bundles the status predicates for the rendering layer.
type Affordances struct {
	Editable        bool   `json:"editable"`
	Movable         bool   `json:"movable"`
	InProgress      bool   `json:"in_progress"`
	Terminal        bool   `json:"terminal"`
	ImmovableReason string `json:"immovable_reason,omitempty"`
}

func AffordancesFor(s models.PublicationStatus) Affordances {
	return Affordances{
		Editable:        IsEditable(s),
		Movable:         IsMovable(s),
		InProgress:      IsInProgress(s),
		Terminal:        IsTerminal(s),
		ImmovableReason: ImmovableReason(s),
	}
}
