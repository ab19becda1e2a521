package scheduling

import "time"

const MaxScheduleAhead = 365 * 24 * time.Hour

const (
	msgScheduleInPast = "cannot schedule in the past"
	msgScheduleTooFar = "cannot schedule more than one year ahead"
)

type ScheduleResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

func (r ScheduleResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidateSchedule checks a requested publish time against now. It is only
// used for the schedule action; drafts and publish-now skip it.
func ValidateSchedule(scheduledAt, now time.Time) ScheduleResult {
	res := ScheduleResult{Errors: []string{}}
	if !scheduledAt.After(now) {
		res.Errors = append(res.Errors, msgScheduleInPast)
	}
	if scheduledAt.After(now.Add(MaxScheduleAhead)) {
		res.Errors = append(res.Errors, msgScheduleTooFar)
	}
	res.IsValid = len(res.Errors) == 0
	return res
}
