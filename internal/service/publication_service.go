package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/scheduling"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Action string

const (
	ActionDraft      Action = "draft"
	ActionSchedule   Action = "schedule"
	ActionPublishNow Action = "publish_now"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case "":
		return ActionDraft, nil
	case ActionDraft, ActionSchedule, ActionPublishNow:
		return a, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

var (
	ErrNotEditable = errors.New("publication can no longer be edited")
	ErrInProgress  = errors.New("publication is being published")
	ErrInvalidUser = errors.New("UserID is not valid")
)

const msgNoPlatforms = "select at least one platform"

type CreateInput struct {
	Content     models.Content
	Platforms   []models.Platform
	Action      Action
	ScheduledAt *time.Time
}

// Outcome is a saved publication together with the non-blocking warnings of
// its content check.
type Outcome struct {
	Publication *models.Publication `json:"publication"`
	Warnings    []string            `json:"warnings"`
}

// DeliveryScheduler hands a scheduled publication to the delivery queue.
type DeliveryScheduler interface {
	ScheduleDelivery(ctx context.Context, p *models.Publication) error
}

type PublicationService interface {
	Validate(content models.Content, platforms []models.Platform) scheduling.ValidationResult
	Create(ctx context.Context, userID int64, in CreateInput, now time.Time) (*Outcome, error)
	CreateDraft(ctx context.Context, userID int64, content models.Content, platforms []models.Platform, now time.Time) (*Outcome, error)
	RequestSchedule(ctx context.Context, userID int64, id string, at, now time.Time) (*models.Publication, error)
	RequestPublishNow(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error)
	Unschedule(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error)
	Cancel(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error)
	UpdateContent(ctx context.Context, userID int64, id string, content models.Content, platforms []models.Platform, now time.Time) (*Outcome, error)
	Duplicate(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error)
	Remove(ctx context.Context, userID int64, id string) error
	Get(ctx context.Context, userID int64, id string) (*models.Publication, error)
	List(ctx context.Context, userID int64, f repository.PublicationFilter) ([]*models.Publication, error)
	Deliveries(ctx context.Context, userID int64, id string) (*DeliveryReport, error)
	Calendar(ctx context.Context, userID int64, view models.CalendarView, anchor, now time.Time) (*CalendarPage, error)
	Reschedule(ctx context.Context, userID int64, id string, date time.Time, slotIndex int, now time.Time) (*scheduling.DropResult, error)
	Grid() *scheduling.TimeGrid
}

type publicationService struct {
	pr         repository.PublicationRepository
	da         repository.DeliveryAttemptRepository
	ds         DeliveryScheduler
	grid       *scheduling.TimeGrid
	maxVisible int
	strict     bool
}

func NewPublicationService(
	cfg config.Config,
	pr repository.PublicationRepository,
	da repository.DeliveryAttemptRepository,
	ds DeliveryScheduler) PublicationService {
	return &publicationService{
		pr:         pr,
		da:         da,
		ds:         ds,
		grid:       scheduling.NewTimeGrid(cfg.Location(), cfg.SlotHeight),
		maxVisible: cfg.MaxVisiblePerSlot,
		strict:     cfg.IsDevelopment(),
	}
}

func (s *publicationService) Grid() *scheduling.TimeGrid {
	return s.grid
}

func (s *publicationService) Validate(content models.Content, platforms []models.Platform) scheduling.ValidationResult {
	res := scheduling.ValidateContent(content, platforms)
	if len(platforms) == 0 {
		res.IsValid = false
		res.Errors = append(res.Errors, msgNoPlatforms)
	}
	return res
}

func (s *publicationService) Create(ctx context.Context, userID int64, in CreateInput, now time.Time) (*Outcome, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}

	res := s.Validate(in.Content, in.Platforms)
	if err := res.Err(); err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	now = stamp(now)
	p := &models.Publication{
		ID:        id,
		UserID:    userID,
		Content:   in.Content,
		Platforms: in.Platforms,
		Status:    models.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch in.Action {
	case ActionDraft, "":
	case ActionSchedule:
		if in.ScheduledAt == nil {
			return nil, &scheduling.ValidationError{Errors: []string{"scheduled time is required"}}
		}
		if err := scheduling.ValidateSchedule(*in.ScheduledAt, now).Err(); err != nil {
			return nil, err
		}
		if err := s.transition(p, models.StatusScheduled); err != nil {
			return nil, err
		}
		at := stamp(*in.ScheduledAt)
		p.ScheduledAt = &at
	case ActionPublishNow:
		if err := s.transition(p, models.StatusScheduled); err != nil {
			return nil, err
		}
		at := now
		p.ScheduledAt = &at
	default:
		return nil, fmt.Errorf("unknown action %q", in.Action)
	}

	if err := s.pr.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("error creating publication: %w", err)
	}
	if p.Status == models.StatusScheduled {
		s.enqueue(ctx, p)
	}

	return &Outcome{Publication: p, Warnings: res.Warnings}, nil
}

func (s *publicationService) CreateDraft(ctx context.Context, userID int64, content models.Content, platforms []models.Platform, now time.Time) (*Outcome, error) {
	return s.Create(ctx, userID, CreateInput{Content: content, Platforms: platforms, Action: ActionDraft}, now)
}

func (s *publicationService) RequestSchedule(ctx context.Context, userID int64, id string, at, now time.Time) (*models.Publication, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.reschedule(p); err != nil {
		return nil, err
	}
	if err := scheduling.ValidateSchedule(at, now).Err(); err != nil {
		return nil, err
	}

	at = stamp(at)
	p.ScheduledAt = &at
	return s.saveSchedule(ctx, p, now)
}

// RequestPublishNow schedules the publication at now. The schedule check is
// skipped since now is never in the future.
func (s *publicationService) RequestPublishNow(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.reschedule(p); err != nil {
		return nil, err
	}

	at := stamp(now)
	p.ScheduledAt = &at
	return s.saveSchedule(ctx, p, now)
}

func (s *publicationService) Unschedule(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	expected := p.UpdatedAt
	if err := s.transition(p, models.StatusDraft); err != nil {
		return nil, err
	}
	p.ScheduledAt = nil
	p.UpdatedAt = stamp(now)
	if err := s.pr.UpdateSchedule(ctx, p, expected); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *publicationService) Cancel(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	expected := p.UpdatedAt
	if err := s.transition(p, models.StatusCancelled); err != nil {
		return nil, err
	}
	p.UpdatedAt = stamp(now)
	if err := s.pr.UpdateSchedule(ctx, p, expected); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *publicationService) UpdateContent(ctx context.Context, userID int64, id string, content models.Content, platforms []models.Platform, now time.Time) (*Outcome, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !scheduling.IsEditable(p.Status) {
		slog.Info(ErrNotEditable.Error(), "publication_id", id, "status", p.Status)
		return nil, ErrNotEditable
	}

	res := s.Validate(content, platforms)
	if err := res.Err(); err != nil {
		return nil, err
	}

	expected := p.UpdatedAt
	p.Content = content
	p.Platforms = platforms
	p.UpdatedAt = stamp(now)
	if err := s.pr.UpdateContent(ctx, p, expected); err != nil {
		return nil, err
	}
	return &Outcome{Publication: p, Warnings: res.Warnings}, nil
}

// Duplicate copies any publication, terminal ones included, into a new draft.
func (s *publicationService) Duplicate(ctx context.Context, userID int64, id string, now time.Time) (*models.Publication, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	newID, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	now = stamp(now)
	dup := p.Clone()
	dup.ID = newID
	dup.Status = models.StatusDraft
	dup.ScheduledAt = nil
	dup.CreatedAt = now
	dup.UpdatedAt = now

	if err := s.pr.Create(ctx, &dup); err != nil {
		return nil, fmt.Errorf("error duplicating publication: %w", err)
	}
	return &dup, nil
}

func (s *publicationService) Remove(ctx context.Context, userID int64, id string) error {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return err
	}
	if scheduling.IsInProgress(p.Status) {
		slog.Info(ErrInProgress.Error(), "publication_id", id)
		return ErrInProgress
	}
	return s.pr.Remove(ctx, id)
}

func (s *publicationService) Get(ctx context.Context, userID int64, id string) (*models.Publication, error) {
	return s.owned(ctx, userID, id)
}

func (s *publicationService) List(ctx context.Context, userID int64, f repository.PublicationFilter) ([]*models.Publication, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}
	pubs, err := s.pr.ListByUser(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("error listing publications: %w", err)
	}
	return pubs, nil
}

type DeliveryReport struct {
	Attempts []*models.DeliveryAttempt `json:"attempts"`
	Metrics  []models.DeliveryMetric   `json:"metrics"`
}

func (s *publicationService) Deliveries(ctx context.Context, userID int64, id string) (*DeliveryReport, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	attempts, err := s.da.ListByPublicationID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error listing delivery attempts: %w", err)
	}
	return &DeliveryReport{Attempts: attempts, Metrics: models.DeliverySummary(attempts)}, nil
}

// Reschedule runs a whole drag gesture for one publication: start, hover over
// (date, slotIndex), drop. The drop is committed with an optimistic write
// guarded by the publication's updated_at.
func (s *publicationService) Reschedule(ctx context.Context, userID int64, id string, date time.Time, slotIndex int, now time.Time) (*scheduling.DropResult, error) {
	p, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	slot, err := s.grid.SlotAt(date, slotIndex)
	if err != nil {
		return nil, err
	}

	now = stamp(now)
	board := scheduling.NewMemoryBoard([]models.Publication{*p})
	drag := scheduling.NewDragRescheduler(s.grid, board, &publicationCommitter{s: s}, func() time.Time { return now })

	if err := drag.StartDrag(id); err != nil {
		return nil, err
	}
	if _, err := drag.Hover(date, slot); err != nil {
		drag.End()
		return nil, err
	}
	res, err := drag.Drop(ctx)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type publicationCommitter struct {
	s *publicationService
}

func (c *publicationCommitter) CommitSchedule(ctx context.Context, before, after models.Publication) error {
	if err := c.s.pr.UpdateSchedule(ctx, &after, before.UpdatedAt); err != nil {
		return err
	}
	c.s.enqueue(ctx, &after)
	return nil
}

func (s *publicationService) owned(ctx context.Context, userID int64, id string) (*models.Publication, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}
	p, err := s.pr.GetByUser(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, scheduling.ErrPublicationNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *publicationService) saveSchedule(ctx context.Context, p *models.Publication, now time.Time) (*models.Publication, error) {
	expected := p.UpdatedAt
	p.UpdatedAt = stamp(now)
	if err := s.pr.UpdateSchedule(ctx, p, expected); err != nil {
		return nil, err
	}
	s.enqueue(ctx, p)
	return p, nil
}

// enqueue does not fail the request: a scheduled publication without a task is
// picked up by the sweeper once it is due.
func (s *publicationService) enqueue(ctx context.Context, p *models.Publication) {
	if err := s.ds.ScheduleDelivery(ctx, p); err != nil {
		slog.Warn("failed to enqueue delivery", "publication_id", p.ID, "error", err)
	}
}

func (s *publicationService) transition(p *models.Publication, to models.PublicationStatus) error {
	next, err := ApplyTransition(p.Status, to, s.strict)
	if err != nil {
		return err
	}
	p.Status = next
	return nil
}

func (s *publicationService) reschedule(p *models.Publication) error {
	next, err := scheduling.RescheduleStatus(p.Status)
	if err != nil {
		reportInvalidTransition(err, s.strict)
		return err
	}
	p.Status = next
	return nil
}

// ApplyTransition runs the state machine. An invalid transition is logged;
// with strict set it panics instead, since it means a caller offered an action
// the status does not allow.
func ApplyTransition(from, to models.PublicationStatus, strict bool) (models.PublicationStatus, error) {
	next, err := scheduling.Transition(from, to)
	if err != nil {
		reportInvalidTransition(err, strict)
		return from, err
	}
	return next, nil
}

func reportInvalidTransition(err error, strict bool) {
	slog.Error(err.Error())
	if strict {
		panic(err)
	}
}

// stamp normalizes times to what Postgres stores, so updated_at guards
// compare equal after a round trip.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
