package scheduling

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type DragState int

const (
	DragIdle DragState = iota
	DragDragging
)

func (s DragState) String() string {
	if s == DragDragging {
		return "dragging"
	}
	return "idle"
}

// Board is the caller's local copy of the publication list that a drop
// updates optimistically.
type Board interface {
	Get(id string) (models.Publication, bool)
	Put(p models.Publication)
}

// Committer persists a new schedule in the external store. before is the
// publication as it was when the drag started.
type Committer interface {
	CommitSchedule(ctx context.Context, before, after models.Publication) error
}

type DropTarget struct {
	Date  time.Time       `json:"date"`
	Slot  models.TimeSlot `json:"slot"`
	At    time.Time       `json:"at"`
	Valid bool            `json:"valid"`
}

type DropResult struct {
	Committed   bool               `json:"committed"`
	Publication models.Publication `json:"publication"`
	Target      DropTarget         `json:"target"`
}

// DragRescheduler runs one drag gesture at a time: StartDrag, any number of
// Hover calls, then Drop or End. Nothing outside the gesture changes until a
// valid Drop commits. It is not safe for concurrent use.
type DragRescheduler struct {
	grid      *TimeGrid
	board     Board
	committer Committer
	now       func() time.Time

	state     DragState
	dragged   models.Publication
	target    DropTarget
	hasTarget bool
}

func NewDragRescheduler(grid *TimeGrid, board Board, committer Committer, now func() time.Time) *DragRescheduler {
	return &DragRescheduler{
		grid:      grid,
		board:     board,
		committer: committer,
		now:       now,
	}
}

func (d *DragRescheduler) State() DragState {
	return d.state
}

// Dragged returns the publication captured by the current gesture.
func (d *DragRescheduler) Dragged() (models.Publication, bool) {
	return d.dragged, d.state == DragDragging
}

// Target returns the last hovered target of the current gesture.
func (d *DragRescheduler) Target() (DropTarget, bool) {
	return d.target, d.state == DragDragging && d.hasTarget
}

// StartDrag captures publication id. Immovable publications are rejected and
// the gesture stays idle.
func (d *DragRescheduler) StartDrag(id string) error {
	if d.state == DragDragging {
		return ErrDragInProgress
	}
	p, ok := d.board.Get(id)
	if !ok {
		return ErrPublicationNotFound
	}
	if !IsMovable(p.Status) {
		return &DragRejectedError{PublicationID: id, Status: p.Status, Reason: ImmovableReason(p.Status)}
	}

	d.state = DragDragging
	d.dragged = p.Clone()
	d.target = DropTarget{}
	d.hasTarget = false
	return nil
}

// Hover records (date, slot) as the drop target and reports whether it is valid.
func (d *DragRescheduler) Hover(date time.Time, slot models.TimeSlot) (DropTarget, error) {
	if d.state != DragDragging {
		return DropTarget{}, ErrNotDragging
	}
	at := d.grid.CombineSlot(date, slot)
	d.target = DropTarget{
		Date:  d.grid.StartOfDay(date),
		Slot:  slot,
		At:    at,
		Valid: d.grid.IsValidDropTarget(slot, date, d.now()),
	}
	d.hasTarget = true
	return d.target, nil
}

// Drop ends the gesture. An invalid or missing target is discarded without an
// error. A valid one is applied to the board, then committed; when the commit
// fails the board is restored and a *CommitFailureError is returned.
func (d *DragRescheduler) Drop(ctx context.Context) (DropResult, error) {
	if d.state != DragDragging {
		return DropResult{}, ErrNotDragging
	}
	original, target, hasTarget := d.dragged, d.target, d.hasTarget
	d.reset()

	if !hasTarget || !target.Valid {
		slog.Warn("discarding drop on invalid target",
			"publication_id", original.ID,
			"target", target.At,
			"has_target", hasTarget)
		return DropResult{Publication: original, Target: target}, nil
	}

	status, err := RescheduleStatus(original.Status)
	if err != nil {
		return DropResult{Publication: original, Target: target}, err
	}

	updated := original.Clone()
	at := target.At
	updated.ScheduledAt = &at
	updated.Status = status
	updated.UpdatedAt = d.now()

	d.board.Put(updated)
	if err := d.committer.CommitSchedule(ctx, original, updated); err != nil {
		d.board.Put(original)
		slog.Info(err.Error())
		return DropResult{Publication: original, Target: target}, &CommitFailureError{PublicationID: original.ID, Err: err}
	}

	return DropResult{Committed: true, Publication: updated, Target: target}, nil
}

// End abandons the gesture without touching anything.
func (d *DragRescheduler) End() {
	d.reset()
}

func (d *DragRescheduler) reset() {
	d.state = DragIdle
	d.dragged = models.Publication{}
	d.target = DropTarget{}
	d.hasTarget = false
}

// MemoryBoard is a Board backed by a map.
type MemoryBoard struct {
	order []string
	pubs  map[string]models.Publication
}

func NewMemoryBoard(pubs []models.Publication) *MemoryBoard {
	b := &MemoryBoard{pubs: make(map[string]models.Publication, len(pubs))}
	for _, p := range pubs {
		b.Put(p)
	}
	return b
}

func (b *MemoryBoard) Get(id string) (models.Publication, bool) {
	p, ok := b.pubs[id]
	if !ok {
		return models.Publication{}, false
	}
	return p.Clone(), true
}

func (b *MemoryBoard) Put(p models.Publication) {
	if _, ok := b.pubs[p.ID]; !ok {
		b.order = append(b.order, p.ID)
	}
	b.pubs[p.ID] = p.Clone()
}

// Publications returns the board content in insertion order.
func (b *MemoryBoard) Publications() []models.Publication {
	out := make([]models.Publication, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.pubs[id].Clone())
	}
	return out
}
