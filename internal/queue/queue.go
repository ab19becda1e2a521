package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/models"
)

const maxDeliveryRetries = 3

// Enqueuer is the part of *asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Scheduler puts scheduled publications on the delivery queue.
type Scheduler struct {
	client Enqueuer
}

func NewScheduler(client Enqueuer) *Scheduler {
	return &Scheduler{client: client}
}

// DeliverTaskID identifies one delivery of a publication at a given time. A
// rescheduled publication gets a new task, and the old one turns stale.
func DeliverTaskID(publicationID string, scheduledAt time.Time) string {
	return fmt.Sprintf("%s-%d", publicationID, scheduledAt.Unix())
}

func NewDeliverTask(p *models.Publication) (*asynq.Task, error) {
	if p.ScheduledAt == nil {
		return nil, errors.New("publication has no scheduled time")
	}
	payload, err := json.Marshal(DeliverPublicationPayload{
		PublicationID: p.ID,
		ScheduledAt:   *p.ScheduledAt,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDeliverPublication, payload), nil
}

// ScheduleDelivery enqueues p to run at its scheduled time. Enqueuing the same
// publication and time twice is a no-op.
func (s *Scheduler) ScheduleDelivery(ctx context.Context, p *models.Publication) error {
	task, err := NewDeliverTask(p)
	if err != nil {
		return err
	}

	_, err = s.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(*p.ScheduledAt),
		asynq.TaskID(DeliverTaskID(p.ID, *p.ScheduledAt)),
		asynq.MaxRetry(maxDeliveryRetries),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	slog.Info("Task scheduled", "publication_id", p.ID, "scheduled_at", p.ScheduledAt)
	return nil
}
