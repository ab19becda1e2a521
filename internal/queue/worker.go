package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

func (j *Queue) HandleDeliverTask(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPublicationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	return j.Deliver(ctx, payload)
}

// Deliver publishes one publication to every selected platform. Tasks whose
// publication was removed, cancelled or moved are dropped without error.
func (j *Queue) Deliver(ctx context.Context, payload DeliverPublicationPayload) error {
	p, err := j.pr.GetByID(ctx, payload.PublicationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Info("publication removed before delivery", "publication_id", payload.PublicationID)
			return nil
		}
		return err
	}

	if p.Status != models.StatusScheduled || p.ScheduledAt == nil || !p.ScheduledAt.Equal(payload.ScheduledAt) {
		slog.Info("dropping stale delivery task",
			"publication_id", p.ID,
			"status", p.Status,
			"task_scheduled_at", payload.ScheduledAt)
		return nil
	}

	if _, err := service.ApplyTransition(p.Status, models.StatusProcessing, j.strict); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := j.pr.UpdateStatus(ctx, p.ID, models.StatusScheduled, models.StatusProcessing, j.clock()); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			slog.Info("publication claimed elsewhere", "publication_id", p.ID)
			return nil
		}
		return err
	}

	attempts := j.deliverAll(ctx, p)

	final := models.StatusPublished
	for _, a := range attempts {
		if !a.Succeeded() {
			final = models.StatusError
			break
		}
	}
	if _, err := service.ApplyTransition(models.StatusProcessing, final, j.strict); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	// Deliveries already happened; retrying the task would post twice.
	if err := j.pr.UpdateStatus(context.WithoutCancel(ctx), p.ID, models.StatusProcessing, final, j.clock()); err != nil {
		slog.Error("failed to record delivery outcome", "publication_id", p.ID, "status", final, "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	slog.Info("publication delivered", "publication_id", p.ID, "status", final)
	return nil
}

func (j *Queue) deliverAll(ctx context.Context, p *models.Publication) []*models.DeliveryAttempt {
	attempts := make([]*models.DeliveryAttempt, len(p.Platforms))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, j.concurrency)

	for i, platform := range p.Platforms {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(i int, platform models.Platform) {
			defer wg.Done()
			defer func() { <-semaphore }()

			attempts[i] = j.deliverTo(ctx, p, platform)
		}(i, platform)
	}

	wg.Wait()
	return attempts
}

func (j *Queue) deliverTo(ctx context.Context, p *models.Publication, platform models.Platform) *models.DeliveryAttempt {
	attempt := &models.DeliveryAttempt{
		PublicationID: p.ID,
		UserID:        p.UserID,
		Platform:      platform,
	}

	acc, err := j.ac.GetByUserAndPlatform(ctx, p.UserID, platform)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			err = fmt.Errorf("no %s account connected", platform)
		}
	} else {
		attempt.ExternalID, err = j.pub.Publish(ctx, p, acc)
	}

	if err != nil {
		attempt.ErrorMessage = err.Error()
		slog.Error("delivery failed", "publication_id", p.ID, "platform", platform, "error", err)
	}

	if _, err := j.da.Create(context.WithoutCancel(ctx), attempt); err != nil {
		slog.Error("failed to save delivery attempt", "publication_id", p.ID, "platform", platform, "error", err)
	}
	return attempt
}

func (j *Queue) clock() time.Time {
	return j.now().UTC().Truncate(time.Microsecond)
}
