package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

// SweeperJob repairs publications the queue lost track of: deliveries stuck in
// processing are failed, and due scheduled ones are enqueued again.
type SweeperJob struct {
	pr      repository.PublicationRepository
	ds      service.DeliveryScheduler
	timeout time.Duration
	now     func() time.Time
}

func NewSweeperJob(pr repository.PublicationRepository, ds service.DeliveryScheduler, timeout time.Duration) *SweeperJob {
	return &SweeperJob{
		pr:      pr,
		ds:      ds,
		timeout: timeout,
		now:     time.Now,
	}
}

func (c *SweeperJob) Sweep() {
	ctx := context.Background()
	now := c.now().UTC().Truncate(time.Microsecond)

	stuck, err := c.pr.ListStuckProcessing(ctx, now.Add(-c.timeout))
	if err != nil {
		slog.Info(err.Error())
	}
	for _, p := range stuck {
		err := c.pr.UpdateStatus(ctx, p.ID, models.StatusProcessing, models.StatusError, now)
		if errors.Is(err, repository.ErrStaleWrite) {
			continue
		}
		if err != nil {
			slog.Info("Unable to fail stuck publication", "publication_id", p.ID, "error", err)
			continue
		}
		slog.Warn("publication stuck in processing marked as error", "publication_id", p.ID)
	}

	due, err := c.pr.ListDueScheduled(ctx, now)
	if err != nil {
		slog.Info(err.Error())
		return
	}
	for _, p := range due {
		if err := c.ds.ScheduleDelivery(ctx, p); err != nil {
			slog.Info("Unable to enqueue due publication", "publication_id", p.ID, "error", err)
		}
	}
}
