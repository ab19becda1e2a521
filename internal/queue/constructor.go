package queue

import (
	"time"

	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

type Queue struct {
	pr          repository.PublicationRepository
	ac          repository.SocialAccountRepository
	da          repository.DeliveryAttemptRepository
	pub         service.Publisher
	concurrency int
	strict      bool
	now         func() time.Time
}

func NewQueue(
	pr repository.PublicationRepository,
	ac repository.SocialAccountRepository,
	da repository.DeliveryAttemptRepository,
	pub service.Publisher,
	concurrency int,
	strict bool) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Queue{
		pr:          pr,
		ac:          ac,
		da:          da,
		pub:         pub,
		concurrency: concurrency,
		strict:      strict,
		now:         time.Now,
	}
}

const TaskTypeDeliverPublication = "publication:deliver"

type DeliverPublicationPayload struct {
	PublicationID string    `json:"publication_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}
