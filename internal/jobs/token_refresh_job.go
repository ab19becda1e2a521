package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
)

// Instagram long-lived tokens last 60 days; refresh those expiring within a
// week so a missed run does not let them lapse.
const refreshWindow = 7 * 24 * time.Hour

type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ps service.PlatformService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ps service.PlatformService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ps: ps,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	accounts, err := c.sr.ListByTimeInterval(ctx, currentTime, currentTime.Add(refreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		if acc.Platform != models.PlatformInstagram {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ps.RefreshInstagramToken(ctx, acc); err != nil {
				slog.Info("Unable to refresh tokens for Instagram", "account_id", acc.ID, "error", err)
			}
		}(acc)
	}

	wg.Wait()
}
