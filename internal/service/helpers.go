package service

import (
	"time"
)

// Graph long-lived tokens last 60 days when expires_in is not reported.
const defaultTokenLifetime = 60 * 24 * time.Hour

func GetExpiresAt(expiresIn int) time.Time {
	if expiresIn <= 0 {
		return time.Now().Add(defaultTokenLifetime)
	}
	return time.Now().Add(time.Duration(expiresIn) * time.Second)
}
