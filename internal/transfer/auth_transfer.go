package transfer

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims identify a signed-in user.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// ID returns the numeric user id carried by the session.
func (c *SessionClaims) ID() (int64, error) {
	id, err := strconv.ParseInt(c.UserID, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("user id must be positive")
	}
	return id, nil
}

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}
