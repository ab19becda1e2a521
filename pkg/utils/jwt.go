package utils

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/postflow/internal/transfer"
)

const SessionIssuer = "postflow"

var ErrInvalidSession = errors.New("invalid session")

// IssueSession signs a session for userID, valid for ttl from issuedAt.
func IssueSession(secretKey string, userID int64, issuedAt time.Time, ttl time.Duration) (string, error) {
	if userID <= 0 {
		return "", ErrInvalidSession
	}

	claims := transfer.SessionClaims{
		UserID: strconv.FormatInt(userID, 10),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    SessionIssuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	return signed, nil
}

// ParseSession verifies a session token as of now.
func ParseSession(secretKey, tokenString string, now time.Time) (*transfer.SessionClaims, error) {
	claims := &transfer.SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(SessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if _, err := claims.ID(); err != nil {
		return nil, ErrInvalidSession
	}
	return claims, nil
}
