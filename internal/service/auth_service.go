package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GOOGLE_USERINFO_URL = "https://www.googleapis.com/oauth2/v1/userinfo"
	SessionDuration     = 24 * time.Hour
)

type AuthService interface {
	LoginURL(state string) (string, error)
	LoginCallback(ctx context.Context, code string) (int64, error)
	IssueSession(userID int64) (string, error)
}

type authService struct {
	cfg         config.Config
	u           repository.UserRepository
	client      *http.Client
	oauth       *oauth2.Config
	userInfoURL string
}

type AuthOption func(*authService)

// WithGoogleEndpoints points the login flow at other hosts.
func WithGoogleEndpoints(endpoint oauth2.Endpoint, userInfoURL string) AuthOption {
	return func(s *authService) {
		s.oauth.Endpoint = endpoint
		s.userInfoURL = userInfoURL
	}
}

func NewAuthService(cfg config.Config, u repository.UserRepository, client *http.Client, opts ...AuthOption) AuthService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &authService{
		cfg:    cfg,
		u:      u,
		client: client,
		oauth: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURI,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: GOOGLE_USERINFO_URL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *authService) LoginURL(state string) (string, error) {
	if s.oauth.ClientID == "" || s.oauth.ClientSecret == "" || s.oauth.RedirectURL == "" {
		err := errors.New("OAuth2 configuration is incomplete")
		slog.Info(err.Error())
		return "", err
	}
	return s.oauth.AuthCodeURL(state), nil
}

// LoginCallback exchanges the code, creates or refreshes the user and returns
// their id.
func (s *authService) LoginCallback(ctx context.Context, code string) (int64, error) {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return 0, err
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return 0, fmt.Errorf("failed to exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userInfoURL, nil)
	if err != nil {
		return 0, err
	}
	var info transfer.GoogleUserInfo
	if err := doGraphRequest(s.oauth.Client(ctx, token), req, &info); err != nil {
		return 0, fmt.Errorf("error fetching user info: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return 0, errors.New("google account has no id or email")
	}

	userID, err := s.u.Upsert(ctx, &models.User{
		GoogleID:       info.ID,
		Email:          info.Email,
		Name:           info.Name,
		ProfilePicture: info.Picture,
	})
	if err != nil {
		return 0, fmt.Errorf("error saving user: %w", err)
	}
	return userID, nil
}

func (s *authService) IssueSession(userID int64) (string, error) {
	if userID == 0 {
		return "", ErrInvalidUser
	}
	return utils.IssueSession(s.cfg.SecretKey, userID, time.Now(), SessionDuration)
}
