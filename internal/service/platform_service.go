package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const (
	INSTAGRAM_AUTH_URL  = "https://www.instagram.com/oauth/authorize"
	INSTAGRAM_TOKEN_URL = "https://api.instagram.com/oauth/access_token"
)

var ErrAccountNotFound = errors.New("social account doesn't exist")

type PlatformService interface {
	GetAuthURL(ctx context.Context, platform models.Platform, state string) (string, error)
	Callback(ctx context.Context, platform models.Platform, code string, userID int64) error
	RefreshInstagramToken(ctx context.Context, acc *models.SocialAccount) error
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Delete(ctx context.Context, userID, accountID int64) error
}

type platformService struct {
	cfg          config.Config
	sa           repository.SocialAccountRepository
	client       *http.Client
	facebookURL  string
	instagramURL string
	oauth        map[models.Platform]*oauth2.Config
}

type PlatformOption func(*platformService)

// WithPlatformEndpoints points the OAuth and Graph calls at other hosts.
func WithPlatformEndpoints(facebookGraph, instagramGraph string, fb, ig oauth2.Endpoint) PlatformOption {
	return func(s *platformService) {
		s.facebookURL = strings.TrimRight(facebookGraph, "/")
		s.instagramURL = strings.TrimRight(instagramGraph, "/")
		s.oauth[models.PlatformFacebook].Endpoint = fb
		s.oauth[models.PlatformInstagram].Endpoint = ig
	}
}

func NewPlatformService(cfg config.Config, sa repository.SocialAccountRepository, client *http.Client, opts ...PlatformOption) PlatformService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &platformService{
		cfg:          cfg,
		sa:           sa,
		client:       client,
		facebookURL:  FacebookGraphURL,
		instagramURL: InstagramGraphURL,
		oauth: map[models.Platform]*oauth2.Config{
			models.PlatformFacebook: {
				ClientID:     cfg.Facebook.ClientID,
				ClientSecret: cfg.Facebook.ClientSecret,
				RedirectURL:  cfg.Facebook.RedirectURI,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"pages_show_list", "pages_read_engagement", "pages_manage_posts"},
			},
			models.PlatformInstagram: {
				ClientID:     cfg.Instagram.ClientID,
				ClientSecret: cfg.Instagram.ClientSecret,
				RedirectURL:  cfg.Instagram.RedirectURI,
				Endpoint: oauth2.Endpoint{
					AuthURL:   INSTAGRAM_AUTH_URL,
					TokenURL:  INSTAGRAM_TOKEN_URL,
					AuthStyle: oauth2.AuthStyleInParams,
				},
				Scopes: []string{"instagram_business_basic", "instagram_business_content_publish"},
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *platformService) GetAuthURL(ctx context.Context, platform models.Platform, state string) (string, error) {
	conf, ok := s.oauth[platform]
	if !ok {
		return "", fmt.Errorf("unsupported platform %q", platform)
	}
	if state == "" {
		return "", errors.New("state is empty")
	}
	if platform == models.PlatformInstagram {
		return conf.AuthCodeURL(state, oauth2.SetAuthURLParam("enable_fb_login", "0")), nil
	}
	return conf.AuthCodeURL(state), nil
}

func (s *platformService) Callback(ctx context.Context, platform models.Platform, code string, userID int64) error {
	if code == "" {
		err := errors.New("code is empty")
		slog.Info(err.Error())
		return err
	}
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return ErrInvalidUser
	}

	conf, ok := s.oauth[platform]
	if !ok {
		return fmt.Errorf("unsupported platform %q", platform)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	switch platform {
	case models.PlatformFacebook:
		return s.connectFacebookPages(ctx, userID, token.AccessToken)
	default:
		return s.connectInstagram(ctx, userID, token.AccessToken)
	}
}

// connectFacebookPages stores one account per page the user manages. Page
// tokens derived from a long-lived user token do not expire.
func (s *platformService) connectFacebookPages(ctx context.Context, userID int64, shortLived string) error {
	long, err := s.exchangeLongLived(ctx, s.facebookURL+"/"+s.cfg.GraphAPIVersion+"/oauth/access_token", url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {s.cfg.Facebook.ClientID},
		"client_secret":     {s.cfg.Facebook.ClientSecret},
		"fb_exchange_token": {shortLived},
	})
	if err != nil {
		return err
	}

	var pages transfer.FacebookPages
	endpoint := fmt.Sprintf("%s/%s/me/accounts?%s", s.facebookURL, s.cfg.GraphAPIVersion, url.Values{
		"fields":       {"id,name,access_token,picture"},
		"access_token": {long.AccessToken},
	}.Encode())
	if err := s.get(ctx, endpoint, &pages); err != nil {
		return fmt.Errorf("failed to list facebook pages: %w", err)
	}
	if len(pages.Data) == 0 {
		return errors.New("no facebook pages available for this user")
	}

	for _, page := range pages.Data {
		encrypted, err := utils.Encrypt([]byte(page.AccessToken), []byte(s.cfg.SecretKey))
		if err != nil {
			return err
		}
		_, err = s.sa.Create(ctx, nil, &models.SocialAccount{
			UserID:          userID,
			Platform:        models.PlatformFacebook,
			AccountID:       page.ID,
			AccountName:     page.Name,
			AccountUsername: page.Name,
			ProfilePicture:  page.Picture.Data.URL,
			AccessToken:     encrypted,
			TokenExpiresAt:  time.Now().AddDate(100, 0, 0),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *platformService) connectInstagram(ctx context.Context, userID int64, shortLived string) error {
	long, err := s.exchangeLongLived(ctx, s.instagramURL+"/access_token", url.Values{
		"grant_type":    {"ig_exchange_token"},
		"client_secret": {s.cfg.Instagram.ClientSecret},
		"access_token":  {shortLived},
	})
	if err != nil {
		return err
	}

	var info transfer.InstagramUserInfo
	endpoint := fmt.Sprintf("%s/%s/me?%s", s.instagramURL, s.cfg.GraphAPIVersion, url.Values{
		"fields":       {"user_id,username,name,profile_picture_url"},
		"access_token": {long.AccessToken},
	}.Encode())
	if err := s.get(ctx, endpoint, &info); err != nil {
		return fmt.Errorf("failed to get instagram user info: %w", err)
	}
	accountID := info.UserID
	if accountID == "" {
		accountID = info.ID
	}

	encrypted, err := utils.Encrypt([]byte(long.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	_, err = s.sa.Create(ctx, nil, &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformInstagram,
		AccountID:       accountID,
		AccountName:     info.Name,
		AccountUsername: info.Username,
		ProfilePicture:  info.ProfilePicture,
		AccessToken:     encrypted,
		RefreshToken:    encrypted,
		TokenExpiresAt:  GetExpiresAt(int(long.ExpiresIn)),
	})
	return err
}

// RefreshInstagramToken extends a long-lived Instagram token. The stored
// token doubles as the refresh token.
func (s *platformService) RefreshInstagramToken(ctx context.Context, acc *models.SocialAccount) error {
	current, err := utils.Decrypt(acc.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	var result transfer.LongLivedToken
	endpoint := fmt.Sprintf("%s/refresh_access_token?%s", s.instagramURL, url.Values{
		"grant_type":   {"ig_refresh_token"},
		"access_token": {current},
	}.Encode())
	if err := s.get(ctx, endpoint, &result); err != nil {
		return fmt.Errorf("failed to refresh instagram token: %w", err)
	}

	encrypted, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	return s.sa.SetToken(ctx, acc.ID, acc.AccessToken, &models.SocialAccount{
		AccessToken:    encrypted,
		RefreshToken:   encrypted,
		TokenExpiresAt: GetExpiresAt(int(result.ExpiresIn)),
	})
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}

	accounts, err := s.sa.ListInfoByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	return accounts, nil
}

func (s *platformService) Delete(ctx context.Context, userID, accountID int64) error {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return ErrInvalidUser
	}
	if accountID == 0 {
		err := errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !isValid {
		slog.Info(ErrAccountNotFound.Error())
		return ErrAccountNotFound
	}

	if err := s.sa.Remove(ctx, accountID); err != nil {
		return fmt.Errorf("error removing account: %w", err)
	}
	return nil
}

func (s *platformService) exchangeLongLived(ctx context.Context, endpoint string, params url.Values) (*transfer.LongLivedToken, error) {
	var result transfer.LongLivedToken
	if err := s.get(ctx, endpoint+"?"+params.Encode(), &result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	if result.AccessToken == "" {
		return nil, errors.New("empty long-lived token")
	}
	return &result, nil
}

func (s *platformService) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return doGraphRequest(s.client, req, out)
}
