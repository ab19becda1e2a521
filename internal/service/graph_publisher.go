package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/transfer"
	"github.com/maheshrc27/postflow/pkg/utils"
)

const (
	FacebookGraphURL  = "https://graph.facebook.com"
	InstagramGraphURL = "https://graph.instagram.com"
)

// Publisher delivers a publication to one connected account and returns the
// id the platform assigned to the new post.
type Publisher interface {
	Publish(ctx context.Context, p *models.Publication, acc *models.SocialAccount) (string, error)
}

type GraphPublisher struct {
	cfg          config.Config
	client       *http.Client
	facebookURL  string
	instagramURL string
	pollInterval time.Duration
	pollAttempts int
	secretKey    []byte
}

type GraphOption func(*GraphPublisher)

func WithGraphBaseURLs(facebook, instagram string) GraphOption {
	return func(g *GraphPublisher) {
		g.facebookURL = strings.TrimRight(facebook, "/")
		g.instagramURL = strings.TrimRight(instagram, "/")
	}
}

// WithContainerPolling sets how often and how many times an Instagram video
// container is checked before publishing.
func WithContainerPolling(interval time.Duration, attempts int) GraphOption {
	return func(g *GraphPublisher) {
		g.pollInterval = interval
		g.pollAttempts = attempts
	}
}

func NewGraphPublisher(cfg config.Config, client *http.Client, opts ...GraphOption) *GraphPublisher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	g := &GraphPublisher{
		cfg:          cfg,
		client:       client,
		facebookURL:  FacebookGraphURL,
		instagramURL: InstagramGraphURL,
		pollInterval: 5 * time.Second,
		pollAttempts: 60,
		secretKey:    []byte(cfg.SecretKey),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GraphPublisher) Publish(ctx context.Context, p *models.Publication, acc *models.SocialAccount) (string, error) {
	accessToken, err := utils.Decrypt(acc.AccessToken, g.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt access token: %w", err)
	}

	switch acc.Platform {
	case models.PlatformFacebook:
		return g.publishFacebook(ctx, p, acc.AccountID, accessToken)
	case models.PlatformInstagram:
		return g.publishInstagram(ctx, p, acc.AccountID, accessToken)
	default:
		return "", fmt.Errorf("unsupported platform %q", acc.Platform)
	}
}

// Caption joins the text with the hashtags and mentions of content.
func Caption(content models.Content) string {
	parts := []string{}
	if t := strings.TrimSpace(content.Text); t != "" {
		parts = append(parts, t)
	}
	var tags []string
	for _, h := range content.Hashtags {
		tags = append(tags, "#"+h)
	}
	for _, m := range content.Mentions {
		tags = append(tags, "@"+m)
	}
	if len(tags) > 0 {
		parts = append(parts, strings.Join(tags, " "))
	}
	return strings.Join(parts, "\n\n")
}

func (g *GraphPublisher) publishFacebook(ctx context.Context, p *models.Publication, pageID, token string) (string, error) {
	caption := Caption(p.Content)
	media := p.Content.Media

	switch p.Content.ContentType {
	case models.ContentTypeStory:
		if len(media) != 1 || media[0].Kind == models.MediaKindVideo {
			return "", errors.New("facebook stories support a single photo")
		}
		photoID, err := g.facebookPhoto(ctx, pageID, token, media[0].URL, "", false)
		if err != nil {
			return "", err
		}
		return g.facebookPost(ctx, pageID+"/photo_stories", url.Values{"photo_id": {photoID}, "access_token": {token}})

	case models.ContentTypeReel:
		if len(media) != 1 {
			return "", errors.New("facebook reels need exactly one video")
		}
		return g.facebookPost(ctx, pageID+"/videos", url.Values{
			"file_url":     {media[0].URL},
			"description":  {caption},
			"access_token": {token},
		})
	}

	switch {
	case len(media) == 0:
		return g.facebookPost(ctx, pageID+"/feed", url.Values{"message": {caption}, "access_token": {token}})

	case len(media) == 1 && media[0].Kind == models.MediaKindVideo:
		return g.facebookPost(ctx, pageID+"/videos", url.Values{
			"file_url":     {media[0].URL},
			"description":  {caption},
			"access_token": {token},
		})

	case len(media) == 1:
		return g.facebookPhoto(ctx, pageID, token, media[0].URL, caption, true)

	default:
		form := url.Values{"message": {caption}, "access_token": {token}}
		for i, m := range media {
			if m.Kind == models.MediaKindVideo {
				return "", errors.New("facebook multi-photo posts cannot contain videos")
			}
			photoID, err := g.facebookPhoto(ctx, pageID, token, m.URL, "", false)
			if err != nil {
				return "", fmt.Errorf("failed to upload photo %d: %w", i, err)
			}
			form.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, photoID))
		}
		return g.facebookPost(ctx, pageID+"/feed", form)
	}
}

func (g *GraphPublisher) facebookPhoto(ctx context.Context, pageID, token, imageURL, caption string, published bool) (string, error) {
	form := url.Values{
		"url":          {imageURL},
		"published":    {fmt.Sprintf("%t", published)},
		"access_token": {token},
	}
	if caption != "" {
		form.Set("caption", caption)
	}
	return g.facebookPost(ctx, pageID+"/photos", form)
}

func (g *GraphPublisher) facebookPost(ctx context.Context, path string, form url.Values) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", g.facebookURL, g.cfg.GraphAPIVersion, path)
	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := g.postForm(ctx, endpoint, form, &result); err != nil {
		return "", err
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", errors.New("no id returned from Facebook")
	}
	return result.ID, nil
}

func (g *GraphPublisher) publishInstagram(ctx context.Context, p *models.Publication, accountID, token string) (string, error) {
	media := p.Content.Media
	if len(media) == 0 {
		return "", errors.New("instagram requires at least one image or video")
	}
	caption := Caption(p.Content)

	var containerID string
	var err error
	switch {
	case p.Content.ContentType == models.ContentTypeReel:
		containerID, err = g.instagramContainer(ctx, accountID, token, url.Values{
			"media_type": {"REELS"},
			"video_url":  {media[0].URL},
			"caption":    {caption},
		})
	case p.Content.ContentType == models.ContentTypeStory:
		form := url.Values{"media_type": {"STORIES"}}
		setInstagramMedia(form, media[0])
		containerID, err = g.instagramContainer(ctx, accountID, token, form)
	case len(media) == 1:
		form := url.Values{"caption": {caption}}
		setInstagramMedia(form, media[0])
		if media[0].Kind == models.MediaKindVideo {
			form.Set("media_type", "REELS")
		}
		containerID, err = g.instagramContainer(ctx, accountID, token, form)
	default:
		containerID, err = g.instagramCarousel(ctx, accountID, token, caption, media)
	}
	if err != nil {
		return "", err
	}

	if err := g.waitForContainer(ctx, containerID, token); err != nil {
		return "", err
	}
	return g.instagramPublish(ctx, accountID, containerID, token)
}

func setInstagramMedia(form url.Values, m models.MediaItem) {
	if m.Kind == models.MediaKindVideo {
		form.Set("video_url", m.URL)
		return
	}
	form.Set("image_url", m.URL)
}

func (g *GraphPublisher) instagramCarousel(ctx context.Context, accountID, token, caption string, media []models.MediaItem) (string, error) {
	children := make([]string, 0, len(media))
	for i, m := range media {
		form := url.Values{"is_carousel_item": {"true"}}
		setInstagramMedia(form, m)
		if m.Kind == models.MediaKindVideo {
			form.Set("media_type", "VIDEO")
		}
		id, err := g.instagramContainer(ctx, accountID, token, form)
		if err != nil {
			return "", fmt.Errorf("failed to create carousel item %d: %w", i, err)
		}
		if err := g.waitForContainer(ctx, id, token); err != nil {
			return "", err
		}
		children = append(children, id)
	}

	return g.instagramContainer(ctx, accountID, token, url.Values{
		"media_type": {"CAROUSEL"},
		"caption":    {caption},
		"children":   {strings.Join(children, ",")},
	})
}

func (g *GraphPublisher) instagramContainer(ctx context.Context, accountID, token string, form url.Values) (string, error) {
	form.Set("access_token", token)
	endpoint := fmt.Sprintf("%s/%s/%s/media", g.instagramURL, g.cfg.GraphAPIVersion, accountID)

	var result struct {
		ID string `json:"id"`
	}
	if err := g.postForm(ctx, endpoint, form, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram")
	}
	return result.ID, nil
}

// waitForContainer polls the container until Instagram has processed it.
func (g *GraphPublisher) waitForContainer(ctx context.Context, containerID, token string) error {
	endpoint := fmt.Sprintf("%s/%s/%s?%s", g.instagramURL, g.cfg.GraphAPIVersion, containerID,
		url.Values{"fields": {"status_code"}, "access_token": {token}}.Encode())

	for attempt := 0; attempt < g.pollAttempts; attempt++ {
		var result struct {
			StatusCode string `json:"status_code"`
		}
		if err := g.getJSON(ctx, endpoint, &result); err != nil {
			return err
		}

		switch result.StatusCode {
		case "FINISHED", "PUBLISHED", "":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("instagram container %s is %s", containerID, strings.ToLower(result.StatusCode))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
	return fmt.Errorf("instagram container %s was not ready after %d checks", containerID, g.pollAttempts)
}

func (g *GraphPublisher) instagramPublish(ctx context.Context, accountID, containerID, token string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/media_publish", g.instagramURL, g.cfg.GraphAPIVersion, accountID)
	var result struct {
		ID string `json:"id"`
	}
	err := g.postForm(ctx, endpoint, url.Values{"creation_id": {containerID}, "access_token": {token}}, &result)
	if err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("no media ID returned from Instagram publish")
	}
	slog.Info("published to instagram", "account_id", accountID, "media_id", result.ID)
	return result.ID, nil
}

func (g *GraphPublisher) postForm(ctx context.Context, endpoint string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return g.do(req, out)
}

func (g *GraphPublisher) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	return g.do(req, out)
}

func (g *GraphPublisher) do(req *http.Request, out interface{}) error {
	return doGraphRequest(g.client, req, out)
}

// GraphError is an error payload returned by the Graph API.
type GraphError struct {
	StatusCode int
	Message    string
	Code       int
	Transient  bool
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph api error %d (code %d): %s", e.StatusCode, e.Code, e.Message)
}

func doGraphRequest(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr transfer.GraphErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return &GraphError{
				StatusCode: resp.StatusCode,
				Message:    apiErr.Error.Message,
				Code:       apiErr.Error.Code,
				Transient:  apiErr.Error.IsTransient,
			}
		}
		return &GraphError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
