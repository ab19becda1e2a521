package transfer

import (
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

type MediaItemInput struct {
	Kind string `json:"kind" yaml:"kind"`
	URL  string `json:"url" yaml:"url"`
}

// PublicationInput is the body of create, update and validate requests.
// It is also the document format read by postflowctl.
type PublicationInput struct {
	Text        string           `json:"text" yaml:"text"`
	Media       []MediaItemInput `json:"media" yaml:"media"`
	Hashtags    []string         `json:"hashtags" yaml:"hashtags"`
	Mentions    []string         `json:"mentions" yaml:"mentions"`
	ContentType string           `json:"content_type" yaml:"content_type"`
	Platforms   []string         `json:"platforms" yaml:"platforms"`
	Action      string           `json:"action,omitempty" yaml:"action,omitempty"`
	ScheduledAt *time.Time       `json:"scheduled_at,omitempty" yaml:"scheduled_at,omitempty"`
}

// ToContent converts the input into domain values. Media kinds are kept as
// sent so the validator can report unknown ones.
func (in *PublicationInput) ToContent() (models.Content, []models.Platform, error) {
	ct, err := models.ParseContentType(in.ContentType)
	if err != nil {
		return models.Content{}, nil, err
	}

	platforms := make([]models.Platform, 0, len(in.Platforms))
	for _, raw := range in.Platforms {
		p, err := models.ParsePlatform(raw)
		if err != nil {
			return models.Content{}, nil, err
		}
		platforms = append(platforms, p)
	}

	media := make([]models.MediaItem, 0, len(in.Media))
	for _, m := range in.Media {
		media = append(media, models.MediaItem{Kind: models.MediaKind(m.Kind), URL: m.URL})
	}

	content := models.Content{
		Text:        in.Text,
		Media:       media,
		Hashtags:    models.NormalizeTags(in.Hashtags, "#"),
		Mentions:    models.NormalizeTags(in.Mentions, "@"),
		ContentType: ct,
	}
	return content, models.NormalizePlatforms(platforms), nil
}

type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	SlotIndex int    `json:"slot_index"`
}
