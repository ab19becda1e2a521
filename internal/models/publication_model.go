package models

import (
	"fmt"
	"strings"
	"time"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

func SupportedPlatforms() []Platform {
	return []Platform{PlatformFacebook, PlatformInstagram}
}

func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, supported := range SupportedPlatforms() {
		if p == supported {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported platform %q", s)
}

type ContentType string

const (
	ContentTypePost  ContentType = "post"
	ContentTypeReel  ContentType = "reel"
	ContentTypeStory ContentType = "story"
)

func SupportedContentTypes() []ContentType {
	return []ContentType{ContentTypePost, ContentTypeReel, ContentTypeStory}
}

func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if ct == "" {
		return ContentTypePost, nil
	}
	for _, supported := range SupportedContentTypes() {
		if ct == supported {
			return ct, nil
		}
	}
	return "", fmt.Errorf("unsupported content type %q", s)
}

// MediaKind is kept open so that stored or decoded items with an unknown kind
// can still reach the validator and be reported.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
	MediaKindGIF   MediaKind = "gif"
)

func (k MediaKind) Known() bool {
	switch k {
	case MediaKindImage, MediaKindVideo, MediaKindGIF:
		return true
	}
	return false
}

type MediaItem struct {
	Kind MediaKind `db:"kind" json:"kind" yaml:"kind"`
	URL  string    `db:"url" json:"url" yaml:"url"`
}

type Content struct {
	Text        string      `db:"text" json:"text" yaml:"text"`
	Media       []MediaItem `json:"media" yaml:"media"`
	Hashtags    []string    `db:"hashtags" json:"hashtags" yaml:"hashtags"`
	Mentions    []string    `db:"mentions" json:"mentions" yaml:"mentions"`
	ContentType ContentType `db:"content_type" json:"content_type" yaml:"content_type"`
}

type PublicationStatus string

const (
	StatusDraft      PublicationStatus = "draft"
	StatusScheduled  PublicationStatus = "scheduled"
	StatusProcessing PublicationStatus = "processing"
	StatusPublished  PublicationStatus = "published"
	StatusError      PublicationStatus = "error"
	StatusCancelled  PublicationStatus = "cancelled"
)

func AllStatuses() []PublicationStatus {
	return []PublicationStatus{
		StatusDraft,
		StatusScheduled,
		StatusProcessing,
		StatusPublished,
		StatusError,
		StatusCancelled,
	}
}

type Publication struct {
	ID          string            `db:"id" json:"id" yaml:"id"`
	UserID      int64             `db:"user_id" json:"user_id" yaml:"user_id"`
	Content     Content           `json:"content" yaml:"content"`
	Platforms   []Platform        `json:"platforms" yaml:"platforms"`
	Status      PublicationStatus `db:"status" json:"status" yaml:"status"`
	ScheduledAt *time.Time        `db:"scheduled_at" json:"scheduled_at,omitempty" yaml:"scheduled_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at" yaml:"updated_at"`
}

// PlacementTime is the instant used to put the publication on the calendar.
func (p *Publication) PlacementTime() time.Time {
	if p.ScheduledAt != nil {
		return *p.ScheduledAt
	}
	return p.CreatedAt
}

// Clone returns a deep copy so callers can mutate it without touching p.
func (p Publication) Clone() Publication {
	c := p
	c.Content.Media = append([]MediaItem(nil), p.Content.Media...)
	c.Content.Hashtags = append([]string(nil), p.Content.Hashtags...)
	c.Content.Mentions = append([]string(nil), p.Content.Mentions...)
	c.Platforms = append([]Platform(nil), p.Platforms...)
	if p.ScheduledAt != nil {
		at := *p.ScheduledAt
		c.ScheduledAt = &at
	}
	return c
}

// NormalizeTags trims, strips the leading marker and de-duplicates tags while
// keeping their first-seen order.
func NormalizeTags(tags []string, marker string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimPrefix(strings.TrimSpace(t), marker)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NormalizePlatforms de-duplicates platforms keeping order.
func NormalizePlatforms(platforms []Platform) []Platform {
	seen := make(map[Platform]struct{}, len(platforms))
	out := make([]Platform, 0, len(platforms))
	for _, p := range platforms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
