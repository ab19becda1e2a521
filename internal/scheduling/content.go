package scheduling

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/maheshrc27/postflow/internal/models"
)

const (
	TextWarnLength        = 2200
	TextMaxLength         = 3000
	MaxMediaItems         = 10
	InstagramMaxHashtags  = 30
	msgTextOrMedia        = "content needs text or at least one media item"
	msgInstagramNeedMedia = "instagram requires at least one image or video"
)

type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Err returns a *ValidationError when the result has errors, nil otherwise.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors, Warnings: r.Warnings}
}

// ValidateContent checks a draft against the platform matrix and the generic
// limits. All rules run; nothing short-circuits. Errors block saving, warnings
// do not.
func ValidateContent(content models.Content, platforms []models.Platform) ValidationResult {
	res := ValidationResult{Errors: []string{}, Warnings: []string{}}

	contentType := content.ContentType
	if contentType == "" {
		contentType = models.ContentTypePost
	}

	noText := strings.TrimSpace(content.Text) == ""
	noMedia := len(content.Media) == 0

	if noText && noMedia {
		res.Errors = append(res.Errors, msgTextOrMedia)
	}

	for _, p := range models.NormalizePlatforms(platforms) {
		rule := MediaRuleFor(p, contentType)
		if rule.RequiresMedia && noMedia {
			res.Errors = append(res.Errors, fmt.Sprintf("%s %s requires at least one media item", p, contentType))
		}
		if p == models.PlatformInstagram && noMedia {
			res.Errors = append(res.Errors, msgInstagramNeedMedia)
		}
		if !noMedia {
			res.Errors = append(res.Errors, checkMediaAgainstRule(p, contentType, rule, content.Media)...)
		}
		if p == models.PlatformInstagram && len(content.Hashtags) > InstagramMaxHashtags {
			res.Warnings = append(res.Warnings, fmt.Sprintf("instagram only keeps the first %d hashtags", InstagramMaxHashtags))
		}
	}

	textLen := utf8.RuneCountInString(content.Text)
	switch {
	case textLen > TextMaxLength:
		res.Errors = append(res.Errors, fmt.Sprintf("text exceeds the %d character limit (%d)", TextMaxLength, textLen))
	case textLen > TextWarnLength:
		res.Warnings = append(res.Warnings, fmt.Sprintf("text longer than %d characters may be truncated on some platforms", TextWarnLength))
	}

	if len(content.Media) > MaxMediaItems {
		res.Errors = append(res.Errors, fmt.Sprintf("at most %d media items are allowed (%d)", MaxMediaItems, len(content.Media)))
	}
	for i, m := range content.Media {
		if !m.Kind.Known() {
			res.Errors = append(res.Errors, fmt.Sprintf("media item %d has unsupported kind %q", i+1, m.Kind))
		}
	}

	res.IsValid = len(res.Errors) == 0
	return res
}

func checkMediaAgainstRule(p models.Platform, ct models.ContentType, rule MediaRule, media []models.MediaItem) []string {
	var errs []string
	var images, videos int
	seen := make(map[models.MediaKind]struct{})
	for _, m := range media {
		if !m.Kind.Known() {
			continue
		}
		seen[m.Kind] = struct{}{}
		if m.Kind == models.MediaKindVideo {
			videos++
		} else {
			images++
		}
		if !rule.Allows(m.Kind) {
			errs = append(errs, fmt.Sprintf("%s %s does not accept %s media", p, ct, m.Kind))
		}
	}
	if images > rule.MaxImages && rule.Allows(models.MediaKindImage) {
		errs = append(errs, fmt.Sprintf("%s %s accepts at most %d images", p, ct, rule.MaxImages))
	}
	if videos > rule.MaxVideos && rule.Allows(models.MediaKindVideo) {
		errs = append(errs, fmt.Sprintf("%s %s accepts at most %d videos", p, ct, rule.MaxVideos))
	}
	if len(seen) > 1 && !rule.AllowMixedKinds {
		errs = append(errs, fmt.Sprintf("%s %s cannot mix media kinds", p, ct))
	}
	return errs
}
