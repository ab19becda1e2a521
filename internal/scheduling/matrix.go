// Package scheduling holds the publication scheduling core: content rules,
// the publication status machine, the calendar time grid and the drag
// rescheduling gesture. Everything here is synchronous and never reads the
// system clock; callers pass "now" in.
package scheduling

import (
	"fmt"

	"github.com/maheshrc27/postflow/internal/models"
)

type AspectRatio string

const (
	AspectAny       AspectRatio = ""
	AspectVertical  AspectRatio = "9:16"
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "4:5"
	AspectLandscape AspectRatio = "16:9"
)

type MediaRule struct {
	MaxImages               int
	MaxVideos               int
	AllowedKinds            map[models.MediaKind]struct{}
	AllowMixedKinds         bool
	RequiredAspectRatio     AspectRatio
	MaxHorizontalResolution int
	RequiresMedia           bool
}

func (r MediaRule) Allows(kind models.MediaKind) bool {
	_, ok := r.AllowedKinds[kind]
	return ok
}

type matrixKey struct {
	platform    models.Platform
	contentType models.ContentType
}

func kinds(ks ...models.MediaKind) map[models.MediaKind]struct{} {
	m := make(map[models.MediaKind]struct{}, len(ks))
	for _, k := range ks {
		m[k] = struct{}{}
	}
	return m
}

var contentMatrix = map[matrixKey]MediaRule{
	{models.PlatformFacebook, models.ContentTypePost}: {
		MaxImages:       10,
		MaxVideos:       1,
		AllowedKinds:    kinds(models.MediaKindImage, models.MediaKindVideo, models.MediaKindGIF),
		AllowMixedKinds: false,
	},
	{models.PlatformFacebook, models.ContentTypeReel}: {
		MaxImages:               0,
		MaxVideos:               1,
		AllowedKinds:            kinds(models.MediaKindVideo),
		RequiredAspectRatio:     AspectVertical,
		MaxHorizontalResolution: 1080,
		RequiresMedia:           true,
	},
	{models.PlatformFacebook, models.ContentTypeStory}: {
		MaxImages:               1,
		MaxVideos:               1,
		AllowedKinds:            kinds(models.MediaKindImage, models.MediaKindVideo),
		RequiredAspectRatio:     AspectVertical,
		MaxHorizontalResolution: 1080,
		RequiresMedia:           true,
	},
	{models.PlatformInstagram, models.ContentTypePost}: {
		MaxImages:               10,
		MaxVideos:               10,
		AllowedKinds:            kinds(models.MediaKindImage, models.MediaKindVideo),
		AllowMixedKinds:         true,
		MaxHorizontalResolution: 1440,
	},
	{models.PlatformInstagram, models.ContentTypeReel}: {
		MaxImages:               0,
		MaxVideos:               1,
		AllowedKinds:            kinds(models.MediaKindVideo),
		RequiredAspectRatio:     AspectVertical,
		MaxHorizontalResolution: 1080,
		RequiresMedia:           true,
	},
	{models.PlatformInstagram, models.ContentTypeStory}: {
		MaxImages:               1,
		MaxVideos:               1,
		AllowedKinds:            kinds(models.MediaKindImage, models.MediaKindVideo),
		RequiredAspectRatio:     AspectVertical,
		MaxHorizontalResolution: 1080,
		RequiresMedia:           true,
	},
}

// MediaRuleFor returns the media constraints for a platform and content type.
// It panics for a pair outside the supported enumeration.
func MediaRuleFor(platform models.Platform, contentType models.ContentType) MediaRule {
	rule, ok := contentMatrix[matrixKey{platform, contentType}]
	if !ok {
		panic(fmt.Sprintf("scheduling: no media rule for %s/%s", platform, contentType))
	}
	return rule
}

// SupportedContentTypes lists the content types a platform has a rule for.
func SupportedContentTypes(platform models.Platform) []models.ContentType {
	var out []models.ContentType
	for _, ct := range models.SupportedContentTypes() {
		if _, ok := contentMatrix[matrixKey{platform, ct}]; ok {
			out = append(out, ct)
		}
	}
	return out
}
