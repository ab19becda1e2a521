package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/postflow/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const MaxUploadSize = 100 << 20

var ErrUnsupportedMedia = errors.New("unsupported media type")

type MediaService interface {
	Upload(ctx context.Context, userID int64, data []byte) (*models.MediaItem, error)
}

type mediaService struct {
	store ObjectStore
}

func NewMediaService(store ObjectStore) MediaService {
	return &mediaService{store: store}
}

// Upload sniffs the file, stores it under a random key and returns the media
// item to attach to a publication.
func (s *mediaService) Upload(ctx context.Context, userID int64, data []byte) (*models.MediaItem, error) {
	if userID == 0 {
		slog.Info(ErrInvalidUser.Error())
		return nil, ErrInvalidUser
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedMedia)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrUnsupportedMedia, MaxUploadSize)
	}

	kind, ft, err := DetectMediaKind(data)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key := fmt.Sprintf("%d/%s.%s", userID, id, ft.Extension)

	if err := s.store.Put(ctx, key, data, ft.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	return &models.MediaItem{Kind: kind, URL: s.store.PublicURL(key)}, nil
}

// DetectMediaKind maps the sniffed file type onto a media kind.
func DetectMediaKind(data []byte) (models.MediaKind, types.Type, error) {
	ft, err := filetype.Match(data)
	if err != nil || ft == types.Unknown {
		return "", types.Unknown, ErrUnsupportedMedia
	}

	switch {
	case ft.MIME.Value == "image/gif":
		return models.MediaKindGIF, ft, nil
	case filetype.IsImage(data):
		switch ft.Extension {
		case "jpg", "png", "webp", "heif":
			return models.MediaKindImage, ft, nil
		}
	case filetype.IsVideo(data):
		switch ft.Extension {
		case "mp4", "mov", "m4v":
			return models.MediaKindVideo, ft, nil
		}
	}
	return "", ft, fmt.Errorf("%w: %s", ErrUnsupportedMedia, ft.Extension)
}
