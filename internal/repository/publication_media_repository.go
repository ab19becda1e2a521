package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type PublicationMediaRepository interface {
	Create(ctx context.Context, tx *sql.Tx, publicationID string, items []models.MediaItem) error
	ListByPublicationIDs(ctx context.Context, ids []string) (map[string][]models.MediaItem, error)
	RemoveByPublicationID(ctx context.Context, tx *sql.Tx, publicationID string) error
}

type publicationMediaRepository struct {
	db *sql.DB
}

func NewPublicationMediaRepository(db *sql.DB) PublicationMediaRepository {
	return &publicationMediaRepository{db: db}
}

func (r *publicationMediaRepository) Create(ctx context.Context, tx *sql.Tx, publicationID string, items []models.MediaItem) error {
	query := `
		INSERT INTO publication_media (publication_id, display_order, kind, url)
		VALUES ($1, $2, $3, $4)
	`
	for i, item := range items {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, publicationID, i, item.Kind, item.URL)
		} else {
			_, err = r.db.ExecContext(ctx, query, publicationID, i, item.Kind, item.URL)
		}
		if err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("insert media %d: %w", i, err)
		}
	}
	return nil
}

func (r *publicationMediaRepository) ListByPublicationIDs(ctx context.Context, ids []string) (map[string][]models.MediaItem, error) {
	out := make(map[string][]models.MediaItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT publication_id, kind, url
		FROM publication_media
		WHERE publication_id = ANY($1)
		ORDER BY publication_id, display_order
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var item models.MediaItem
		if err := rows.Scan(&id, &item.Kind, &item.URL); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[id] = append(out[id], item)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *publicationMediaRepository) RemoveByPublicationID(ctx context.Context, tx *sql.Tx, publicationID string) error {
	var err error
	query := `DELETE FROM publication_media WHERE publication_id = $1`
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, publicationID)
	} else {
		_, err = r.db.ExecContext(ctx, query, publicationID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
