package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

// PublicationPlatformRepository stores the target platforms of a publication.
type PublicationPlatformRepository interface {
	Create(ctx context.Context, tx *sql.Tx, publicationID string, platforms []models.Platform) error
	ListByPublicationIDs(ctx context.Context, ids []string) (map[string][]models.Platform, error)
	RemoveByPublicationID(ctx context.Context, tx *sql.Tx, publicationID string) error
}

type publicationPlatformRepository struct {
	db *sql.DB
}

func NewPublicationPlatformRepository(db *sql.DB) PublicationPlatformRepository {
	return &publicationPlatformRepository{db: db}
}

func (r *publicationPlatformRepository) Create(ctx context.Context, tx *sql.Tx, publicationID string, platforms []models.Platform) error {
	query := `
		INSERT INTO publication_platforms (publication_id, display_order, platform)
		VALUES ($1, $2, $3)
	`
	for i, p := range platforms {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, publicationID, i, p)
		} else {
			_, err = r.db.ExecContext(ctx, query, publicationID, i, p)
		}
		if err != nil {
			slog.Info(err.Error())
			return fmt.Errorf("insert platform %s: %w", p, err)
		}
	}
	return nil
}

func (r *publicationPlatformRepository) ListByPublicationIDs(ctx context.Context, ids []string) (map[string][]models.Platform, error) {
	out := make(map[string][]models.Platform, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT publication_id, platform
		FROM publication_platforms
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
		var p models.Platform
		if err := rows.Scan(&id, &p); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[id] = append(out[id], p)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

func (r *publicationPlatformRepository) RemoveByPublicationID(ctx context.Context, tx *sql.Tx, publicationID string) error {
	var err error
	query := `DELETE FROM publication_platforms WHERE publication_id = $1`
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
