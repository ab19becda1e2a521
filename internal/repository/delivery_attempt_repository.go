package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/models"
)

type DeliveryAttemptRepository interface {
	Create(ctx context.Context, a *models.DeliveryAttempt) (int64, error)
	ListByPublicationID(ctx context.Context, publicationID string) ([]*models.DeliveryAttempt, error)
}

type deliveryAttemptRepository struct {
	db *sql.DB
}

func NewDeliveryAttemptRepository(db *sql.DB) DeliveryAttemptRepository {
	return &deliveryAttemptRepository{db: db}
}

func (r *deliveryAttemptRepository) Create(ctx context.Context, a *models.DeliveryAttempt) (int64, error) {
	query := `
		INSERT INTO delivery_attempts (publication_id, user_id, platform, external_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, a.PublicationID, a.UserID, a.Platform, a.ExternalID, a.ErrorMessage, a.CreatedAt).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *deliveryAttemptRepository) ListByPublicationID(ctx context.Context, publicationID string) ([]*models.DeliveryAttempt, error) {
	query := `
		SELECT id, publication_id, user_id, platform, external_id, error_message, created_at
		FROM delivery_attempts
		WHERE publication_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, publicationID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		err := rows.Scan(&a.ID, &a.PublicationID, &a.UserID, &a.Platform, &a.ExternalID, &a.ErrorMessage, &a.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return attempts, nil
}
