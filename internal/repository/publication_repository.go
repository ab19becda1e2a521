package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

type PublicationFilter struct {
	Statuses []models.PublicationStatus
	Limit    int
	Offset   int
}

type PublicationRepository interface {
	Create(ctx context.Context, p *models.Publication) error
	GetByID(ctx context.Context, id string) (*models.Publication, error)
	GetByUser(ctx context.Context, userID int64, id string) (*models.Publication, error)
	ListByUser(ctx context.Context, userID int64, f PublicationFilter) ([]*models.Publication, error)
	// ListByUserInRange returns publications whose placement time (scheduled
	// time, or creation time for unscheduled ones) falls in [from, to).
	ListByUserInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Publication, error)
	ListStuckProcessing(ctx context.Context, updatedBefore time.Time) ([]*models.Publication, error)
	ListDueScheduled(ctx context.Context, scheduledBefore time.Time) ([]*models.Publication, error)
	// UpdateSchedule writes status, scheduled_at and updated_at of p when the
	// stored updated_at still equals expected.
	UpdateSchedule(ctx context.Context, p *models.Publication, expected time.Time) error
	// UpdateStatus moves the row from one status to another; it fails with
	// ErrStaleWrite when the row is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to models.PublicationStatus, at time.Time) error
	UpdateContent(ctx context.Context, p *models.Publication, expected time.Time) error
	Remove(ctx context.Context, id string) error
}

type publicationRepository struct {
	db        *sql.DB
	media     PublicationMediaRepository
	platforms PublicationPlatformRepository
}

func NewPublicationRepository(db *sql.DB, media PublicationMediaRepository, platforms PublicationPlatformRepository) PublicationRepository {
	return &publicationRepository{db: db, media: media, platforms: platforms}
}

const publicationColumns = `id, user_id, text, hashtags, mentions, content_type, status, scheduled_at, created_at, updated_at`

func (r *publicationRepository) Create(ctx context.Context, p *models.Publication) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO publications (id, user_id, text, hashtags, mentions, content_type, status, scheduled_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.Content.Text,
		pq.Array(p.Content.Hashtags),
		pq.Array(p.Content.Mentions),
		p.Content.ContentType,
		p.Status,
		nullTime(p.ScheduledAt),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("insert publication: %w", err)
	}

	if err := r.platforms.Create(ctx, tx, p.ID, p.Platforms); err != nil {
		return err
	}
	if err := r.media.Create(ctx, tx, p.ID, p.Content.Media); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *publicationRepository) GetByID(ctx context.Context, id string) (*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = $1`
	p, err := scanPublication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := r.attach(ctx, []*models.Publication{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *publicationRepository) GetByUser(ctx context.Context, userID int64, id string) (*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE id = $1 AND user_id = $2`
	p, err := scanPublication(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		return nil, err
	}
	if err := r.attach(ctx, []*models.Publication{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *publicationRepository) ListByUser(ctx context.Context, userID int64, f PublicationFilter) ([]*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE user_id = $1`
	args := []interface{}{userID}

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	query += ` ORDER BY COALESCE(scheduled_at, created_at) DESC, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}
	return r.list(ctx, query, args...)
}

func (r *publicationRepository) ListByUserInRange(ctx context.Context, userID int64, from, to time.Time) ([]*models.Publication, error) {
	query := `
		SELECT ` + publicationColumns + `
		FROM publications
		WHERE user_id = $1
		AND COALESCE(scheduled_at, created_at) >= $2
		AND COALESCE(scheduled_at, created_at) < $3
		ORDER BY COALESCE(scheduled_at, created_at), created_at, id
	`
	return r.list(ctx, query, userID, from, to)
}

func (r *publicationRepository) ListStuckProcessing(ctx context.Context, updatedBefore time.Time) ([]*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE status = $1 AND updated_at < $2`
	return r.list(ctx, query, models.StatusProcessing, updatedBefore)
}

func (r *publicationRepository) ListDueScheduled(ctx context.Context, scheduledBefore time.Time) ([]*models.Publication, error) {
	query := `SELECT ` + publicationColumns + ` FROM publications WHERE status = $1 AND scheduled_at < $2`
	return r.list(ctx, query, models.StatusScheduled, scheduledBefore)
}

func (r *publicationRepository) UpdateSchedule(ctx context.Context, p *models.Publication, expected time.Time) error {
	query := `
		UPDATE publications
		SET status = $1,
			scheduled_at = $2,
			updated_at = $3
		WHERE id = $4 AND updated_at = $5
	`
	result, err := r.db.ExecContext(ctx, query, p.Status, nullTime(p.ScheduledAt), p.UpdatedAt, p.ID, expected)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return expectOneRow(result)
}

func (r *publicationRepository) UpdateStatus(ctx context.Context, id string, from, to models.PublicationStatus, at time.Time) error {
	query := `
		UPDATE publications
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return expectOneRow(result)
}

func (r *publicationRepository) UpdateContent(ctx context.Context, p *models.Publication, expected time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	defer tx.Rollback()

	query := `
		UPDATE publications
		SET text = $1,
			hashtags = $2,
			mentions = $3,
			content_type = $4,
			updated_at = $5
		WHERE id = $6 AND updated_at = $7
	`
	result, err := tx.ExecContext(ctx, query,
		p.Content.Text,
		pq.Array(p.Content.Hashtags),
		pq.Array(p.Content.Mentions),
		p.Content.ContentType,
		p.UpdatedAt,
		p.ID,
		expected,
	)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if err := r.platforms.RemoveByPublicationID(ctx, tx, p.ID); err != nil {
		return err
	}
	if err := r.platforms.Create(ctx, tx, p.ID, p.Platforms); err != nil {
		return err
	}
	if err := r.media.RemoveByPublicationID(ctx, tx, p.ID); err != nil {
		return err
	}
	if err := r.media.Create(ctx, tx, p.ID, p.Content.Media); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *publicationRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM publications WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *publicationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Publication, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var pubs []*models.Publication
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, err
		}
		pubs = append(pubs, p)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if err := r.attach(ctx, pubs); err != nil {
		return nil, err
	}
	return pubs, nil
}

// attach loads platforms and media for pubs in two queries.
func (r *publicationRepository) attach(ctx context.Context, pubs []*models.Publication) error {
	if len(pubs) == 0 {
		return nil
	}
	ids := make([]string, len(pubs))
	for i, p := range pubs {
		ids[i] = p.ID
	}

	platforms, err := r.platforms.ListByPublicationIDs(ctx, ids)
	if err != nil {
		return err
	}
	media, err := r.media.ListByPublicationIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range pubs {
		p.Platforms = platforms[p.ID]
		p.Content.Media = media[p.ID]
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPublication(row rowScanner) (*models.Publication, error) {
	var p models.Publication
	var scheduledAt sql.NullTime
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Content.Text,
		pq.Array(&p.Content.Hashtags),
		pq.Array(&p.Content.Mentions),
		&p.Content.ContentType,
		&p.Status,
		&scheduledAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		p.ScheduledAt = &t
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func expectOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return ErrStaleWrite
	}
	return nil
}
