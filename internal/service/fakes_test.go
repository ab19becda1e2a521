package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type memPublications struct {
	mu        sync.Mutex
	rows      map[string]models.Publication
	updateErr error
}

func newMemPublications(pubs ...models.Publication) *memPublications {
	r := &memPublications{rows: make(map[string]models.Publication)}
	for _, p := range pubs {
		r.rows[p.ID] = p.Clone()
	}
	return r
}

func (r *memPublications) get(id string) (models.Publication, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	return p.Clone(), ok
}

func (r *memPublications) Create(_ context.Context, p *models.Publication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.ID] = p.Clone()
	return nil
}

func (r *memPublications) GetByID(_ context.Context, id string) (*models.Publication, error) {
	p, ok := r.get(id)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r *memPublications) GetByUser(ctx context.Context, userID int64, id string) (*models.Publication, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *memPublications) filter(keep func(models.Publication) bool) []*models.Publication {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Publication
	for _, p := range r.rows {
		if keep(p) {
			c := p.Clone()
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacementTime().Before(out[j].PlacementTime()) })
	return out
}

func (r *memPublications) ListByUser(_ context.Context, userID int64, f repository.PublicationFilter) ([]*models.Publication, error) {
	return r.filter(func(p models.Publication) bool {
		if p.UserID != userID {
			return false
		}
		if len(f.Statuses) == 0 {
			return true
		}
		for _, s := range f.Statuses {
			if p.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (r *memPublications) ListByUserInRange(_ context.Context, userID int64, from, to time.Time) ([]*models.Publication, error) {
	return r.filter(func(p models.Publication) bool {
		at := p.PlacementTime()
		return p.UserID == userID && !at.Before(from) && at.Before(to)
	}), nil
}

func (r *memPublications) ListStuckProcessing(_ context.Context, updatedBefore time.Time) ([]*models.Publication, error) {
	return r.filter(func(p models.Publication) bool {
		return p.Status == models.StatusProcessing && p.UpdatedAt.Before(updatedBefore)
	}), nil
}

func (r *memPublications) ListDueScheduled(_ context.Context, scheduledBefore time.Time) ([]*models.Publication, error) {
	return r.filter(func(p models.Publication) bool {
		return p.Status == models.StatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(scheduledBefore)
	}), nil
}

func (r *memPublications) UpdateSchedule(_ context.Context, p *models.Publication, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	cur, ok := r.rows[p.ID]
	if !ok || !cur.UpdatedAt.Equal(expected) {
		return repository.ErrStaleWrite
	}
	cur.Status = p.Status
	cur.ScheduledAt = p.Clone().ScheduledAt
	cur.UpdatedAt = p.UpdatedAt
	r.rows[p.ID] = cur
	return nil
}

func (r *memPublications) UpdateStatus(_ context.Context, id string, from, to models.PublicationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[id]
	if !ok || cur.Status != from {
		return repository.ErrStaleWrite
	}
	cur.Status = to
	cur.UpdatedAt = at
	r.rows[id] = cur
	return nil
}

func (r *memPublications) UpdateContent(_ context.Context, p *models.Publication, expected time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[p.ID]
	if !ok || !cur.UpdatedAt.Equal(expected) {
		return repository.ErrStaleWrite
	}
	r.rows[p.ID] = p.Clone()
	return nil
}

func (r *memPublications) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

type memAttempts struct {
	rows []*models.DeliveryAttempt
}

func (r *memAttempts) Create(_ context.Context, a *models.DeliveryAttempt) (int64, error) {
	c := *a
	c.ID = int64(len(r.rows) + 1)
	r.rows = append(r.rows, &c)
	return c.ID, nil
}

func (r *memAttempts) ListByPublicationID(_ context.Context, id string) ([]*models.DeliveryAttempt, error) {
	var out []*models.DeliveryAttempt
	for _, a := range r.rows {
		if a.PublicationID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordingScheduler struct {
	err   error
	calls []models.Publication
}

func (s *recordingScheduler) ScheduleDelivery(_ context.Context, p *models.Publication) error {
	s.calls = append(s.calls, p.Clone())
	return s.err
}

type memStore struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStore) Put(_ context.Context, key string, body []byte, contentType string) error {
	if s.err != nil {
		return s.err
	}
	s.objects[key] = body
	s.types[key] = contentType
	return nil
}

func (s *memStore) PublicURL(key string) string {
	return "https://media.example.com/" + key
}

type memAccounts struct {
	mu   sync.Mutex
	rows map[int64]*models.SocialAccount
	next int64
}

func newMemAccounts(accs ...*models.SocialAccount) *memAccounts {
	r := &memAccounts{rows: map[int64]*models.SocialAccount{}}
	for _, a := range accs {
		r.next++
		if a.ID == 0 {
			a.ID = r.next
		}
		r.rows[a.ID] = a
	}
	return r
}

func (r *memAccounts) Create(_ context.Context, _ *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.rows {
		if cur.UserID == sa.UserID && cur.Platform == sa.Platform && cur.AccountID == sa.AccountID {
			c := *sa
			c.ID = id
			r.rows[id] = &c
			return id, nil
		}
	}
	r.next++
	c := *sa
	c.ID = r.next
	r.rows[c.ID] = &c
	return c.ID, nil
}

func (r *memAccounts) GetByID(_ context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (r *memAccounts) GetByUserAndPlatform(_ context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.rows {
		if a.UserID == userID && a.Platform == platform {
			c := *a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAccounts) ListInfoByUserID(_ context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.rows {
		if a.UserID == userID {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memAccounts) ListByTimeInterval(_ context.Context, from, to time.Time) ([]*models.SocialAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SocialAccount
	for _, a := range r.rows {
		if !a.TokenExpiresAt.Before(from) && a.TokenExpiresAt.Before(to) {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memAccounts) CheckByUserID(_ context.Context, accountID, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[accountID]
	return ok && a.UserID == userID, nil
}

func (r *memAccounts) SetToken(_ context.Context, id int64, oldAccessToken string, sa *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.AccessToken != oldAccessToken {
		return repository.ErrStaleWrite
	}
	a.AccessToken = sa.AccessToken
	a.RefreshToken = sa.RefreshToken
	a.TokenExpiresAt = sa.TokenExpiresAt
	return nil
}

func (r *memAccounts) Remove(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

type memUsers struct {
	rows map[int64]*models.User
	err  error
}

func (r *memUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) Upsert(_ context.Context, user *models.User) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	for id, u := range r.rows {
		if u.GoogleID == user.GoogleID {
			c := *user
			c.ID = id
			r.rows[id] = &c
			return id, nil
		}
	}
	c := *user
	c.ID = int64(len(r.rows) + 1)
	r.rows[c.ID] = &c
	return c.ID, nil
}

func (r *memUsers) Remove(_ context.Context, id int64) error {
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

var errBackend = errors.New("backend unavailable")
