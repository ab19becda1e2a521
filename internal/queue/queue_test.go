package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
)

type fakeEnqueuer struct {
	err   error
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (e *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.tasks = append(e.tasks, task)
	e.opts = append(e.opts, opts)
	return &asynq.TaskInfo{}, nil
}

func option(opts []asynq.Option, typ asynq.OptionType) (interface{}, bool) {
	for _, o := range opts {
		if o.Type() == typ {
			return o.Value(), true
		}
	}
	return nil, false
}

func TestScheduleDelivery(t *testing.T) {
	at := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	e := &fakeEnqueuer{}
	s := NewScheduler(e)

	if err := s.ScheduleDelivery(context.Background(), &models.Publication{ID: "pub-1", ScheduledAt: &at}); err != nil {
		t.Fatalf("ScheduleDelivery: %v", err)
	}
	if len(e.tasks) != 1 || e.tasks[0].Type() != TaskTypeDeliverPublication {
		t.Fatalf("tasks = %+v", e.tasks)
	}

	var payload DeliverPublicationPayload
	if err := json.Unmarshal(e.tasks[0].Payload(), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.PublicationID != "pub-1" || !payload.ScheduledAt.Equal(at) {
		t.Errorf("payload = %+v", payload)
	}

	if id, _ := option(e.opts[0], asynq.TaskIDOpt); id != fmt.Sprintf("pub-1-%d", at.Unix()) {
		t.Errorf("task id = %v", id)
	}
	if v, _ := option(e.opts[0], asynq.ProcessAtOpt); v != at {
		t.Errorf("process at = %v, want %v", v, at)
	}
}

func TestScheduleDeliveryIgnoresDuplicates(t *testing.T) {
	at := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	p := &models.Publication{ID: "pub-1", ScheduledAt: &at}

	for _, err := range []error{asynq.ErrTaskIDConflict, asynq.ErrDuplicateTask} {
		if got := NewScheduler(&fakeEnqueuer{err: err}).ScheduleDelivery(context.Background(), p); got != nil {
			t.Errorf("%v: got %v, want nil", err, got)
		}
	}

	boom := errors.New("redis down")
	if got := NewScheduler(&fakeEnqueuer{err: boom}).ScheduleDelivery(context.Background(), p); !errors.Is(got, boom) {
		t.Errorf("got %v, want %v", got, boom)
	}
	if err := NewScheduler(&fakeEnqueuer{}).ScheduleDelivery(context.Background(), &models.Publication{ID: "draft"}); err == nil {
		t.Error("expected an error for a publication without a time")
	}
}

func TestDeliverTaskIDChangesWithTime(t *testing.T) {
	at := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	if DeliverTaskID("p", at) == DeliverTaskID("p", at.Add(30*time.Minute)) {
		t.Error("moved publication reuses the task id")
	}
}

type fakePublications struct {
	repository.PublicationRepository

	mu        sync.Mutex
	rows      map[string]models.Publication
	statusErr error
}

func (r *fakePublications) GetByID(_ context.Context, id string) (*models.Publication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := p.Clone()
	return &c, nil
}

func (r *fakePublications) UpdateStatus(_ context.Context, id string, from, to models.PublicationStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statusErr != nil {
		return r.statusErr
	}
	p, ok := r.rows[id]
	if !ok || p.Status != from {
		return repository.ErrStaleWrite
	}
	p.Status = to
	p.UpdatedAt = at
	r.rows[id] = p
	return nil
}

func (r *fakePublications) status(id string) models.PublicationStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

type fakeAccounts struct {
	repository.SocialAccountRepository
	rows []*models.SocialAccount
}

func (r *fakeAccounts) GetByUserAndPlatform(_ context.Context, userID int64, platform models.Platform) (*models.SocialAccount, error) {
	for _, a := range r.rows {
		if a.UserID == userID && a.Platform == platform {
			c := *a
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeAttempts struct {
	repository.DeliveryAttemptRepository

	mu   sync.Mutex
	rows []models.DeliveryAttempt
}

func (r *fakeAttempts) Create(_ context.Context, a *models.DeliveryAttempt) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *a)
	return int64(len(r.rows)), nil
}

func (r *fakeAttempts) byPlatform() map[models.Platform]models.DeliveryAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.Platform]models.DeliveryAttempt, len(r.rows))
	for _, a := range r.rows {
		out[a.Platform] = a
	}
	return out
}

type fakePublisher struct {
	mu    sync.Mutex
	fail  map[models.Platform]error
	calls int
}

func (p *fakePublisher) Publish(_ context.Context, pub *models.Publication, acc *models.SocialAccount) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if err := p.fail[acc.Platform]; err != nil {
		return "", err
	}
	return string(acc.Platform) + "-" + pub.ID, nil
}

type deliveryFixture struct {
	q        *Queue
	pubs     *fakePublications
	attempts *fakeAttempts
	pub      *fakePublisher
	at       time.Time
}

func newDeliveryFixture(platforms ...models.Platform) *deliveryFixture {
	at := time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC)
	f := &deliveryFixture{
		pubs: &fakePublications{rows: map[string]models.Publication{
			"pub-1": {
				ID:          "pub-1",
				UserID:      7,
				Content:     models.Content{Text: "Hello"},
				Platforms:   platforms,
				Status:      models.StatusScheduled,
				ScheduledAt: &at,
			},
		}},
		attempts: &fakeAttempts{},
		pub:      &fakePublisher{fail: map[models.Platform]error{}},
		at:       at,
	}
	accounts := &fakeAccounts{rows: []*models.SocialAccount{
		{ID: 1, UserID: 7, Platform: models.PlatformFacebook, AccountID: "page-1"},
		{ID: 2, UserID: 7, Platform: models.PlatformInstagram, AccountID: "ig-1"},
	}}
	f.q = NewQueue(f.pubs, accounts, f.attempts, f.pub, 2, false)
	f.q.now = func() time.Time { return at.Add(time.Second) }
	return f
}

func (f *deliveryFixture) payload() DeliverPublicationPayload {
	return DeliverPublicationPayload{PublicationID: "pub-1", ScheduledAt: f.at}
}

func TestDeliverPublishesEverywhere(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook, models.PlatformInstagram)

	if err := f.q.Deliver(context.Background(), f.payload()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := f.pubs.status("pub-1"); got != models.StatusPublished {
		t.Errorf("status = %s, want published", got)
	}

	attempts := f.attempts.byPlatform()
	if len(attempts) != 2 {
		t.Fatalf("attempts = %+v", attempts)
	}
	if a := attempts[models.PlatformInstagram]; a.ExternalID != "instagram-pub-1" || !a.Succeeded() {
		t.Errorf("instagram attempt = %+v", a)
	}
}

func TestDeliverPartialFailureIsError(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook, models.PlatformInstagram)
	f.pub.fail[models.PlatformInstagram] = errors.New("media expired")

	if err := f.q.Deliver(context.Background(), f.payload()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := f.pubs.status("pub-1"); got != models.StatusError {
		t.Errorf("status = %s, want error", got)
	}

	attempts := f.attempts.byPlatform()
	fb := attempts[models.PlatformFacebook]
	if !fb.Succeeded() || attempts[models.PlatformInstagram].ErrorMessage != "media expired" {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestDeliverWithoutConnectedAccount(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook)
	f.q.ac = &fakeAccounts{}

	if err := f.q.Deliver(context.Background(), f.payload()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got := f.pubs.status("pub-1"); got != models.StatusError {
		t.Errorf("status = %s, want error", got)
	}
	if msg := f.attempts.byPlatform()[models.PlatformFacebook].ErrorMessage; msg != "no facebook account connected" {
		t.Errorf("error message = %q", msg)
	}
	if f.pub.calls != 0 {
		t.Errorf("publisher called %d times", f.pub.calls)
	}
}

func TestDeliverDropsStaleTasks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *models.Publication)
		want   models.PublicationStatus
	}{
		{"cancelled", func(p *models.Publication) { p.Status = models.StatusCancelled }, models.StatusCancelled},
		{"back to draft", func(p *models.Publication) { p.Status = models.StatusDraft; p.ScheduledAt = nil }, models.StatusDraft},
		{"moved", func(p *models.Publication) {
			later := p.ScheduledAt.Add(time.Hour)
			p.ScheduledAt = &later
		}, models.StatusScheduled},
		{"already delivered", func(p *models.Publication) { p.Status = models.StatusPublished }, models.StatusPublished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeliveryFixture(models.PlatformFacebook)
			p := f.pubs.rows["pub-1"]
			tt.mutate(&p)
			f.pubs.rows["pub-1"] = p

			if err := f.q.Deliver(context.Background(), f.payload()); err != nil {
				t.Fatalf("Deliver: %v", err)
			}
			if got := f.pubs.status("pub-1"); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
			if f.pub.calls != 0 || len(f.attempts.rows) != 0 {
				t.Error("stale task was delivered")
			}
		})
	}
}

func TestDeliverRemovedPublication(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook)
	delete(f.pubs.rows, "pub-1")

	if err := f.q.Deliver(context.Background(), f.payload()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if f.pub.calls != 0 {
		t.Error("removed publication was delivered")
	}
}

func TestDeliverOutcomeWriteFailureSkipsRetry(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook)
	f.q.pr = &failingFinal{fakePublications: f.pubs}

	err := f.q.Deliver(context.Background(), f.payload())
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, want a SkipRetry error", err)
	}
	if f.pub.calls != 1 {
		t.Errorf("publisher called %d times", f.pub.calls)
	}
}

// failingFinal lets the claim through and fails the final status write.
type failingFinal struct {
	*fakePublications
}

func (r *failingFinal) UpdateStatus(ctx context.Context, id string, from, to models.PublicationStatus, at time.Time) error {
	if from == models.StatusProcessing {
		return errors.New("connection reset")
	}
	return r.fakePublications.UpdateStatus(ctx, id, from, to, at)
}

func TestHandleDeliverTaskRejectsBadPayload(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook)
	err := f.q.HandleDeliverTask(context.Background(), asynq.NewTask(TaskTypeDeliverPublication, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, want a SkipRetry error", err)
	}
}

func TestHandleDeliverTask(t *testing.T) {
	f := newDeliveryFixture(models.PlatformFacebook)
	body, _ := json.Marshal(f.payload())

	if err := f.q.HandleDeliverTask(context.Background(), asynq.NewTask(TaskTypeDeliverPublication, body)); err != nil {
		t.Fatalf("HandleDeliverTask: %v", err)
	}
	if got := f.pubs.status("pub-1"); got != models.StatusPublished {
		t.Errorf("status = %s, want published", got)
	}
}
