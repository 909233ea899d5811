package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/provider"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

// fakeStore keeps documents in memory. WithinTx serializes per key and only
// applies writes when fn succeeds.
type fakeStore struct {
	mu        sync.Mutex
	profiles  map[string]domain.InfluencerProfile
	accounts  map[string]domain.Account
	schedules map[string]*domain.SyncSchedule
	active    map[string]bool
	lastJob   map[string]string
	locks     sync.Map

	accountCreates int
	upsertErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles:  map[string]domain.InfluencerProfile{},
		accounts:  map[string]domain.Account{},
		schedules: map[string]*domain.SyncSchedule{},
		active:    map[string]bool{},
		lastJob:   map[string]string{},
	}
}

func (s *fakeStore) FindProfile(_ context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[influencerID]
	if !ok {
		return nil, domain.ErrInfluencerNotFound
	}
	return &p, nil
}

func (s *fakeStore) FindProfileByEmail(_ context.Context, email string) (*domain.InfluencerProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return nil, domain.ErrInfluencerNotFound
}

func (s *fakeStore) UpsertProfile(_ context.Context, profile *domain.InfluencerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.profiles[profile.InfluencerID] = *profile
	return nil
}

func (s *fakeStore) FindAccountByEmail(_ context.Context, email string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (s *fakeStore) CreateAccount(_ context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.accounts[account.Email]; ok {
		return &existing, nil
	}
	s.accounts[account.Email] = *account
	s.accountCreates++
	a := *account
	return &a, nil
}

func (s *fakeStore) WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context, repo domain.ProfileRepository) error) error {
	l, _ := s.locks.LoadOrStore(lockKey, &sync.Mutex{})
	mu := l.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	tx := &fakeTx{store: s, profiles: map[string]domain.InfluencerProfile{}, accounts: map[string]domain.Account{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for email, a := range tx.accounts {
		if _, ok := s.accounts[email]; !ok {
			s.accounts[email] = a
			s.accountCreates++
		}
	}
	for id, p := range tx.profiles {
		s.profiles[id] = p
	}
	return nil
}

func (s *fakeStore) EnsureSchedule(_ context.Context, schedule *domain.SyncSchedule) (*domain.SyncSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.schedules[schedule.Name]; ok {
		return existing, nil
	}
	stored := *schedule
	s.schedules[schedule.Name] = &stored
	return &stored, nil
}

func (s *fakeStore) ListSchedules(_ context.Context, activeOnly bool) ([]*domain.SyncSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SyncSchedule
	for _, sc := range s.schedules {
		if activeOnly && !sc.Active {
			continue
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *fakeStore) SetScheduleLastJob(_ context.Context, scheduleID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastJob[scheduleID] = jobID
	return nil
}

func (s *fakeStore) HasActiveJobForSchedule(_ context.Context, scheduleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[scheduleID], nil
}

// fakeTx buffers writes until the transaction commits.
type fakeTx struct {
	store    *fakeStore
	profiles map[string]domain.InfluencerProfile
	accounts map[string]domain.Account
}

func (t *fakeTx) FindProfile(ctx context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	if p, ok := t.profiles[influencerID]; ok {
		return &p, nil
	}
	return t.store.FindProfile(ctx, influencerID)
}

func (t *fakeTx) FindProfileByEmail(ctx context.Context, email string) (*domain.InfluencerProfile, error) {
	for _, p := range t.profiles {
		if p.Email == email {
			return &p, nil
		}
	}
	return t.store.FindProfileByEmail(ctx, email)
}

func (t *fakeTx) UpsertProfile(_ context.Context, profile *domain.InfluencerProfile) error {
	if t.store.upsertErr != nil {
		return t.store.upsertErr
	}
	t.profiles[profile.InfluencerID] = *profile
	return nil
}

func (t *fakeTx) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if a, ok := t.accounts[email]; ok {
		return &a, nil
	}
	return t.store.FindAccountByEmail(ctx, email)
}

func (t *fakeTx) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if existing, err := t.FindAccountByEmail(ctx, account.Email); err == nil {
		return existing, nil
	}
	t.accounts[account.Email] = *account
	a := *account
	return &a, nil
}

type enqueued struct {
	kind    domain.JobKind
	payload domain.Payload
	opts    domain.EnqueueOptions
	job     *domain.SyncJob
}

type fakeQueue struct {
	mu    sync.Mutex
	calls []enqueued
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, kind domain.JobKind, payload domain.Payload, opts domain.EnqueueOptions) (*domain.SyncJob, error) {
	if q.err != nil {
		return nil, q.err
	}
	if err := domain.CheckPayloadKind(kind, payload); err != nil {
		return nil, err
	}
	job := &domain.SyncJob{
		JobID:      uuid.NewString(),
		Kind:       kind,
		Payload:    payload,
		Priority:   opts.Priority,
		Status:     domain.JobStatusEnqueued,
		ScheduleID: opts.ScheduleID,
	}
	q.mu.Lock()
	q.calls = append(q.calls, enqueued{kind: kind, payload: payload, opts: opts, job: job})
	q.mu.Unlock()
	return job, nil
}

func (q *fakeQueue) Get(_ context.Context, jobID string) (*domain.SyncJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range q.calls {
		if c.job.JobID == jobID {
			return c.job, nil
		}
	}
	return nil, domain.ErrJobNotFound
}

func (q *fakeQueue) List(_ context.Context, _ domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]*domain.SyncJob, 0, len(q.calls))
	for _, c := range q.calls {
		jobs = append(jobs, c.job)
	}
	return jobs, nil, nil
}

type fakeProvider struct {
	mu sync.Mutex

	search    *provider.SearchResult
	searchErr error

	fetch      map[string][]domain.PlatformProfile
	fetchCalls int

	exportTask    *domain.ExportTask
	exportErr     error
	statuses      []*domain.ExportTask
	download      []byte
	downloadErr   error
	downloadCalls int
}

func (p *fakeProvider) SearchProfiles(_ context.Context, _ domain.SearchFilter) (*provider.SearchResult, error) {
	return p.search, p.searchErr
}

func (p *fakeProvider) FetchProfile(_ context.Context, profileURL, _ string) []domain.PlatformProfile {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetchCalls++
	return p.fetch[profileURL]
}

func (p *fakeProvider) StartExport(_ context.Context, _ domain.ExportParams) (*domain.ExportTask, error) {
	return p.exportTask, p.exportErr
}

func (p *fakeProvider) GetExportStatus(_ context.Context, _ string) (*domain.ExportTask, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	task := p.statuses[0]
	if len(p.statuses) > 1 {
		p.statuses = p.statuses[1:]
	}
	return task, nil
}

func (p *fakeProvider) DownloadExport(_ context.Context, _ string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloadCalls++
	return p.download, p.downloadErr
}

func (p *fakeProvider) GetPlatforms(_ context.Context) ([]domain.DictionaryEntry, error) {
	return []domain.DictionaryEntry{{ID: "ig", Name: "Instagram"}}, nil
}

func (p *fakeProvider) GetTopics(_ context.Context) ([]domain.DictionaryEntry, error) {
	return nil, nil
}

func (p *fakeProvider) GetLocations(_ context.Context) ([]domain.DictionaryEntry, error) {
	return nil, nil
}

type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	owners map[string]string
	err    error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}, owners: map[string]string{}}
}

func (l *fakeLocker) AcquireFor(_ context.Context, name, owner string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return l.owners[name] == owner, nil
	}
	l.held[name] = true
	l.owners[name] = owner
	return true, nil
}

func (l *fakeLocker) Acquire(_ context.Context, name string, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return false, nil
	}
	l.held[name] = true
	return true, nil
}

func (l *fakeLocker) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	delete(l.owners, name)
	return nil
}

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *fakeStore
	queue    *fakeQueue
	provider *fakeProvider
	locker   *fakeLocker
}

func newFixture() *fixture {
	f := &fixture{
		store:    newFakeStore(),
		queue:    &fakeQueue{},
		provider: &fakeProvider{},
		locker:   newFakeLocker(),
	}
	f.svc = NewService(Config{}, f.store, f.queue, f.provider, f.locker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return testNow }
	return f
}

func records(raw ...string) []provider.Record {
	out := make([]provider.Record, len(raw))
	for i, r := range raw {
		out[i] = provider.Record{Raw: []byte(r), WorkPlatformID: "instagram-id"}
	}
	return out
}
