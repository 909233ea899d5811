package router

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/creator-sync/internal/api/handler"
	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobID = "7f1c7a56-3b7e-4a7e-9d1e-2f5b6c0e8a11"

var testTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fakeService struct {
	filter      domain.SearchFilter
	profileID   string
	export      domain.ExportParams
	cron        string
	jobFilter   domain.JobFilter
	events      []domain.WebhookEvent
	recurBusy   bool
	err         error
	webhookErr  error
	listCursor  *domain.JobCursor
	influencers map[string]*domain.InfluencerProfile
}

func (s *fakeService) job(kind domain.JobKind) *domain.SyncJob {
	return &domain.SyncJob{
		JobID:     testJobID,
		Kind:      kind,
		Status:    domain.JobStatusEnqueued,
		Priority:  domain.PriorityNormal,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
}

func (s *fakeService) ScheduleSearchSync(_ context.Context, filter domain.SearchFilter) (*domain.SyncJob, error) {
	s.filter = filter
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.job(domain.JobKindSearch), s.err
}

func (s *fakeService) ScheduleSingleProfileSync(_ context.Context, profileID string) (*domain.SyncJob, error) {
	s.profileID = profileID
	if s.err != nil {
		return nil, s.err
	}
	return s.job(domain.JobKindSingleProfile), nil
}

func (s *fakeService) ScheduleExport(_ context.Context, params domain.ExportParams) (*domain.SyncJob, error) {
	s.export = params
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.job(domain.JobKindExportStart), nil
}

func (s *fakeService) ScheduleRecurringSync(_ context.Context, name string, filter domain.SearchFilter, cronExpr string) (*domain.SyncSchedule, *domain.SyncJob, error) {
	s.filter = filter
	s.cron = cronExpr
	if cronExpr == "" {
		return nil, nil, domain.NewValidationError("cronSchedule", "cron schedule is required")
	}
	schedule := &domain.SyncSchedule{ScheduleID: "sched-1", Name: name, CronExpr: cronExpr, LastJobID: "job-in-flight"}
	if s.recurBusy {
		return schedule, nil, nil
	}
	return schedule, s.job(domain.JobKindRecurringSearch), nil
}

func (s *fakeService) GetJob(_ context.Context, jobID string) (*domain.SyncJob, error) {
	if jobID != testJobID {
		return nil, domain.ErrJobNotFound
	}
	job := s.job(domain.JobKindSearch)
	job.Payload = domain.SearchPayload{Filter: domain.SearchFilter{WorkPlatformID: "instagram"}}
	job.Result = &domain.JobResult{SuccessCount: 2, FailCount: 1}
	return job, nil
}

func (s *fakeService) ListJobs(_ context.Context, filter domain.JobFilter) ([]*domain.SyncJob, *domain.JobCursor, error) {
	s.jobFilter = filter
	return []*domain.SyncJob{s.job(domain.JobKindSearch)}, s.listCursor, nil
}

func (s *fakeService) ListSchedules(context.Context) ([]*domain.SyncSchedule, error) {
	return []*domain.SyncSchedule{{ScheduleID: "sched-1", Name: "daily-midnight", CronExpr: "0 0 * * *", Active: true}}, nil
}

func (s *fakeService) GetInfluencer(_ context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	if p, ok := s.influencers[influencerID]; ok {
		return p, nil
	}
	return nil, domain.ErrInfluencerNotFound
}

func (s *fakeService) Platforms(context.Context) ([]domain.DictionaryEntry, error) {
	return []domain.DictionaryEntry{{ID: "instagram", Name: "Instagram"}}, nil
}

func (s *fakeService) Topics(context.Context) ([]domain.DictionaryEntry, error) {
	return nil, errors.New("provider unavailable")
}

func (s *fakeService) Locations(context.Context) ([]domain.DictionaryEntry, error) {
	return nil, nil
}

func (s *fakeService) HandleWebhookEvent(_ context.Context, event domain.WebhookEvent) (domain.WebhookAction, error) {
	s.events = append(s.events, event)
	if s.webhookErr != nil {
		return "", s.webhookErr
	}
	if event.EventType == domain.WebhookExportSuccess {
		return domain.WebhookActionEnqueued, nil
	}
	return domain.WebhookActionLogged, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc *fakeService, secret string) *gin.Engine {
	return SetupRouter(&handler.Dependencies{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Service:       svc,
		WebhookSecret: secret,
		HealthChecks: map[string]func(context.Context) error{
			"database": func(context.Context) error { return nil },
		},
	})
}

func do(r http.Handler, method, path string, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestScheduleEndpoints(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantJob    bool
	}{
		{"search sync", "/api/v1/sync/search", `{"workPlatformId":"instagram","followerCount":{"min":10000}}`, http.StatusAccepted, true},
		{"empty search filter", "/api/v1/sync/search", `{}`, http.StatusBadRequest, false},
		{"malformed search body", "/api/v1/sync/search", `{"workPlatformId":`, http.StatusBadRequest, false},
		{"inverted follower range", "/api/v1/sync/search", `{"followerCount":{"min":10,"max":1}}`, http.StatusBadRequest, false},
		{"profile sync", "/api/v1/sync/profile/inf-1", ``, http.StatusAccepted, true},
		{"export", "/api/v1/sync/export", `{"platform":"instagram","minFollowers":5000}`, http.StatusAccepted, true},
		{"export without criteria", "/api/v1/sync/export", `{"format":"json"}`, http.StatusBadRequest, false},
		{"recurring", "/api/v1/sync/recurring", `{"searchParams":{"workPlatformId":"instagram"},"cronSchedule":"0 0 * * *"}`, http.StatusAccepted, true},
		{"recurring without cron", "/api/v1/sync/recurring", `{"searchParams":{"workPlatformId":"instagram"}}`, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeService{}, "")

			w, body := do(r, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusAccepted, body["success"])
			if tt.wantJob {
				assert.Equal(t, testJobID, body["jobId"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestScheduleSearchSync_PassesFilter(t *testing.T) {
	svc := &fakeService{}
	r := newTestRouter(svc, "")

	w, _ := do(r, http.MethodPost, "/api/v1/sync/search", `{"workPlatformId":"instagram","followerCount":{"min":10000,"max":50000},"hasContactDetails":true,"limit":50}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "instagram", svc.filter.WorkPlatformID)
	require.NotNil(t, svc.filter.FollowerCount)
	assert.Equal(t, int64(10000), *svc.filter.FollowerCount.Min)
	assert.Equal(t, int64(50000), *svc.filter.FollowerCount.Max)
	assert.True(t, *svc.filter.HasContactDetails)
	assert.Equal(t, 50, svc.filter.Limit)
}

func TestScheduleRecurringSync_AlreadyRunning(t *testing.T) {
	r := newTestRouter(&fakeService{recurBusy: true}, "")

	w, body := do(r, http.MethodPost, "/api/v1/sync/recurring", `{"name":"nightly","searchParams":{"workPlatformId":"instagram"},"cronSchedule":"0 0 * * *"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "sched-1", body["scheduleId"])
	assert.Equal(t, "job-in-flight", body["jobId"])
	assert.Equal(t, "Recurring sync already running", body["message"])
}

func TestJobEndpoints(t *testing.T) {
	t.Run("get job", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")

		w, body := do(r, http.MethodGet, "/api/v1/sync/jobs/"+testJobID, "")

		require.Equal(t, http.StatusOK, w.Code)
		job := body["job"].(map[string]any)
		assert.Equal(t, testJobID, job["jobId"])
		assert.Equal(t, "search", job["kind"])
		assert.Equal(t, map[string]any{"searchParams": map[string]any{"workPlatformId": "instagram"}}, job["payload"])
		assert.Equal(t, float64(1), job["result"].(map[string]any)["failCount"])
	})

	t.Run("unknown job", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")
		w, _ := do(r, http.MethodGet, "/api/v1/sync/jobs/00000000-0000-0000-0000-000000000000", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("job id must be a uuid", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")
		w, _ := do(r, http.MethodGet, "/api/v1/sync/jobs/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list jobs with filters and cursor", func(t *testing.T) {
		next := &domain.JobCursor{CreatedAt: testTime, JobID: testJobID}
		svc := &fakeService{listCursor: next}
		r := newTestRouter(svc, "")

		w, body := do(r, http.MethodGet, "/api/v1/sync/jobs?kind=search&status=failed&page_size=500", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, domain.JobKindSearch, svc.jobFilter.Kind)
		assert.Equal(t, domain.JobStatusFailed, svc.jobFilter.Status)
		assert.Equal(t, maxPageSizeForTest, svc.jobFilter.PageSize)
		assert.Len(t, body["jobs"], 1)

		cursor, err := handler.DecodeJobCursor(body["nextCursor"].(string))
		require.NoError(t, err)
		assert.Equal(t, testJobID, cursor.JobID)

		w, _ = do(r, http.MethodGet, "/api/v1/sync/jobs?cursor="+body["nextCursor"].(string), "")
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, svc.jobFilter.Cursor)
		assert.True(t, testTime.Equal(svc.jobFilter.Cursor.CreatedAt))
		assert.Equal(t, 20, svc.jobFilter.PageSize)
	})

	t.Run("list jobs rejects unknown kind", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")
		w, _ := do(r, http.MethodGet, "/api/v1/sync/jobs?kind=reindex", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list jobs rejects bad cursor", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")
		w, _ := do(r, http.MethodGet, "/api/v1/sync/jobs?cursor=%25%25", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("list schedules", func(t *testing.T) {
		r := newTestRouter(&fakeService{}, "")
		w, body := do(r, http.MethodGet, "/api/v1/sync/schedules", "")
		require.Equal(t, http.StatusOK, w.Code)
		schedules := body["schedules"].([]any)
		require.Len(t, schedules, 1)
		assert.Equal(t, "0 0 * * *", schedules[0].(map[string]any)["cronSchedule"])
	})
}

const maxPageSizeForTest = 100

func TestInfluencerEndpoints(t *testing.T) {
	svc := &fakeService{influencers: map[string]*domain.InfluencerProfile{
		"inf-1": {InfluencerID: "inf-1", Email: "jane@instagram.insightiq"},
	}}
	r := newTestRouter(svc, "")

	w, body := do(r, http.MethodGet, "/api/v1/influencers/inf-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "inf-1", body["influencer"].(map[string]any)["influencerId"])

	w, _ = do(r, http.MethodGet, "/api/v1/influencers/nobody", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = do(r, http.MethodGet, "/api/v1/provider/platforms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["platforms"], 1)

	w, body = do(r, http.MethodGet, "/api/v1/provider/locations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, body["locations"])

	w, _ = do(r, http.MethodGet, "/api/v1/provider/topics", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook(t *testing.T) {
	const secret = "s3cret"
	success := `{"event_type":"CREATOR_SEARCH_EXPORT.SUCCESS","payload":{"export_id":"exp-1","status":"completed","download_url":"https://files/exp-1.json"}}`

	tests := []struct {
		name       string
		secret     string
		body       string
		signature  string
		webhookErr error
		wantStatus int
		wantEvents int
	}{
		{"unsigned without secret", "", success, "", nil, http.StatusOK, 1},
		{"valid signature", secret, success, Sign(secret, []byte(success)), nil, http.StatusOK, 1},
		{"prefixed signature", secret, success, "sha256=" + Sign(secret, []byte(success)), nil, http.StatusOK, 1},
		{"wrong signature", secret, success, Sign("other", []byte(success)), nil, http.StatusUnauthorized, 0},
		{"missing signature", secret, success, "", nil, http.StatusUnauthorized, 0},
		{"malformed body", "", `{"event_type":`, "", nil, http.StatusBadRequest, 0},
		{"missing export id", "", `{"event_type":"CREATOR_SEARCH_EXPORT.SUCCESS","payload":{}}`, "", domain.NewValidationError("payload.export_id", "export id is required"), http.StatusBadRequest, 1},
		{"enqueue failure", "", success, "", errors.New("broker down"), http.StatusInternalServerError, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{webhookErr: tt.webhookErr}
			r := newTestRouter(svc, tt.secret)

			var headers []string
			if tt.signature != "" {
				headers = []string{SignatureHeader, tt.signature}
			}
			w, _ := do(r, http.MethodPost, "/api/webhooks/insightiq", tt.body, headers...)

			assert.Equal(t, tt.wantStatus, w.Code)
			require.Len(t, svc.events, tt.wantEvents)
			if tt.wantEvents > 0 && tt.webhookErr == nil {
				assert.Equal(t, "exp-1", svc.events[0].Payload.ExportID)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	r := newTestRouter(&fakeService{}, "")

	w, body := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])

	failing := SetupRouter(&handler.Dependencies{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Service: &fakeService{},
		HealthChecks: map[string]func(context.Context) error{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	w, body = do(failing, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "connection refused", body["checks"].(map[string]any)["redis"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "creator_sync_http_requests_total")
}
