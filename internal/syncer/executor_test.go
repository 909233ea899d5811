package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	creatorA = `{"external_id":"a1","platform_username":"alice","full_name":"Alice","url":"https://instagram.com/alice","follower_count":12000,"work_platform":{"id":"ig","name":"Instagram"}}`
	creatorB = `{"external_id":"b1","platform_username":"bob","url":"https://instagram.com/bob","creator_location":"somewhere"}`
	creatorC = `{"external_id":"c1","platform_username":"carol","url":"https://instagram.com/carol","engagement_rate":0.0421,"work_platform":{"id":"ig","name":"Instagram"}}`
)

func searchJob(filter domain.SearchFilter) *domain.SyncJob {
	return &domain.SyncJob{
		JobID:   "job-search",
		Kind:    domain.JobKindSearch,
		Payload: domain.SearchPayload{Filter: filter},
		Status:  domain.JobStatusRunning,
	}
}

func exportCheckJob(exportID string, attempts int) *domain.SyncJob {
	return &domain.SyncJob{
		JobID:    "job-check",
		Kind:     domain.JobKindExportStatusCheck,
		Payload:  domain.ExportStatusCheckPayload{ExportID: exportID},
		Priority: domain.PriorityNormal,
		Status:   domain.JobStatusRunning,
		Attempts: attempts,
	}
}

func TestExecute_SearchIsolatesPerProfileFailures(t *testing.T) {
	f := newFixture()
	f.provider.search = &provider.SearchResult{Records: records(creatorA, creatorB, creatorC), Total: 3}

	outcome, err := f.svc.Execute(context.Background(), searchJob(domain.SearchFilter{WorkPlatformID: "ig"}))
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
	assert.Equal(t, 2, outcome.Result.SuccessCount)
	assert.Equal(t, 1, outcome.Result.FailCount)

	assert.Len(t, f.store.accounts, 2)
	assert.Contains(t, f.store.accounts, "alice@instagram.insightiq")
	assert.Contains(t, f.store.accounts, "carol@instagram.insightiq")
	assert.NotContains(t, f.store.accounts, "bob@instagram.insightiq")

	alice := f.store.profiles["a1"]
	assert.Equal(t, "alice@instagram.insightiq", alice.Email)
	assert.Equal(t, f.store.accounts["alice@instagram.insightiq"].ID, alice.AccountID)
	require.Len(t, alice.PlatformProfiles, 1)
	assert.Equal(t, int64(12000), alice.PlatformProfiles[0].FollowerCount)
	assert.Equal(t, "Alice", alice.UIProfile.Handle)
	assert.Equal(t, domain.RoleInfluencer, alice.UIProfile.Role)
	require.NotNil(t, alice.SyncMetadata.LastSyncDate)
	assert.Equal(t, testNow, *alice.SyncMetadata.LastSyncDate)

	carol := f.store.profiles["c1"]
	assert.Equal(t, 0.0421, carol.PlatformProfiles[0].EngagementRate)
}

func TestExecute_SearchProviderErrorFailsJob(t *testing.T) {
	f := newFixture()
	f.provider.searchErr = &provider.Error{Op: "search_profiles", StatusCode: 500}

	_, err := f.svc.Execute(context.Background(), searchJob(domain.SearchFilter{WorkPlatformID: "ig"}))
	require.Error(t, err)
	var retryable *domain.RetryableError
	assert.False(t, errors.As(err, &retryable))
	assert.Empty(t, f.store.accounts)
}

func TestExecute_TransientProviderErrorIsRetryable(t *testing.T) {
	f := newFixture()
	f.provider.searchErr = &provider.Error{Op: "search_profiles", StatusCode: 503, Transient: true}

	_, err := f.svc.Execute(context.Background(), searchJob(domain.SearchFilter{WorkPlatformID: "ig"}))

	var retryable *domain.RetryableError
	require.ErrorAs(t, err, &retryable)
	assert.True(t, provider.IsTransient(err))
}

func TestExecute_RejectsPayloadOfWrongKind(t *testing.T) {
	f := newFixture()
	job := &domain.SyncJob{
		JobID:   "job-bad",
		Kind:    domain.JobKindSingleProfile,
		Payload: domain.ExportStatusCheckPayload{ExportID: "x"},
	}

	_, err := f.svc.Execute(context.Background(), job)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestProcessProfile_ConcurrentFirstSyncCreatesOneAccount(t *testing.T) {
	f := newFixture()
	profile, err := records(creatorA)[0].Profile()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.svc.ProcessProfile(context.Background(), profile))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.store.accountCreates)
	assert.Len(t, f.store.profiles, 1)
	assert.Len(t, f.store.profiles["a1"].PlatformProfiles, 1)
}

func TestProcessProfile_NoPartialWrites(t *testing.T) {
	f := newFixture()
	f.store.upsertErr = errBoom
	profile, err := records(creatorA)[0].Profile()
	require.NoError(t, err)

	err = f.svc.ProcessProfile(context.Background(), profile)
	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.store.accounts)
	assert.Empty(t, f.store.profiles)
}

func TestProcessProfile_KeepsCuratedUIFields(t *testing.T) {
	f := newFixture()
	profile, err := records(creatorA)[0].Profile()
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessProfile(context.Background(), profile))

	stored := f.store.profiles["a1"]
	stored.UIProfile.Bio = "Hand-written bio"
	f.store.profiles["a1"] = stored

	profile.Introduction = "Auto bio"
	profile.FollowerCount = 13000
	require.NoError(t, f.svc.ProcessProfile(context.Background(), profile))

	updated := f.store.profiles["a1"]
	assert.Equal(t, "Hand-written bio", updated.UIProfile.Bio)
	assert.Equal(t, int64(13000), updated.PlatformProfiles[0].FollowerCount)
	assert.Equal(t, 1, f.store.accountCreates)
}

func TestProcessProfile_RenamedUsernameKeepsInfluencer(t *testing.T) {
	f := newFixture()
	profile, err := records(creatorA)[0].Profile()
	require.NoError(t, err)
	require.NoError(t, f.svc.ProcessProfile(context.Background(), profile))

	before := f.store.profiles["a1"]
	stored := before
	stored.UIProfile.Bio = "Hand-written bio"
	stored.UIProfile.Handle = "AliceHandle"
	f.store.profiles["a1"] = stored

	profile.Username = "alice_renamed"
	profile.Introduction = "Auto bio"
	require.NoError(t, f.svc.ProcessProfile(context.Background(), profile))

	require.Len(t, f.store.profiles, 1)
	updated := f.store.profiles["a1"]
	assert.Equal(t, "Hand-written bio", updated.UIProfile.Bio)
	assert.Equal(t, "AliceHandle", updated.UIProfile.Handle)
	assert.Equal(t, "alice@instagram.insightiq", updated.Email)
	assert.Equal(t, before.AccountID, updated.AccountID)
	require.Len(t, updated.PlatformProfiles, 1)
	assert.Equal(t, "alice_renamed", updated.PlatformProfiles[0].Username)
	assert.Equal(t, 1, f.store.accountCreates)
	assert.Len(t, f.store.accounts, 1)
}

func TestProcessProfile_FallsBackToEmail(t *testing.T) {
	f := newFixture()
	f.store.profiles["inf-1"] = domain.InfluencerProfile{
		InfluencerID: "inf-1",
		Email:        "alice@instagram.insightiq",
		AccountID:    "acc-1",
		UIProfile:    domain.UIProfile{Bio: "Seeded bio"},
	}
	profile, err := records(creatorA)[0].Profile()
	require.NoError(t, err)

	require.NoError(t, f.svc.ProcessProfile(context.Background(), profile))

	require.Len(t, f.store.profiles, 1)
	updated := f.store.profiles["inf-1"]
	assert.Equal(t, "acc-1", updated.AccountID)
	assert.Equal(t, "Seeded bio", updated.UIProfile.Bio)
	assert.Len(t, updated.PlatformProfiles, 1)
	assert.Zero(t, f.store.accountCreates)
}

func TestExecute_SingleProfile(t *testing.T) {
	seed := domain.InfluencerProfile{
		InfluencerID: "inf-1",
		Email:        "alice@instagram.insightiq",
		PlatformProfiles: []domain.PlatformProfile{{
			ExternalID:   "a1",
			URL:          "https://instagram.com/alice",
			WorkPlatform: domain.WorkPlatform{ID: "ig", Name: "Instagram"},
		}},
		UIProfile: domain.UIProfile{
			Handle: "Alice",
			SocialLinks: []domain.SocialLink{
				{Platform: "instagram", URL: "https://instagram.com/alice"},
				{Platform: "youtube", URL: "https://youtube.com/@alice"},
			},
		},
	}
	job := &domain.SyncJob{
		JobID:   "job-single",
		Kind:    domain.JobKindSingleProfile,
		Payload: domain.SingleProfilePayload{ProfileID: "inf-1"},
	}

	t.Run("partial link failure still completes", func(t *testing.T) {
		f := newFixture()
		f.store.profiles["inf-1"] = seed
		f.provider.fetch = map[string][]domain.PlatformProfile{
			"https://instagram.com/alice": {{
				ExternalID:    "a1",
				URL:           "https://instagram.com/alice",
				WorkPlatform:  domain.WorkPlatform{ID: "ig", Name: "Instagram"},
				FollowerCount: 15000,
			}},
		}

		outcome, err := f.svc.Execute(context.Background(), job)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Result.SuccessCount)
		assert.Equal(t, 1, outcome.Result.FailCount)
		assert.Equal(t, 2, f.provider.fetchCalls)

		stored := f.store.profiles["inf-1"]
		require.Len(t, stored.PlatformProfiles, 1)
		assert.Equal(t, int64(15000), stored.PlatformProfiles[0].FollowerCount)
		assert.Equal(t, "Alice", stored.UIProfile.Handle)
	})

	t.Run("nothing upstream fails the job", func(t *testing.T) {
		f := newFixture()
		f.store.profiles["inf-1"] = seed

		_, err := f.svc.Execute(context.Background(), job)
		assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	})

	t.Run("unknown influencer fails the job", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.Execute(context.Background(), job)
		assert.ErrorIs(t, err, domain.ErrInfluencerNotFound)
	})
}

func TestExecute_ExportStartEnqueuesDelayedCheck(t *testing.T) {
	f := newFixture()
	f.provider.exportTask = &domain.ExportTask{ExportID: "exp-1", Status: domain.ExportStatusPending}

	job := &domain.SyncJob{
		JobID:    "job-export",
		Kind:     domain.JobKindExportStart,
		Payload:  domain.ExportStartPayload{Params: domain.ExportParams{Platform: "instagram"}},
		Priority: domain.PriorityNormal,
	}

	outcome, err := f.svc.Execute(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
	assert.Equal(t, "exp-1", outcome.Result.ExportID)

	require.Len(t, f.queue.calls, 1)
	call := f.queue.calls[0]
	assert.Equal(t, domain.JobKindExportStatusCheck, call.kind)
	assert.Equal(t, domain.ExportStatusCheckPayload{ExportID: "exp-1"}, call.payload)
	assert.Equal(t, f.svc.config.StatusCheckDelay, call.opts.Delay)
}

func TestExecute_ExportStatusCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("processing reschedules then completed ingests once", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{
			{ExportID: "x", Status: domain.ExportStatusProcessing, Progress: 40},
			{ExportID: "x", Status: domain.ExportStatusCompleted, DownloadURL: "https://files/x.json"},
		}
		f.provider.download = []byte(`[` + creatorA + `,` + creatorC + `]`)

		outcome, err := f.svc.Execute(ctx, exportCheckJob("x", 0))
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusDelayed, outcome.Status)
		assert.Equal(t, f.svc.config.StatusCheckDelay, outcome.Delay)
		assert.Zero(t, f.provider.downloadCalls)
		assert.Empty(t, f.store.profiles)

		outcome, err = f.svc.Execute(ctx, exportCheckJob("x", 1))
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
		assert.Equal(t, 2, outcome.Result.SuccessCount)
		assert.Equal(t, "x", outcome.Result.ExportID)

		// A webhook-triggered check observing the same completion does nothing.
		webhookCheck := exportCheckJob("x", 0)
		webhookCheck.JobID = "job-webhook-check"
		outcome, err = f.svc.Execute(ctx, webhookCheck)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
		assert.Equal(t, "export already ingested", outcome.Result.Message)
		assert.Equal(t, 1, f.provider.downloadCalls)
		assert.Len(t, f.store.profiles, 2)
	})

	t.Run("failed export fails the job", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusFailed, Error: "quota exceeded"}}

		_, err := f.svc.Execute(ctx, exportCheckJob("x", 0))
		assert.ErrorIs(t, err, domain.ErrExportFailed)
		assert.Contains(t, err.Error(), "quota exceeded")
	})

	t.Run("polling is bounded", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusPending}}

		_, err := f.svc.Execute(ctx, exportCheckJob("x", f.svc.config.MaxExportPolls-1))
		assert.ErrorIs(t, err, domain.ErrExportPollingExceeded)
	})

	t.Run("completed without url keeps polling", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusCompleted}}

		outcome, err := f.svc.Execute(ctx, exportCheckJob("x", 0))
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusDelayed, outcome.Status)
	})

	t.Run("download failure releases the ingest guard", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusCompleted, DownloadURL: "https://files/x.json"}}
		f.provider.downloadErr = errBoom

		_, err := f.svc.Execute(ctx, exportCheckJob("x", 0))
		assert.ErrorIs(t, err, errBoom)
		assert.NotContains(t, f.locker.held, "export:ingest:x")
	})

	t.Run("recovered job re-enters its own ingest guard", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusCompleted, DownloadURL: "https://files/x.json"}}
		f.provider.download = []byte(`[` + creatorA + `]`)

		// The previous run took the guard and then its worker died.
		ok, err := f.locker.AcquireFor(ctx, "export:ingest:x", "job-check", time.Hour)
		require.NoError(t, err)
		require.True(t, ok)

		job := exportCheckJob("x", 0)
		job.Retries = 1
		outcome, err := f.svc.Execute(ctx, job)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusCompleted, outcome.Status)
		assert.Equal(t, 1, outcome.Result.SuccessCount)
		assert.Equal(t, 1, f.provider.downloadCalls)

		other := exportCheckJob("x", 0)
		other.JobID = "job-other-check"
		outcome, err = f.svc.Execute(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, "export already ingested", outcome.Result.Message)
		assert.Equal(t, 1, f.provider.downloadCalls)
	})

	t.Run("malformed export fails the job", func(t *testing.T) {
		f := newFixture()
		f.provider.statuses = []*domain.ExportTask{{ExportID: "x", Status: domain.ExportStatusCompleted, DownloadURL: "https://files/x.json"}}
		f.provider.download = []byte(`{"not":"a list"}`)

		_, err := f.svc.Execute(ctx, exportCheckJob("x", 0))
		assert.Error(t, err)
		assert.Empty(t, f.store.profiles)
	})
}
