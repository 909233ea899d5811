package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/merge"
	"github.com/cuongbtq/creator-sync/internal/metrics"
	"github.com/cuongbtq/creator-sync/internal/provider"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// fanOut processes every record concurrently. A record that fails to
// normalize or to persist is logged and counted; it never stops its siblings.
func (s *Service) fanOut(ctx context.Context, jobID string, records []provider.Record) *domain.JobResult {
	var succeeded, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.config.FanOutConcurrency)

	for i, record := range records {
		g.Go(func() error {
			if err := s.processRecord(ctx, record); err != nil {
				failed.Add(1)
				s.logger.Warn("Failed to process profile",
					slog.String("job_id", jobID),
					slog.Int("index", i),
					slog.String("error", err.Error()),
				)
				return nil
			}
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result := &domain.JobResult{
		SuccessCount: int(succeeded.Load()),
		FailCount:    int(failed.Load()),
	}
	metrics.RecordProfiles(result.SuccessCount, result.FailCount)
	return result
}

func (s *Service) processRecord(ctx context.Context, record provider.Record) error {
	profile, err := record.Profile()
	if err != nil {
		return err
	}
	return s.ProcessProfile(ctx, profile)
}

// ProcessProfile creates or updates the influencer behind one platform
// profile. The influencer is resolved by its id (the provider's external id)
// first and by the synthetic email second, so a renamed username updates the
// stored document instead of replacing it. A new influencer gets its backing
// account in the same transaction, so either both land or neither does.
// Concurrent calls for the same influencer are serialized.
func (s *Service) ProcessProfile(ctx context.Context, profile domain.PlatformProfile) error {
	username, platform, err := profile.Identity()
	if err != nil {
		return err
	}
	email := domain.SyntheticEmail(username, platform)
	influencerID := influencerIDFor(profile, email)

	return s.store.WithinTx(ctx, influencerID, func(ctx context.Context, repo domain.ProfileRepository) error {
		influencer, err := resolveInfluencer(ctx, repo, influencerID, email)
		if errors.Is(err, domain.ErrInfluencerNotFound) {
			influencer, err = s.newInfluencer(ctx, repo, influencerID, email, username, profile)
		}
		if err != nil {
			return err
		}

		merged := merge.Apply(*influencer, []domain.PlatformProfile{profile}, s.now())
		if err := repo.UpsertProfile(ctx, &merged); err != nil {
			return err
		}

		s.logger.Debug("Profile synced",
			slog.String("influencer_id", merged.InfluencerID),
			slog.String("email", merged.Email),
		)
		return nil
	})
}

// influencerIDFor is the provider's external id, or a stable id derived from
// the synthetic email when the provider sent none.
func influencerIDFor(profile domain.PlatformProfile, email string) string {
	if profile.ExternalID != "" {
		return profile.ExternalID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(email)).String()
}

func resolveInfluencer(ctx context.Context, repo domain.ProfileRepository, influencerID, email string) (*domain.InfluencerProfile, error) {
	influencer, err := repo.FindProfile(ctx, influencerID)
	if !errors.Is(err, domain.ErrInfluencerNotFound) {
		return influencer, err
	}
	return repo.FindProfileByEmail(ctx, email)
}

func (s *Service) newInfluencer(ctx context.Context, repo domain.ProfileRepository, influencerID, email, username string, seed domain.PlatformProfile) (*domain.InfluencerProfile, error) {
	account, err := repo.FindAccountByEmail(ctx, email)
	if errors.Is(err, domain.ErrAccountNotFound) {
		name := seed.FullName
		if name == "" {
			name = username
		}
		account, err = repo.CreateAccount(ctx, &domain.Account{
			ID:    uuid.NewString(),
			Name:  name,
			Email: email,
			Role:  domain.RoleInfluencer,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account %s: %w", email, err)
	}

	influencer := merge.NewInfluencer(influencerID, email, account.ID, seed)
	return &influencer, nil
}
