package syncer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/cuongbtq/creator-sync/internal/merge"
	"golang.org/x/sync/errgroup"
)

// GetInfluencer returns a stored influencer, refreshing it from the provider
// first when its sync marker is stale. A failed refresh is logged and the
// cached profile is returned as is.
func (s *Service) GetInfluencer(ctx context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	influencer, err := s.store.FindProfile(ctx, influencerID)
	if err != nil {
		return nil, err
	}

	if !merge.IsStale(*influencer, s.now()) {
		return influencer, nil
	}

	fetched, _ := s.fetchLinks(ctx, linkTargets(*influencer))
	if err := s.mergeInto(ctx, influencer, fetched); err != nil {
		s.logger.Warn("Failed to refresh stale influencer, serving cached profile",
			slog.String("influencer_id", influencerID),
			slog.String("error", err.Error()),
		)
		return influencer, nil
	}

	refreshed, err := s.store.FindProfile(ctx, influencerID)
	if err != nil {
		s.logger.Warn("Failed to reload refreshed influencer",
			slog.String("influencer_id", influencerID),
			slog.String("error", err.Error()),
		)
		return influencer, nil
	}
	return refreshed, nil
}

// mergeInto merges fetched platform data into a known influencer. The stored
// document is re-read under the identity lock so a concurrent write is not lost.
func (s *Service) mergeInto(ctx context.Context, influencer *domain.InfluencerProfile, fetched []domain.PlatformProfile) error {
	return s.store.WithinTx(ctx, influencer.InfluencerID, func(ctx context.Context, repo domain.ProfileRepository) error {
		current, err := repo.FindProfile(ctx, influencer.InfluencerID)
		if err != nil {
			return err
		}
		merged := merge.Apply(*current, fetched, s.now())
		return repo.UpsertProfile(ctx, &merged)
	})
}

// linkTarget is one platform account to fetch from the provider.
type linkTarget struct {
	url            string
	workPlatformID string
}

// linkTargets collects the distinct profile urls known for an influencer,
// from its platform profiles first and then its UI social links.
func linkTargets(p domain.InfluencerProfile) []linkTarget {
	seen := map[string]bool{}
	platformIDs := map[string]string{}
	var targets []linkTarget

	for _, pp := range p.PlatformProfiles {
		if pp.WorkPlatform.Name != "" && pp.WorkPlatform.ID != "" {
			platformIDs[strings.ToLower(pp.WorkPlatform.Name)] = pp.WorkPlatform.ID
		}
		if pp.URL == "" || seen[pp.URL] {
			continue
		}
		seen[pp.URL] = true
		targets = append(targets, linkTarget{url: pp.URL, workPlatformID: pp.WorkPlatform.ID})
	}

	for _, link := range p.UIProfile.SocialLinks {
		if link.URL == "" || seen[link.URL] {
			continue
		}
		seen[link.URL] = true
		id := platformIDs[strings.ToLower(link.Platform)]
		if id == "" {
			id = link.Platform
		}
		targets = append(targets, linkTarget{url: link.URL, workPlatformID: id})
	}

	return targets
}

// fetchLinks fetches every target concurrently and flattens the results. It
// also reports how many targets returned nothing.
func (s *Service) fetchLinks(ctx context.Context, targets []linkTarget) ([]domain.PlatformProfile, int) {
	results := make([][]domain.PlatformProfile, len(targets))

	var g errgroup.Group
	g.SetLimit(s.config.FanOutConcurrency)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = s.provider.FetchProfile(ctx, target.url, target.workPlatformID)
			return nil
		})
	}
	_ = g.Wait()

	var fetched []domain.PlatformProfile
	missed := 0
	for _, r := range results {
		if len(r) == 0 {
			missed++
		}
		fetched = append(fetched, r...)
	}
	return fetched, missed
}

