// Package merge reconciles stored influencer profiles with platform data
// fetched from the provider. Everything here is pure: callers pass the
// clock in and get a new value back.
package merge

import (
	"slices"
	"strings"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
)

// StaleAfter is how long a sync marker stays fresh.
const StaleAfter = 24 * time.Hour

// Apply merges incoming platform profiles into existing and returns the result.
// existing is not modified.
//
// Each incoming profile replaces the stored entry with the same external id,
// or failing that the entry with the same platform name and url. Unmatched
// profiles are appended. Empty UI fields are then backfilled from incoming[0]
// and the sync marker is set to now, even when incoming is empty.
func Apply(existing domain.InfluencerProfile, incoming []domain.PlatformProfile, now time.Time) domain.InfluencerProfile {
	now = now.UTC()
	out := clone(existing)

	for _, in := range incoming {
		entry := cloneProfile(in)
		entry.Metadata.LastUpdated = now
		entry.Metadata.LastSyncDate = now
		if entry.Metadata.DataSource == "" {
			entry.Metadata.DataSource = domain.DataSource
		}

		if idx := findMatch(out.PlatformProfiles, in); idx >= 0 {
			out.PlatformProfiles[idx] = entry
		} else {
			out.PlatformProfiles = append(out.PlatformProfiles, entry)
		}
	}

	if len(incoming) > 0 {
		backfillUI(&out.UIProfile, incoming[0])
		addSocialLinks(&out.UIProfile, incoming)
	}

	out.SyncMetadata.LastSyncDate = &now
	out.SyncMetadata.LastUpdated = &now
	out.SyncMetadata.DataSource = domain.DataSource

	return out
}

// findMatch returns the index of the stored entry that in replaces, or -1.
// An external id match always wins over a platform and url match.
func findMatch(stored []domain.PlatformProfile, in domain.PlatformProfile) int {
	if in.ExternalID != "" {
		for i, p := range stored {
			if p.ExternalID == in.ExternalID {
				return i
			}
		}
	}

	if in.URL == "" || in.WorkPlatform.Name == "" {
		return -1
	}
	for i, p := range stored {
		if p.URL == in.URL && strings.EqualFold(p.WorkPlatform.Name, in.WorkPlatform.Name) {
			return i
		}
	}
	return -1
}

func backfillUI(ui *domain.UIProfile, src domain.PlatformProfile) {
	if ui.Handle == "" {
		ui.Handle = src.FullName
		if ui.Handle == "" {
			ui.Handle = src.Username
		}
	}
	if ui.AvatarURL == "" {
		ui.AvatarURL = src.ImageURL
	}
	if ui.Bio == "" {
		ui.Bio = src.Introduction
	}
	if ui.Location == "" {
		ui.Location = src.Location.City
		if ui.Location == "" {
			ui.Location = src.Location.Country
		}
	}
	if ui.Performance.EngagementRate == 0 {
		ui.Performance.EngagementRate = src.EngagementRate
	}
	if ui.Performance.Reach == 0 {
		ui.Performance.Reach = src.FollowerCount
	}
}

// addSocialLinks links every platform that has no link yet. Existing links
// are never edited or removed.
func addSocialLinks(ui *domain.UIProfile, incoming []domain.PlatformProfile) {
	for _, p := range incoming {
		if p.URL == "" || p.WorkPlatform.Name == "" {
			continue
		}
		linked := slices.ContainsFunc(ui.SocialLinks, func(l domain.SocialLink) bool {
			return strings.EqualFold(l.Platform, p.WorkPlatform.Name)
		})
		if !linked {
			ui.SocialLinks = append(ui.SocialLinks, domain.SocialLink{Platform: p.WorkPlatform.Name, URL: p.URL})
		}
	}
}

// IsStale reports whether the profile needs a refresh at now.
func IsStale(p domain.InfluencerProfile, now time.Time) bool {
	last := p.SyncMetadata.LastSyncDate
	return last == nil || now.Sub(*last) > StaleAfter
}

// NewInfluencer returns an empty influencer aggregate with the defaults the
// UI expects for a creator first seen through sync.
func NewInfluencer(influencerID, email, accountID string, seed domain.PlatformProfile) domain.InfluencerProfile {
	return domain.InfluencerProfile{
		InfluencerID: influencerID,
		Email:        email,
		AccountID:    accountID,
		UIProfile: domain.UIProfile{
			Role:        domain.RoleInfluencer,
			Gender:      "any",
			Email:       email,
			AccountType: slices.Clone(seed.AccountTypes),
			Tags:        slices.Clone(seed.TalksAbout),
			Pricing:     domain.Pricing{Currency: "USD"},
			AudienceDemographics: domain.AudienceDemographics{
				AgeRanges:          map[string]float64{},
				GenderDistribution: map[string]float64{},
				Locations:          map[string]float64{},
				Languages:          map[string]float64{},
			},
		},
	}
}
