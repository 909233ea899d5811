package merge

import (
	"maps"
	"slices"

	"github.com/cuongbtq/creator-sync/internal/domain"
)

func clone(p domain.InfluencerProfile) domain.InfluencerProfile {
	out := p

	if p.PlatformProfiles != nil {
		out.PlatformProfiles = make([]domain.PlatformProfile, len(p.PlatformProfiles))
		for i, pp := range p.PlatformProfiles {
			out.PlatformProfiles[i] = cloneProfile(pp)
		}
	}

	ui := &out.UIProfile
	ui.AccountType = slices.Clone(p.UIProfile.AccountType)
	ui.SocialLinks = slices.Clone(p.UIProfile.SocialLinks)
	ui.Categories = slices.Clone(p.UIProfile.Categories)
	ui.Tags = slices.Clone(p.UIProfile.Tags)
	ui.Topics = slices.Clone(p.UIProfile.Topics)
	ui.Interests = slices.Clone(p.UIProfile.Interests)
	ui.Expertise = slices.Clone(p.UIProfile.Expertise)
	ui.AudienceDemographics.AgeRanges = maps.Clone(p.UIProfile.AudienceDemographics.AgeRanges)
	ui.AudienceDemographics.GenderDistribution = maps.Clone(p.UIProfile.AudienceDemographics.GenderDistribution)
	ui.AudienceDemographics.Locations = maps.Clone(p.UIProfile.AudienceDemographics.Locations)
	ui.AudienceDemographics.Languages = maps.Clone(p.UIProfile.AudienceDemographics.Languages)

	if p.SyncMetadata.LastSyncDate != nil {
		t := *p.SyncMetadata.LastSyncDate
		out.SyncMetadata.LastSyncDate = &t
	}
	if p.SyncMetadata.LastUpdated != nil {
		t := *p.SyncMetadata.LastUpdated
		out.SyncMetadata.LastUpdated = &t
	}

	return out
}

func cloneProfile(p domain.PlatformProfile) domain.PlatformProfile {
	out := p
	out.TalksAbout = slices.Clone(p.TalksAbout)
	out.OpenTo = slices.Clone(p.OpenTo)
	out.AccountTypes = slices.Clone(p.AccountTypes)
	out.Metadata.PlatformSpecificData = slices.Clone(p.Metadata.PlatformSpecificData)

	if p.CurrentPositions != nil {
		out.CurrentPositions = make([]domain.Position, len(p.CurrentPositions))
		for i, pos := range p.CurrentPositions {
			out.CurrentPositions[i] = pos
			if pos.StartDate != nil {
				t := *pos.StartDate
				out.CurrentPositions[i].StartDate = &t
			}
		}
	}
	return out
}
