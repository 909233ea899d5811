package merge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t1.Add(time.Hour)
)

func instagram(id, url string) domain.PlatformProfile {
	return domain.PlatformProfile{
		ExternalID:     id,
		WorkPlatform:   domain.WorkPlatform{ID: "wp-ig", Name: "Instagram"},
		URL:            url,
		FullName:       "Alice Example",
		ImageURL:       "https://img/alice.png",
		Introduction:   "Auto bio",
		FollowerCount:  120000,
		EngagementRate: 0.034,
		Location:       domain.Location{City: "Hanoi", Country: "Vietnam"},
		TalksAbout:     []string{"travel"},
		Metadata: domain.ProfileMetadata{
			PlatformSpecificData: json.RawMessage(`{"raw":true}`),
		},
	}
}

func TestApply_AppendsUnmatched(t *testing.T) {
	existing := NewInfluencer("inf-1", "alice@instagram.insightiq", "acc-1", domain.PlatformProfile{})

	got := Apply(existing, []domain.PlatformProfile{instagram("ext-1", "https://instagram.com/alice")}, t1)

	require.Len(t, got.PlatformProfiles, 1)
	p := got.PlatformProfiles[0]
	assert.Equal(t, "ext-1", p.ExternalID)
	assert.Equal(t, t1, p.Metadata.LastUpdated)
	assert.Equal(t, t1, p.Metadata.LastSyncDate)
	assert.Equal(t, domain.DataSource, p.Metadata.DataSource)
	assert.Empty(t, existing.PlatformProfiles, "input must not be modified")
}

func TestApply_ReplacesWholesale(t *testing.T) {
	old := instagram("ext-1", "https://instagram.com/alice")
	old.OpenTo = []string{"collabs"}
	old.Metadata.PlatformSpecificData = json.RawMessage(`{"old":1,"keep":2}`)
	existing := domain.InfluencerProfile{InfluencerID: "inf-1", PlatformProfiles: []domain.PlatformProfile{old}}

	in := instagram("ext-1", "https://instagram.com/alice")
	in.FollowerCount = 130000
	in.Metadata.PlatformSpecificData = json.RawMessage(`{"new":1}`)

	got := Apply(existing, []domain.PlatformProfile{in}, t1)

	require.Len(t, got.PlatformProfiles, 1)
	p := got.PlatformProfiles[0]
	assert.Equal(t, int64(130000), p.FollowerCount)
	assert.Nil(t, p.OpenTo, "fields absent from incoming are not carried over")
	assert.JSONEq(t, `{"new":1}`, string(p.Metadata.PlatformSpecificData))
}

func TestApply_MatchesByPlatformAndURLWhenIDChurns(t *testing.T) {
	existing := domain.InfluencerProfile{PlatformProfiles: []domain.PlatformProfile{
		instagram("old-id", "https://instagram.com/alice"),
	}}
	in := instagram("new-id", "https://instagram.com/alice")
	in.WorkPlatform.Name = "INSTAGRAM"

	got := Apply(existing, []domain.PlatformProfile{in}, t1)

	require.Len(t, got.PlatformProfiles, 1)
	assert.Equal(t, "new-id", got.PlatformProfiles[0].ExternalID)
}

func TestApply_ExternalIDTakesPrecedence(t *testing.T) {
	byURL := instagram("a", "https://instagram.com/alice")
	byID := instagram("b", "https://instagram.com/alice-old")
	existing := domain.InfluencerProfile{PlatformProfiles: []domain.PlatformProfile{byURL, byID}}

	in := instagram("b", "https://instagram.com/alice")
	in.FollowerCount = 1

	got := Apply(existing, []domain.PlatformProfile{in}, t1)

	require.Len(t, got.PlatformProfiles, 2)
	assert.Equal(t, "a", got.PlatformProfiles[0].ExternalID)
	assert.Equal(t, int64(120000), got.PlatformProfiles[0].FollowerCount)
	assert.Equal(t, "b", got.PlatformProfiles[1].ExternalID)
	assert.Equal(t, int64(1), got.PlatformProfiles[1].FollowerCount)
}

func TestApply_UniqueWithinIncoming(t *testing.T) {
	got := Apply(domain.InfluencerProfile{}, []domain.PlatformProfile{
		instagram("ext-1", "https://instagram.com/alice"),
		instagram("ext-1", "https://instagram.com/alice"),
	}, t1)

	assert.Len(t, got.PlatformProfiles, 1)
}

func TestApply_BackfillsOnlyEmptyUIFields(t *testing.T) {
	existing := domain.InfluencerProfile{UIProfile: domain.UIProfile{
		Handle: "alice_official",
		Bio:    "Hand-written bio",
	}}

	got := Apply(existing, []domain.PlatformProfile{instagram("ext-1", "https://instagram.com/alice")}, t1)

	ui := got.UIProfile
	assert.Equal(t, "alice_official", ui.Handle)
	assert.Equal(t, "Hand-written bio", ui.Bio)
	assert.Equal(t, "https://img/alice.png", ui.AvatarURL)
	assert.Equal(t, "Hanoi", ui.Location)
	assert.Equal(t, 0.034, ui.Performance.EngagementRate)
	assert.Equal(t, int64(120000), ui.Performance.Reach)
}

func TestApply_BackfillUsesFirstIncoming(t *testing.T) {
	first := instagram("ext-1", "https://instagram.com/alice")
	second := instagram("ext-2", "https://youtube.com/@alice")
	second.WorkPlatform = domain.WorkPlatform{ID: "wp-yt", Name: "YouTube"}
	second.FullName = "Other Name"
	second.Location = domain.Location{Country: "Japan"}

	got := Apply(domain.InfluencerProfile{}, []domain.PlatformProfile{first, second}, t1)

	assert.Equal(t, "Alice Example", got.UIProfile.Handle)
	assert.Equal(t, "Hanoi", got.UIProfile.Location)
	assert.Equal(t, []domain.SocialLink{
		{Platform: "Instagram", URL: "https://instagram.com/alice"},
		{Platform: "YouTube", URL: "https://youtube.com/@alice"},
	}, got.UIProfile.SocialLinks)
}

func TestApply_LocationFallsBackToCountry(t *testing.T) {
	in := instagram("ext-1", "")
	in.Location = domain.Location{Country: "Vietnam"}

	got := Apply(domain.InfluencerProfile{}, []domain.PlatformProfile{in}, t1)

	assert.Equal(t, "Vietnam", got.UIProfile.Location)
}

func TestApply_KeepsExistingSocialLinks(t *testing.T) {
	existing := domain.InfluencerProfile{UIProfile: domain.UIProfile{
		SocialLinks: []domain.SocialLink{{Platform: "instagram", URL: "https://instagram.com/alice-edited"}},
	}}

	got := Apply(existing, []domain.PlatformProfile{instagram("ext-1", "https://instagram.com/alice")}, t1)

	assert.Equal(t, existing.UIProfile.SocialLinks, got.UIProfile.SocialLinks)
}

func TestApply_EmptyIncomingStillMarksSync(t *testing.T) {
	existing := domain.InfluencerProfile{
		InfluencerID: "inf-1",
		UIProfile:    domain.UIProfile{Handle: "alice"},
		SyncMetadata: domain.SyncMetadata{LastSyncDate: &t0},
	}

	got := Apply(existing, nil, t1)

	require.NotNil(t, got.SyncMetadata.LastSyncDate)
	assert.Equal(t, t1, *got.SyncMetadata.LastSyncDate)
	assert.Equal(t, t1, *got.SyncMetadata.LastUpdated)
	assert.Equal(t, domain.DataSource, got.SyncMetadata.DataSource)
	assert.Equal(t, existing.UIProfile, got.UIProfile)
	assert.Equal(t, t0, *existing.SyncMetadata.LastSyncDate, "input must not be modified")
}

func TestApply_IdempotentModuloTimestamps(t *testing.T) {
	existing := domain.InfluencerProfile{
		InfluencerID: "inf-1",
		PlatformProfiles: []domain.PlatformProfile{
			instagram("ext-0", "https://instagram.com/legacy"),
		},
		UIProfile: domain.UIProfile{Bio: "Hand-written bio"},
	}
	yt := instagram("ext-2", "https://youtube.com/@alice")
	yt.WorkPlatform = domain.WorkPlatform{ID: "wp-yt", Name: "YouTube"}
	incoming := []domain.PlatformProfile{instagram("ext-1", "https://instagram.com/alice"), yt}

	once := Apply(existing, incoming, t1)
	twice := Apply(once, incoming, t2)

	assert.Equal(t, stripTimestamps(once), stripTimestamps(twice))
	assert.Equal(t, t2, *twice.SyncMetadata.LastSyncDate)
}

func TestApply_HandleNeverOverwritten(t *testing.T) {
	inputs := [][]domain.PlatformProfile{
		nil,
		{instagram("x", "https://instagram.com/x")},
		{{FullName: "Someone Else", WorkPlatform: domain.WorkPlatform{Name: "TikTok"}}},
		{{Username: "u"}, {FullName: "Second"}},
	}

	for _, in := range inputs {
		got := Apply(domain.InfluencerProfile{UIProfile: domain.UIProfile{Handle: "kept"}}, in, t1)
		assert.Equal(t, "kept", got.UIProfile.Handle)
	}
}

func TestIsStale(t *testing.T) {
	fresh := t2.Add(-time.Hour)
	old := t2.Add(-25 * time.Hour)

	assert.True(t, IsStale(domain.InfluencerProfile{}, t2))
	assert.False(t, IsStale(domain.InfluencerProfile{SyncMetadata: domain.SyncMetadata{LastSyncDate: &fresh}}, t2))
	assert.True(t, IsStale(domain.InfluencerProfile{SyncMetadata: domain.SyncMetadata{LastSyncDate: &old}}, t2))
}

func TestNewInfluencer(t *testing.T) {
	seed := instagram("ext-1", "https://instagram.com/alice")
	seed.AccountTypes = []string{"CREATOR"}

	p := NewInfluencer("inf-1", "alice@instagram.insightiq", "acc-1", seed)

	assert.Equal(t, domain.RoleInfluencer, p.UIProfile.Role)
	assert.Equal(t, "alice@instagram.insightiq", p.UIProfile.Email)
	assert.Equal(t, "USD", p.UIProfile.Pricing.Currency)
	assert.Equal(t, []string{"CREATOR"}, p.UIProfile.AccountType)
	assert.Equal(t, []string{"travel"}, p.UIProfile.Tags)
	assert.Empty(t, p.PlatformProfiles)
}

func stripTimestamps(p domain.InfluencerProfile) domain.InfluencerProfile {
	out := clone(p)
	out.SyncMetadata.LastSyncDate = nil
	out.SyncMetadata.LastUpdated = nil
	for i := range out.PlatformProfiles {
		out.PlatformProfiles[i].Metadata.LastUpdated = time.Time{}
		out.PlatformProfiles[i].Metadata.LastSyncDate = time.Time{}
	}
	return out
}
