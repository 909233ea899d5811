package domain

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"
)

// WorkPlatform identifies the social platform a profile belongs to.
type WorkPlatform struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

type Location struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

// Position is a current role listed on a professional profile.
type Position struct {
	Title       string     `json:"title"`
	Company     string     `json:"company"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartDate   *time.Time `json:"startDate,omitempty"`
}

// ProfileMetadata travels with each platform profile. PlatformSpecificData
// is the raw provider record and is only ever passed through.
type ProfileMetadata struct {
	LastUpdated          time.Time       `json:"lastUpdated"`
	DataSource           string          `json:"dataSource"`
	LastSyncDate         time.Time       `json:"lastSyncDate"`
	PlatformSpecificData json.RawMessage `json:"platformSpecificData,omitempty"`
}

// PlatformProfile is one social account of an influencer as reported by the provider.
type PlatformProfile struct {
	ExternalID       string          `json:"externalId"`
	WorkPlatform     WorkPlatform    `json:"workPlatform"`
	URL              string          `json:"url"`
	Username         string          `json:"username,omitempty"`
	FullName         string          `json:"fullName"`
	ImageURL         string          `json:"imageUrl"`
	Introduction     string          `json:"introduction"`
	Headline         string          `json:"headline"`
	FollowerCount    int64           `json:"followerCount"`
	ConnectionCount  int64           `json:"connectionCount"`
	EngagementRate   float64         `json:"engagementRate"`
	Location         Location        `json:"location"`
	TalksAbout       []string        `json:"talksAbout"`
	OpenTo           []string        `json:"openTo"`
	AccountTypes     []string        `json:"accountTypes"`
	CurrentPositions []Position      `json:"currentPositions"`
	Metadata         ProfileMetadata `json:"metadata"`
}

var errNoIdentity = errors.New("platform profile has no usable identity")

// Identity returns the lower-cased username and platform that key the backing
// account. The username falls back to the last URL path segment and then to
// the external id; the platform falls back from name to id.
func (p PlatformProfile) Identity() (username, platform string, err error) {
	username = strings.TrimPrefix(strings.TrimSpace(p.Username), "@")
	if username == "" {
		username = lastPathSegment(p.URL)
	}
	if username == "" {
		username = strings.TrimSpace(p.ExternalID)
	}

	platform = strings.TrimSpace(p.WorkPlatform.Name)
	if platform == "" {
		platform = strings.TrimSpace(p.WorkPlatform.ID)
	}

	if username == "" || platform == "" {
		return "", "", errNoIdentity
	}
	return strings.ToLower(username), strings.ToLower(strings.ReplaceAll(platform, " ", "")), nil
}

func lastPathSegment(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	return strings.TrimPrefix(last, "@")
}

// SyntheticEmail derives the deterministic account email for a provider-only creator.
func SyntheticEmail(username, platform string) string {
	return strings.ToLower(username) + "@" + strings.ToLower(platform) + "." + DataSource
}

type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

type Performance struct {
	EngagementRate float64 `json:"engagementRate"`
	Reach          int64   `json:"reach"`
	Impressions    int64   `json:"impressions"`
}

type Pricing struct {
	MinimumBudget float64 `json:"minimumBudget"`
	MaximumBudget float64 `json:"maximumBudget"`
	Currency      string  `json:"currency"`
}

type AudienceDemographics struct {
	AgeRanges          map[string]float64 `json:"ageRanges"`
	GenderDistribution map[string]float64 `json:"genderDistribution"`
	Locations          map[string]float64 `json:"locations"`
	Languages          map[string]float64 `json:"languages"`
}

// UIProfile is the curated presentation layer. Brands and admins edit it
// directly, so sync only ever fills fields that are still empty.
type UIProfile struct {
	Handle               string               `json:"handle"`
	Role                 string               `json:"role"`
	AvatarURL            string               `json:"avatarUrl"`
	Bio                  string               `json:"bio"`
	Location             string               `json:"location"`
	Gender               string               `json:"gender"`
	AccountType          []string             `json:"accountType"`
	IsVerified           bool                 `json:"isVerified"`
	ContactIconURL       string               `json:"contactIconUrl"`
	Email                string               `json:"email"`
	SocialLinks          []SocialLink         `json:"socialLinks"`
	Categories           []string             `json:"categories"`
	Tags                 []string             `json:"tags"`
	Topics               []string             `json:"topics"`
	Interests            []string             `json:"interests"`
	Expertise            []string             `json:"expertise"`
	Performance          Performance          `json:"performance"`
	Pricing              Pricing              `json:"pricing"`
	AudienceDemographics AudienceDemographics `json:"audienceDemographics"`
}

// SyncMetadata marks the last sync attempt for staleness checks.
type SyncMetadata struct {
	LastSyncDate *time.Time `json:"lastSyncDate"`
	LastUpdated  *time.Time `json:"lastUpdated"`
	DataSource   string     `json:"dataSource"`
}

// InfluencerProfile is the stored aggregate for one influencer.
type InfluencerProfile struct {
	InfluencerID     string            `json:"influencerId"`
	Email            string            `json:"email"`
	AccountID        string            `json:"accountId"`
	PlatformProfiles []PlatformProfile `json:"platformProfiles"`
	UIProfile        UIProfile         `json:"uiProfile"`
	SyncMetadata     SyncMetadata      `json:"syncMetadata"`
}

// Account is the backing user record of an influencer.
type Account struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
