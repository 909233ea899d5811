package provider

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/goccy/go-json"
)

type analyticsRequest struct {
	ProfileURL     string `json:"profile_url"`
	WorkPlatformID string `json:"work_platform_id"`
}

type analyticsResponse struct {
	ID                  string        `json:"id"`
	FirstName           string        `json:"first_name"`
	MiddleName          string        `json:"middle_name"`
	LastName            string        `json:"last_name"`
	URL                 string        `json:"url"`
	ImageURL            string        `json:"image_url"`
	FollowerCount       int64         `json:"follower_count"`
	ProfileSummary      string        `json:"profile_summary"`
	ProfileHeadline     string        `json:"profile_headline"`
	PlatformAccountType stringList    `json:"platform_account_type"`
	WorkPlatform        *workPlatform `json:"work_platform"`
	EngagementRate      float64       `json:"engagement_rate"`
	Reputation          struct {
		ConnectionCount int64 `json:"connection_count"`
	} `json:"reputation"`
	Location *struct {
		City        string `json:"city"`
		State       string `json:"state"`
		CountryName string `json:"country_name"`
	} `json:"location"`
	TalksAbout []struct {
		Name string `json:"name"`
	} `json:"talks_about"`
	WorkExperiences *struct {
		Title   string `json:"title"`
		Company struct {
			Name string `json:"name"`
		} `json:"company"`
		Description string `json:"description"`
		Location    struct {
			Name string `json:"name"`
		} `json:"location"`
		TimePeriod struct {
			StartDate *struct {
				Year  int `json:"year"`
				Month int `json:"month"`
			} `json:"start_date"`
		} `json:"time_period"`
	} `json:"work_experiences"`
	TopContents    json.RawMessage `json:"top_contents"`
	RecentContents json.RawMessage `json:"recent_contents"`
	TopHashtags    json.RawMessage `json:"top_hashtags"`
	Languages      json.RawMessage `json:"languages"`
	Skills         json.RawMessage `json:"skills"`
}

type analyticsExtras struct {
	TopContents    json.RawMessage `json:"topContents,omitempty"`
	RecentContents json.RawMessage `json:"recentContents,omitempty"`
	TopHashtags    json.RawMessage `json:"topHashtags,omitempty"`
	Languages      json.RawMessage `json:"languages,omitempty"`
	Skills         json.RawMessage `json:"skills,omitempty"`
}

// FetchProfile loads analytics for one profile url. It never fails: any
// error is logged and an empty slice is returned, so one broken social link
// does not abort the sync of an influencer's other links.
func (c *Client) FetchProfile(ctx context.Context, profileURL, workPlatformID string) []domain.PlatformProfile {
	const op = "fetch_profile"

	data, err := c.do(ctx, op, http.MethodPost, "/professional/creators/profiles/analytics", analyticsRequest{
		ProfileURL:     profileURL,
		WorkPlatformID: workPlatformID,
	})
	if err != nil {
		c.logger.Warn("Failed to fetch profile from provider",
			slog.String("profile_url", profileURL),
			slog.String("work_platform_id", workPlatformID),
			slog.String("error", err.Error()),
		)
		return []domain.PlatformProfile{}
	}

	var resp analyticsResponse
	if err := c.decode(op, data, &resp); err != nil {
		c.logger.Warn("Malformed profile analytics response",
			slog.String("profile_url", profileURL),
			slog.String("error", err.Error()),
		)
		return []domain.PlatformProfile{}
	}

	return []domain.PlatformProfile{resp.toProfile(profileURL, workPlatformID)}
}

func (r *analyticsResponse) toProfile(profileURL, workPlatformID string) domain.PlatformProfile {
	p := domain.PlatformProfile{
		ExternalID:      r.ID,
		FullName:        strings.Join(strings.Fields(r.FirstName+" "+r.MiddleName+" "+r.LastName), " "),
		URL:             r.URL,
		ImageURL:        r.ImageURL,
		FollowerCount:   r.FollowerCount,
		ConnectionCount: r.Reputation.ConnectionCount,
		Introduction:    r.ProfileSummary,
		Headline:        r.ProfileHeadline,
		EngagementRate:  r.EngagementRate,
		AccountTypes:    []string(r.PlatformAccountType),
		WorkPlatform:    domain.WorkPlatform{ID: workPlatformID, Name: "Unknown Platform"},
		OpenTo:          []string{},
		Metadata:        domain.ProfileMetadata{DataSource: domain.DataSource},
	}
	if p.URL == "" {
		p.URL = profileURL
	}
	if r.WorkPlatform != nil {
		if r.WorkPlatform.ID != "" {
			p.WorkPlatform.ID = r.WorkPlatform.ID
		}
		if r.WorkPlatform.Name != "" {
			p.WorkPlatform.Name = r.WorkPlatform.Name
		}
		p.WorkPlatform.LogoURL = r.WorkPlatform.LogoURL
	}
	if r.Location != nil {
		p.Location = domain.Location{City: r.Location.City, State: r.Location.State, Country: r.Location.CountryName}
	}
	for _, topic := range r.TalksAbout {
		p.TalksAbout = append(p.TalksAbout, topic.Name)
	}
	if w := r.WorkExperiences; w != nil {
		pos := domain.Position{
			Title:       w.Title,
			Company:     w.Company.Name,
			Description: w.Description,
			Location:    w.Location.Name,
		}
		if sd := w.TimePeriod.StartDate; sd != nil && sd.Year > 0 {
			month := time.Month(sd.Month)
			if month < time.January || month > time.December {
				month = time.January
			}
			start := time.Date(sd.Year, month, 1, 0, 0, 0, 0, time.UTC)
			pos.StartDate = &start
		}
		p.CurrentPositions = []domain.Position{pos}
	}

	extras, err := json.Marshal(analyticsExtras{
		TopContents:    r.TopContents,
		RecentContents: r.RecentContents,
		TopHashtags:    r.TopHashtags,
		Languages:      r.Languages,
		Skills:         r.Skills,
	})
	if err == nil {
		p.Metadata.PlatformSpecificData = extras
	}

	return p
}
