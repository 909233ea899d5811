package provider

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/goccy/go-json"
)

// Record is one raw creator entry from a search page or an export file.
// Normalizing is deferred to Profile so that one malformed entry fails on
// its own instead of failing the whole batch.
type Record struct {
	Raw json.RawMessage

	// WorkPlatformID is the platform the search was scoped to. It is used
	// when the record itself does not say which platform it belongs to.
	WorkPlatformID string
}

type workPlatform struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logo_url"`
}

type creatorLocation struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type creatorPosition struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	Location    string `json:"location"`
	TimePeriod  struct {
		StartDate string `json:"start_date"`
	} `json:"time_period"`
}

type creatorRecord struct {
	ExternalID         string            `json:"external_id"`
	ID                 string            `json:"id"`
	Username           string            `json:"username"`
	PlatformUsername   string            `json:"platform_username"`
	FullName           string            `json:"full_name"`
	URL                string            `json:"url"`
	ImageURL           string            `json:"image_url"`
	ProfileHeadline    string            `json:"profile_headline"`
	Introduction       string            `json:"introduction"`
	FollowerCount      int64             `json:"follower_count"`
	ConnectionCount    int64             `json:"connection_count"`
	EngagementRate     float64           `json:"engagement_rate"`
	TalksAbout         stringList        `json:"talks_about"`
	OpenTo             stringList        `json:"open_to"`
	CreatorAccountType stringList        `json:"creator_account_type"`
	CreatorLocation    *creatorLocation  `json:"creator_location"`
	CurrentPosition    []creatorPosition `json:"current_position"`
	WorkPlatform       *workPlatform     `json:"work_platform"`
	Platform           string            `json:"platform"`
}

var errNoRecordIdentity = errors.New("record has neither external_id nor url")

// Profile normalizes the record. Counts and rates pass through unchanged;
// dates are parsed into UTC.
func (r Record) Profile() (domain.PlatformProfile, error) {
	var rec creatorRecord
	if err := json.Unmarshal(r.Raw, &rec); err != nil {
		return domain.PlatformProfile{}, fmt.Errorf("malformed creator record: %w", err)
	}

	externalID := rec.ExternalID
	if externalID == "" {
		externalID = rec.ID
	}
	if externalID == "" && rec.URL == "" {
		return domain.PlatformProfile{}, errNoRecordIdentity
	}

	username := rec.PlatformUsername
	if username == "" {
		username = rec.Username
	}

	p := domain.PlatformProfile{
		ExternalID:      externalID,
		URL:             rec.URL,
		Username:        username,
		FullName:        rec.FullName,
		ImageURL:        rec.ImageURL,
		Introduction:    rec.Introduction,
		Headline:        rec.ProfileHeadline,
		FollowerCount:   rec.FollowerCount,
		ConnectionCount: rec.ConnectionCount,
		EngagementRate:  rec.EngagementRate,
		TalksAbout:      []string(rec.TalksAbout),
		OpenTo:          []string(rec.OpenTo),
		AccountTypes:    []string(rec.CreatorAccountType),
		Metadata: domain.ProfileMetadata{
			DataSource:           domain.DataSource,
			PlatformSpecificData: append([]byte(nil), r.Raw...),
		},
	}

	switch {
	case rec.WorkPlatform != nil:
		p.WorkPlatform = domain.WorkPlatform{ID: rec.WorkPlatform.ID, Name: rec.WorkPlatform.Name, LogoURL: rec.WorkPlatform.LogoURL}
	case rec.Platform != "":
		p.WorkPlatform = domain.WorkPlatform{ID: rec.Platform, Name: rec.Platform}
	default:
		p.WorkPlatform = domain.WorkPlatform{ID: r.WorkPlatformID}
	}

	if rec.CreatorLocation != nil {
		p.Location = domain.Location{
			City:    rec.CreatorLocation.City,
			State:   rec.CreatorLocation.State,
			Country: rec.CreatorLocation.Country,
		}
	}

	for _, pos := range rec.CurrentPosition {
		start, err := parseDate(pos.TimePeriod.StartDate)
		if err != nil {
			return domain.PlatformProfile{}, fmt.Errorf("current_position %q: %w", pos.Title, err)
		}
		p.CurrentPositions = append(p.CurrentPositions, domain.Position{
			Title:       pos.Title,
			Company:     pos.Company,
			Description: pos.Description,
			Location:    pos.Location,
			StartDate:   start,
		})
	}

	return p, nil
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01"}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

// stringList accepts a JSON array of strings, a single string or null.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = stringList{s}
		}
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}
