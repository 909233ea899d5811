package domain

import "strings"

// Range is an inclusive bound; either side may be open.
type Range struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// SearchFilter selects creators from the provider search endpoint.
type SearchFilter struct {
	WorkPlatformID    string `json:"workPlatformId,omitempty"`
	FollowerCount     *Range `json:"followerCount,omitempty"`
	HasContactDetails *bool  `json:"hasContactDetails,omitempty"`
	Page              int    `json:"page,omitempty"`
	Limit             int    `json:"limit,omitempty"`
}

const (
	DefaultSearchPage  = 1
	DefaultSearchLimit = 10
)

// IsEmpty reports whether no selection criteria are set. Page and limit do not count.
func (f SearchFilter) IsEmpty() bool {
	return strings.TrimSpace(f.WorkPlatformID) == "" &&
		(f.FollowerCount == nil || (f.FollowerCount.Min == nil && f.FollowerCount.Max == nil)) &&
		f.HasContactDetails == nil
}

// Validate rejects empty filters and inverted ranges.
func (f SearchFilter) Validate() error {
	if f.IsEmpty() {
		return NewValidationError("searchParams", "at least one search criterion is required")
	}
	if f.Page < 0 {
		return NewValidationError("searchParams.page", "must not be negative")
	}
	if f.Limit < 0 {
		return NewValidationError("searchParams.limit", "must not be negative")
	}
	if r := f.FollowerCount; r != nil && r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return NewValidationError("searchParams.followerCount", "min must not exceed max")
	}
	return nil
}

// WithDefaults fills page and limit.
func (f SearchFilter) WithDefaults() SearchFilter {
	if f.Page <= 0 {
		f.Page = DefaultSearchPage
	}
	if f.Limit <= 0 {
		f.Limit = DefaultSearchLimit
	}
	return f
}

// ExportParams describes a bulk export request.
type ExportParams struct {
	Platform      string   `json:"platform,omitempty"`
	Username      string   `json:"username,omitempty"`
	Category      string   `json:"category,omitempty"`
	Language      string   `json:"language,omitempty"`
	Location      string   `json:"location,omitempty"`
	MinFollowers  *int64   `json:"minFollowers,omitempty"`
	MaxFollowers  *int64   `json:"maxFollowers,omitempty"`
	MinEngagement *float64 `json:"minEngagement,omitempty"`
	MaxEngagement *float64 `json:"maxEngagement,omitempty"`
	Format        string   `json:"format,omitempty"`
}

// Validate rejects export requests without any selection criteria.
func (p ExportParams) Validate() error {
	if p.Platform == "" && p.Username == "" && p.Category == "" && p.Language == "" && p.Location == "" &&
		p.MinFollowers == nil && p.MaxFollowers == nil && p.MinEngagement == nil && p.MaxEngagement == nil {
		return NewValidationError("exportParams", "at least one export criterion is required")
	}
	if p.Format != "" && p.Format != "json" {
		return NewValidationError("exportParams.format", "only json exports can be ingested")
	}
	return nil
}

// ExportStatus is the provider-side state of an export.
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusProcessing ExportStatus = "processing"
	ExportStatusCompleted  ExportStatus = "completed"
	ExportStatusFailed     ExportStatus = "failed"
)

// ExportTask mirrors the provider's view of one export.
type ExportTask struct {
	ExportID    string
	Status      ExportStatus
	DownloadURL string
	Progress    float64
	Error       string
}

// DictionaryEntry is a reference-data item (platform, topic or location).
type DictionaryEntry struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Code        string `json:"code,omitempty"`
	Type        string `json:"type,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}
