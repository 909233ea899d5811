package provider

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/goccy/go-json"
)

type followerRange struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

type sortBy struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

type searchRequest struct {
	WorkPlatformID    string         `json:"work_platform_id,omitempty"`
	FollowerCount     *followerRange `json:"follower_count,omitempty"`
	HasContactDetails *bool          `json:"has_contact_details,omitempty"`
	Page              int            `json:"page"`
	Limit             int            `json:"limit"`
	SortBy            sortBy         `json:"sort_by"`
}

type searchResponse struct {
	Data     []json.RawMessage `json:"data"`
	Metadata struct {
		Total      int `json:"total"`
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
	} `json:"metadata"`
}

// SearchResult is one page of search results.
type SearchResult struct {
	Records    []Record
	Total      int
	Page       int
	TotalPages int
}

// SearchProfiles runs a creator search. Page and limit default to 1 and 10.
// Any failure returns an error and no partial results.
func (c *Client) SearchProfiles(ctx context.Context, filter domain.SearchFilter) (*SearchResult, error) {
	const op = "search_profiles"
	filter = filter.WithDefaults()

	req := searchRequest{
		WorkPlatformID:    filter.WorkPlatformID,
		HasContactDetails: filter.HasContactDetails,
		Page:              filter.Page,
		Limit:             filter.Limit,
		SortBy:            sortBy{Field: "FOLLOWER_COUNT", Order: "DESCENDING"},
	}
	if filter.FollowerCount != nil {
		req.FollowerCount = &followerRange{Min: filter.FollowerCount.Min, Max: filter.FollowerCount.Max}
	}

	data, err := c.do(ctx, op, http.MethodPost, "/professional/creators/profiles/search", req)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := c.decode(op, data, &resp); err != nil {
		return nil, err
	}

	result := &SearchResult{
		Records:    make([]Record, len(resp.Data)),
		Total:      resp.Metadata.Total,
		Page:       resp.Metadata.Page,
		TotalPages: resp.Metadata.TotalPages,
	}
	for i, raw := range resp.Data {
		result.Records[i] = Record{Raw: raw, WorkPlatformID: filter.WorkPlatformID}
	}

	c.logger.Debug("Provider search completed",
		slog.Int("results", len(result.Records)),
		slog.Int("total", result.Total),
		slog.Int("page", result.Page),
	)

	return result, nil
}
