package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/goccy/go-json"
)

const exportPath = "/social-creator-profile-search-export"

type exportRequest struct {
	Platform      string   `json:"platform,omitempty"`
	Username      string   `json:"username,omitempty"`
	Category      string   `json:"category,omitempty"`
	Language      string   `json:"language,omitempty"`
	Location      string   `json:"location,omitempty"`
	MinFollowers  *int64   `json:"min_followers,omitempty"`
	MaxFollowers  *int64   `json:"max_followers,omitempty"`
	MinEngagement *float64 `json:"min_engagement,omitempty"`
	MaxEngagement *float64 `json:"max_engagement,omitempty"`
	Format        string   `json:"format"`
	WebhookURL    string   `json:"webhook_url,omitempty"`
}

type exportResponse struct {
	ExportID    string  `json:"export_id"`
	Status      string  `json:"status"`
	DownloadURL string  `json:"download_url"`
	Progress    float64 `json:"progress"`
	Error       string  `json:"error"`
}

// StartExport asks the provider to build an export asynchronously. The
// provider reports completion to the configured webhook url.
func (c *Client) StartExport(ctx context.Context, params domain.ExportParams) (*domain.ExportTask, error) {
	const op = "start_export"

	format := params.Format
	if format == "" {
		format = "json"
	}

	data, err := c.do(ctx, op, http.MethodPost, exportPath, exportRequest{
		Platform:      params.Platform,
		Username:      params.Username,
		Category:      params.Category,
		Language:      params.Language,
		Location:      params.Location,
		MinFollowers:  params.MinFollowers,
		MaxFollowers:  params.MaxFollowers,
		MinEngagement: params.MinEngagement,
		MaxEngagement: params.MaxEngagement,
		Format:        format,
		WebhookURL:    c.config.WebhookURL,
	})
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := c.decode(op, data, &resp); err != nil {
		return nil, err
	}
	if resp.ExportID == "" {
		return nil, &Error{Op: op, Err: fmt.Errorf("response carries no export_id")}
	}

	return resp.toTask(resp.ExportID), nil
}

// GetExportStatus reports the provider-side state of an export.
func (c *Client) GetExportStatus(ctx context.Context, exportID string) (*domain.ExportTask, error) {
	const op = "get_export_status"

	data, err := c.do(ctx, op, http.MethodGet, exportPath+"/"+url.PathEscape(exportID), nil)
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := c.decode(op, data, &resp); err != nil {
		return nil, err
	}

	return resp.toTask(exportID), nil
}

// DownloadExport returns the raw export file.
func (c *Client) DownloadExport(ctx context.Context, exportID string) ([]byte, error) {
	return c.do(ctx, "download_export", http.MethodGet, exportPath+"/"+url.PathEscape(exportID)+"/download", nil)
}

// DecodeExport splits a downloaded JSON export into records.
func DecodeExport(data []byte) ([]Record, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &Error{Op: "decode_export", Err: fmt.Errorf("malformed export payload: %w", err)}
	}

	records := make([]Record, len(raws))
	for i, raw := range raws {
		records[i] = Record{Raw: raw}
	}
	return records, nil
}

func (r exportResponse) toTask(exportID string) *domain.ExportTask {
	return &domain.ExportTask{
		ExportID:    exportID,
		Status:      domain.ExportStatus(strings.ToLower(r.Status)),
		DownloadURL: r.DownloadURL,
		Progress:    r.Progress,
		Error:       r.Error,
	}
}
