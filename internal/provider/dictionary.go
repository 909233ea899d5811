package provider

import (
	"context"
	"net/http"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/goccy/go-json"
)

// platforms is maintained by hand; the provider has no platform listing.
var platforms = []domain.DictionaryEntry{
	{Name: "Instagram", Code: "instagram", Icon: "instagram", Description: "Instagram social media platform"},
	{Name: "YouTube", Code: "youtube", Icon: "youtube", Description: "YouTube video platform"},
	{Name: "TikTok", Code: "tiktok", Icon: "tiktok", Description: "TikTok short video platform"},
	{Name: "Twitter", Code: "twitter", Icon: "twitter", Description: "Twitter social media platform"},
	{Name: "Facebook", Code: "facebook", Icon: "facebook", Description: "Facebook social media platform"},
	{Name: "LinkedIn", Code: "linkedin", Icon: "linkedin", Description: "LinkedIn professional network"},
	{Name: "Pinterest", Code: "pinterest", Icon: "pinterest", Description: "Pinterest visual discovery platform"},
	{Name: "Snapchat", Code: "snapchat", Icon: "snapchat", Description: "Snapchat messaging platform"},
}

type dictionaryItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// GetPlatforms returns the supported social platforms.
func (c *Client) GetPlatforms(_ context.Context) ([]domain.DictionaryEntry, error) {
	out := make([]domain.DictionaryEntry, len(platforms))
	copy(out, platforms)
	return out, nil
}

// GetTopics returns the provider's topic dictionary.
func (c *Client) GetTopics(ctx context.Context) ([]domain.DictionaryEntry, error) {
	return c.dictionary(ctx, "get_topics", "/social/creators/dictionary/topics")
}

// GetLocations returns the provider's location dictionary.
func (c *Client) GetLocations(ctx context.Context) ([]domain.DictionaryEntry, error) {
	return c.dictionary(ctx, "get_locations", "/social/creators/dictionary/locations")
}

// dictionary accepts either a bare array or a {"data": [...]} envelope.
func (c *Client) dictionary(ctx context.Context, op, path string) ([]domain.DictionaryEntry, error) {
	data, err := c.do(ctx, op, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var items []dictionaryItem
	if err := json.Unmarshal(data, &items); err != nil {
		var envelope struct {
			Data []dictionaryItem `json:"data"`
		}
		if err := c.decode(op, data, &envelope); err != nil {
			return nil, err
		}
		items = envelope.Data
	}

	out := make([]domain.DictionaryEntry, len(items))
	for i, item := range items {
		out[i] = domain.DictionaryEntry{
			ID:          item.ID,
			Name:        item.Name,
			Code:        item.Code,
			Type:        item.Type,
			Description: item.Description,
		}
	}
	return out, nil
}
