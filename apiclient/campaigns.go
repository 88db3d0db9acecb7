package apiclient

import (
	"context"
	"encoding/json"
	"net/url"
)

func (c *Client) Campaigns(ctx context.Context, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/campaigns", params, "Failed to fetch campaigns")
}

func (c *Client) Campaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/campaigns/"+seg(id), nil, "Failed to fetch campaign")
}

func (c *Client) CreateCampaign(ctx context.Context, campaign interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/campaigns", campaign, "Failed to create campaign")
}

func (c *Client) UpdateCampaign(ctx context.Context, id string, campaign interface{}) (json.RawMessage, error) {
	return c.put(ctx, "/campaigns/"+seg(id), campaign, "Failed to update campaign")
}

func (c *Client) DeleteCampaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.delete(ctx, "/campaigns/"+seg(id), "Failed to delete campaign")
}

func (c *Client) CloneCampaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.post(ctx, "/campaigns/"+seg(id)+"/clone", nil, "Failed to clone campaign")
}

func (c *Client) PauseCampaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.post(ctx, "/campaigns/"+seg(id)+"/pause", nil, "Failed to pause campaign")
}

func (c *Client) ResumeCampaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.post(ctx, "/campaigns/"+seg(id)+"/resume", nil, "Failed to resume campaign")
}

func (c *Client) CampaignContent(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/campaigns/"+seg(id)+"/content", params, "Failed to fetch campaign content")
}

// CampaignAnalytics accepts an optional date range, e.g startDate/endDate.
func (c *Client) CampaignAnalytics(ctx context.Context, id string, dateRange url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/campaigns/"+seg(id)+"/analytics", dateRange, "Failed to fetch campaign analytics")
}

// TestCampaign asks the backend for a dry run of the campaign.
func (c *Client) TestCampaign(ctx context.Context, id string) (json.RawMessage, error) {
	return c.post(ctx, "/campaigns/"+seg(id)+"/test", nil, "Failed to test campaign")
}
