package apiclient

import (
	"context"
	"encoding/json"
)

func (c *Client) GenerateContent(ctx context.Context, params interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/generate", params, "Failed to generate content")
}

func (c *Client) Content(ctx context.Context, id string) (json.RawMessage, error) {
	return c.get(ctx, "/content/"+seg(id), nil, "Failed to fetch content")
}

func (c *Client) UpdateContent(ctx context.Context, id string, content interface{}) (json.RawMessage, error) {
	return c.put(ctx, "/content/"+seg(id), content, "Failed to update content")
}

func (c *Client) PublishContent(ctx context.Context, id string, publish interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/"+seg(id)+"/publish", publish, "Failed to publish content")
}

func (c *Client) ScheduleContent(ctx context.Context, id string, schedule interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/"+seg(id)+"/schedule", schedule, "Failed to schedule content")
}

func (c *Client) AnalyzeContent(ctx context.Context, id string) (json.RawMessage, error) {
	return c.post(ctx, "/content/"+seg(id)+"/analyze", nil, "Failed to analyze content")
}

func (c *Client) GenerateImages(ctx context.Context, id string, params interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/"+seg(id)+"/images", params, "Failed to generate images")
}

func (c *Client) OptimizeSEO(ctx context.Context, id string, params interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/"+seg(id)+"/seo", params, "Failed to optimize SEO")
}

func (c *Client) Templates(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/content/templates", nil, "Failed to fetch templates")
}

func (c *Client) CreateTemplate(ctx context.Context, template interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/content/templates", template, "Failed to create template")
}
