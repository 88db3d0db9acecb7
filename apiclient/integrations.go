package apiclient

import (
	"context"
	"encoding/json"
	"net/url"
)

// RSS

func (c *Client) ParseRSS(ctx context.Context, feedURL string) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/rss/parse", map[string]string{"url": feedURL}, "Failed to parse RSS feed")
}

func (c *Client) RSSFeeds(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/rss", nil, "Failed to fetch RSS feeds")
}

func (c *Client) AddRSSFeed(ctx context.Context, feed interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/rss", feed, "Failed to add RSS feed")
}

// YouTube

func (c *Client) YouTubeVideo(ctx context.Context, videoID string) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/youtube/video/"+seg(videoID), nil, "Failed to fetch YouTube video data")
}

func (c *Client) SearchYouTube(ctx context.Context, query string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/youtube/search", withQuery(query, params), "Failed to search YouTube videos")
}

// Amazon

func (c *Client) AmazonProduct(ctx context.Context, productID string) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/amazon/product/"+seg(productID), nil, "Failed to fetch Amazon product data")
}

func (c *Client) SearchAmazon(ctx context.Context, query string, params url.Values) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/amazon/search", withQuery(query, params), "Failed to search Amazon products")
}

// WordPress

func (c *Client) WordPressSites(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/wordpress/sites", nil, "Failed to fetch WordPress sites")
}

func (c *Client) AddWordPressSite(ctx context.Context, site interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/wordpress/sites", site, "Failed to add WordPress site")
}

func (c *Client) TestWordPressSite(ctx context.Context, siteID string) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/wordpress/sites/"+seg(siteID)+"/test", nil, "Failed to test WordPress connection")
}

func (c *Client) PublishToWordPress(ctx context.Context, siteID string, post interface{}) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/wordpress/sites/"+seg(siteID)+"/publish", post, "Failed to publish to WordPress")
}

// AI

// GenerateWithAI sends prompt merged with any extra generation params.
func (c *Client) GenerateWithAI(ctx context.Context, prompt string, params map[string]interface{}) (json.RawMessage, error) {
	body := make(map[string]interface{}, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	body["prompt"] = prompt
	return c.post(ctx, "/integrations/ai/generate", body, "Failed to generate with AI")
}

func (c *Client) AnalyzeWithAI(ctx context.Context, content, analysisType string) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/ai/analyze", map[string]string{
		"content":      content,
		"analysisType": analysisType,
	}, "Failed to analyze with AI")
}

// SEO

func (c *Client) KeywordData(ctx context.Context, keyword string) (json.RawMessage, error) {
	return c.get(ctx, "/integrations/seo/keyword/"+seg(keyword), nil, "Failed to fetch keyword data")
}

func (c *Client) AnalyzeSEO(ctx context.Context, content string) (json.RawMessage, error) {
	return c.post(ctx, "/integrations/seo/analyze", map[string]string{"content": content}, "Failed to analyze SEO")
}

func withQuery(query string, params url.Values) url.Values {
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	q.Set("query", query)
	return q
}
