package serpapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/mudozzal/internal/source"
)

const defaultBaseURL = "https://serpapi.com"

// Config holds configuration for the SerpAPI image searcher.
type Config struct {
	APIKey  string
	BaseURL string
	Engine  string // google_images by default
	Results int    // results requested per query
	Timeout time.Duration
}

// Client implements source.ImageSearcher over the SerpAPI search endpoint.
type Client struct {
	client  *resty.Client
	apiKey  string
	engine  string
	results int
}

// NewClient creates a SerpAPI client.
// Parameters:
//   - cfg: API key, endpoint and result count.
//
// Returns:
//   - *Client: initialized searcher.
func NewClient(cfg *Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	engine := cfg.Engine
	if engine == "" {
		engine = "google_images"
	}
	results := cfg.Results
	if results <= 0 {
		results = 20
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		client:  client,
		apiKey:  cfg.APIKey,
		engine:  engine,
		results: results,
	}
}

// GetSourceID returns the provider identifier.
func (c *Client) GetSourceID() string {
	return "serpapi:" + c.engine
}

type imageResult struct {
	Original       string `json:"original"`
	Thumbnail      string `json:"thumbnail"`
	Title          string `json:"title"`
	Source         string `json:"source"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
}

type searchResponse struct {
	ImagesResults []imageResult `json:"images_results"`
	Error         string        `json:"error,omitempty"`
}

// Search runs one image search for keyword.
func (c *Client) Search(ctx context.Context, keyword string) ([]source.Candidate, error) {
	var resp searchResponse
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  c.engine,
			"q":       keyword,
			"api_key": c.apiKey,
			"ijn":     "0",
			"num":     strconv.Itoa(c.results),
		}).
		SetResult(&resp).
		SetError(&resp).
		Get("/search.json")
	if err != nil {
		return nil, fmt.Errorf("failed to call SerpAPI: %w", err)
	}

	if httpResp.StatusCode() != 200 {
		if resp.Error != "" {
			return nil, fmt.Errorf("SerpAPI error: HTTP %d: %s", httpResp.StatusCode(), resp.Error)
		}
		return nil, fmt.Errorf("SerpAPI error: HTTP %d", httpResp.StatusCode())
	}
	if resp.Error != "" && len(resp.ImagesResults) == 0 {
		// "Google hasn't returned any results" is reported as an error with status 200.
		if strings.Contains(strings.ToLower(resp.Error), "hasn't returned any results") {
			return []source.Candidate{}, nil
		}
		return nil, fmt.Errorf("SerpAPI error: %s", resp.Error)
	}

	candidates := make([]source.Candidate, 0, len(resp.ImagesResults))
	for _, r := range resp.ImagesResults {
		candidates = append(candidates, source.Candidate{
			URL:       r.Original,
			Thumbnail: r.Thumbnail,
			Title:     r.Title,
			Source:    r.Source,
			Width:     r.OriginalWidth,
			Height:    r.OriginalHeight,
		})
	}
	if len(candidates) > c.results {
		candidates = candidates[:c.results]
	}
	return candidates, nil
}
