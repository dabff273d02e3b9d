package screenshot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Config identifies the crawling service used for live-site captures.
type Config struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// CapturedPage is one rendered page returned by the crawler.
type CapturedPage struct {
	PageURL  string
	PageName string
	PNG      []byte
}

// Client captures screenshots of live sites through a third-party crawler.
type Client struct {
	cfg    Config
	logger zerolog.Logger
}

// New constructs a screenshot client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("screenshot service url and api key must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		cfg:    cfg,
		logger: logger.With().Str("component", "screenshot_client").Logger(),
	}, nil
}

type captureRequest struct {
	URL      string `json:"url"`
	FullPage bool   `json:"full_page"`
}

type captureResponse struct {
	Screenshots []struct {
		PageURL  string `json:"page_url"`
		PageName string `json:"page_name"`
		Data     string `json:"data"`
	} `json:"screenshots"`
}

// Capture renders the site and returns the captured pages as PNG bytes.
func (c *Client) Capture(ctx context.Context, siteURL string, fullPage bool) ([]CapturedPage, error) {
	body, err := json.Marshal(captureRequest{URL: siteURL, FullPage: fullPage})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/screenshot", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("capture request returned %d", resp.StatusCode)
	}

	var payload captureResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode capture response: %w", err)
	}

	pages := make([]CapturedPage, 0, len(payload.Screenshots))
	for _, shot := range payload.Screenshots {
		png, err := base64.StdEncoding.DecodeString(shot.Data)
		if err != nil {
			c.logger.Warn().Err(err).Str("page", shot.PageURL).Msg("skipping undecodable screenshot")
			continue
		}
		pages = append(pages, CapturedPage{
			PageURL:  shot.PageURL,
			PageName: shot.PageName,
			PNG:      png,
		})
	}

	return pages, nil
}
