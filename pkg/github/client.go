package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrRepoNotFound indicates the repository does not exist or is not visible.
var ErrRepoNotFound = errors.New("repository not found")

// ErrNoDownloadableBranch indicates none of the branch candidates yielded an archive.
var ErrNoDownloadableBranch = errors.New("no downloadable branch")

// Config contains settings for the GitHub client.
type Config struct {
	APIBase     string
	ArchiveBase string
	Token       string
	HTTPClient  *http.Client
}

// Client talks to the GitHub REST API and the archive download host.
type Client struct {
	apiBase     string
	archiveBase string
	token       string
	httpClient  *http.Client
	logger      zerolog.Logger
}

// Archive is a downloaded repository zip together with the branch it came from.
type Archive struct {
	Branch string
	Body   io.ReadCloser
}

// New constructs a GitHub client. The token is optional; it only raises rate limits.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.github.com"
	}
	if cfg.ArchiveBase == "" {
		cfg.ArchiveBase = "https://codeload.github.com"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		archiveBase: strings.TrimRight(cfg.ArchiveBase, "/"),
		token:       cfg.Token,
		httpClient:  cfg.HTTPClient,
		logger:      logger.With().Str("component", "github_client").Logger(),
	}
}

// ParseRepoURL extracts {owner, repo} from a GitHub repository URL.
func ParseRepoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("repository url is empty")
	}

	if strings.HasPrefix(raw, "git@") {
		raw = strings.Replace(strings.TrimPrefix(raw, "git@"), ":", "/", 1)
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository url: %w", err)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q has no owner/name", raw)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// BranchCandidates returns the ordered, deduplicated list of branches to try.
func BranchCandidates(defaultBranch string) []string {
	candidates := make([]string, 0, 3)
	seen := map[string]struct{}{}
	for _, branch := range []string{defaultBranch, "main", "master"} {
		branch = strings.TrimSpace(branch)
		if branch == "" {
			continue
		}
		if _, ok := seen[branch]; ok {
			continue
		}
		seen[branch] = struct{}{}
		candidates = append(candidates, branch)
	}

	return candidates
}

// DefaultBranch queries repository metadata for its default branch. A missing
// repository returns ErrRepoNotFound; other failures are reported as-is so
// the caller can fall back to the fixed candidate list.
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch repo metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrRepoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("repo metadata request returned %d", resp.StatusCode)
	}

	var payload struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode repo metadata: %w", err)
	}

	return payload.DefaultBranch, nil
}

// DownloadArchive fetches the zip archive for the first branch candidate that
// responds successfully. The caller owns the returned body.
func (c *Client) DownloadArchive(ctx context.Context, owner, repo string, branches []string) (Archive, error) {
	for _, branch := range branches {
		endpoint := fmt.Sprintf("%s/%s/%s/zip/refs/heads/%s", c.archiveBase, owner, repo, url.PathEscape(branch))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return Archive{}, err
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Warn().Err(err).Str("branch", branch).Msg("archive download failed")
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return Archive{Branch: branch, Body: resp.Body}, nil
		}

		resp.Body.Close()
		c.logger.Debug().Int("status", resp.StatusCode).Str("branch", branch).Msg("branch archive unavailable")
	}

	return Archive{}, ErrNoDownloadableBranch
}

// FetchReadme retrieves the repository README for the early summary shown
// while the pipeline is still running.
func (c *Client) FetchReadme(ctx context.Context, owner, repo string) (string, string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/readme", c.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetch readme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", ErrRepoNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("readme request returned %d", resp.StatusCode)
	}

	var payload struct {
		Name     string `json:"name"`
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", fmt.Errorf("decode readme: %w", err)
	}

	content := payload.Content
	if payload.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return "", "", fmt.Errorf("decode readme content: %w", err)
		}
		content = string(decoded)
	}

	return content, payload.Name, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
}
