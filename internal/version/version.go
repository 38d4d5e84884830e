// Package version compares walletlink versions and looks up GitHub releases.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Default configuration constants
const (
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 30 * time.Second

	maxErrorBodySize    = 1024
	maxResponseBodySize = 64 * 1024
)

// Errors returned by this package
var (
	ErrGitHubAPIFailed  = errors.New("GitHub API request failed")
	ErrInvalidOwnerRepo = errors.New("owner/repo must be non-empty GitHub names")
)

var (
	ownerRepoPattern  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)
	commitHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)
)

// Release is the subset of a GitHub release walletlink reads.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Version returns the tag without its "v" prefix.
func (r Release) Version() string {
	return strings.TrimPrefix(r.TagName, "v")
}

// Client fetches releases from the GitHub API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("walletlink/dev (%s/%s)", runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

//nolint:gochecknoglobals // package-level convenience client
var defaultClient = NewClient()

// GetLatestRelease fetches the latest release with the default client.
func GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	return defaultClient.LatestRelease(ctx, owner, repo)
}

// LatestRelease fetches the latest published release of owner/repo.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	if !ownerRepoPattern.MatchString(owner) || !ownerRepoPattern.MatchString(repo) {
		return nil, fmt.Errorf("%w: %q/%q", ErrInvalidOwnerRepo, owner, repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // URL is built from the configured API root
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("%w: status %d: %s", ErrGitHubAPIFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &release, nil
}

// CompareVersions returns 1 if v1 > v2, -1 if v1 < v2 and 0 otherwise.
// Development builds ("dev", empty, or a commit hash) sort before every
// release. Only major.minor.patch is compared.
func CompareVersions(v1, v2 string) int {
	dev1, dev2 := isDevBuild(v1), isDevBuild(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	p1, p2 := parseVersion(v1), parseVersion(v2)
	for i := range 3 {
		if p1[i] != p2[i] {
			if p1[i] > p2[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// IsNewerVersion reports whether latest is newer than current.
func IsNewerVersion(current, latest string) bool {
	return CompareVersions(latest, current) > 0
}

// NormalizeVersion strips whitespace, "v" prefixes and any pre-release or
// build suffix.
func NormalizeVersion(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i != -1 {
		v = v[:i]
	}
	return v
}

// parseVersion returns major, minor and patch; missing parts are zero.
func parseVersion(v string) [3]int {
	var out [3]int
	for i, part := range strings.SplitN(NormalizeVersion(v), ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

func isDevBuild(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	return v == "" || v == "dev" || isCommitHash(v)
}

// isCommitHash matches 7-40 hex characters with at least one letter, so
// numeric versions like 2024010100 are not mistaken for a hash.
func isCommitHash(s string) bool {
	s = strings.TrimSuffix(s, "-dirty")
	return commitHashPattern.MatchString(s) && strings.ContainsAny(strings.ToLower(s), "abcdef")
}
