// Package pypi provides access to the PyPI JSON API.
//
// The client serves the conversion pipeline's resolver contract: given a
// package name and a version constraint set it finds the best satisfying
// release and reports that release's direct runtime dependencies. Responses
// are cached (released versions are immutable on PyPI) and transient HTTP
// failures are retried with backoff.
package pypi

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pydeb/pydeb/pkg/cache"
	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/python"
)

// DefaultBaseURL is the public PyPI JSON API endpoint.
const DefaultBaseURL = "https://pypi.org/pypi"

// Client provides access to the PyPI package registry API.
// It handles HTTP requests with caching and automatic retries.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	// BaseURL is the JSON API root. Override for tests or mirrors.
	BaseURL string

	http  *http.Client
	cache cache.Cache
}

// NewClient creates a PyPI client with the given cache backend.
// Pass cache.NewNullCache() to disable caching.
func NewClient(backend cache.Cache) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   backend,
	}
}

// Index holds the release listing for a package.
type Index struct {
	Name     string   `json:"name"`     // normalized package name
	Latest   string   `json:"latest"`   // latest release version
	Versions []string `json:"versions"` // all released versions
}

// Release holds metadata for one released version of a package.
type Release struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Summary      string   `json:"summary"`
	Author       string   `json:"author"`
	AuthorEmail  string   `json:"author_email"`
	Maintainer   string   `json:"maintainer"`
	HomePage     string   `json:"home_page"`
	License      string   `json:"license"`
	RequiresDist []string `json:"requires_dist"`
}

// FetchIndex retrieves the release listing for a package.
//
// If refresh is true, the cache is bypassed and a fresh API call is made.
// Returns a NOT_FOUND error if the package does not exist on the index.
func (c *Client) FetchIndex(ctx context.Context, pkg string, refresh bool) (*Index, error) {
	pkg = python.NormalizeName(pkg)
	key := "pypi:index:" + pkg

	var idx Index
	err := c.cached(ctx, key, cache.TTLIndex, refresh, &idx, func() error {
		var data apiResponse
		if err := c.get(ctx, fmt.Sprintf("%s/%s/json", c.BaseURL, pkg), &data); err != nil {
			return err
		}
		idx = Index{Name: python.NormalizeName(data.Info.Name), Latest: data.Info.Version}
		for v := range data.Releases {
			idx.Versions = append(idx.Versions, v)
		}
		return nil
	})
	if err != nil {
		return nil, c.classify(err, pkg)
	}
	return &idx, nil
}

// FetchRelease retrieves metadata for one released version of a package.
func (c *Client) FetchRelease(ctx context.Context, pkg, version string, refresh bool) (*Release, error) {
	pkg = python.NormalizeName(pkg)
	key := "pypi:release:" + pkg + ":" + version

	var rel Release
	err := c.cached(ctx, key, cache.TTLRelease, refresh, &rel, func() error {
		var data apiResponse
		if err := c.get(ctx, fmt.Sprintf("%s/%s/%s/json", c.BaseURL, pkg, version), &data); err != nil {
			return err
		}
		rel = Release{
			Name:         python.NormalizeName(data.Info.Name),
			Version:      data.Info.Version,
			Summary:      data.Info.Summary,
			Author:       data.Info.Author,
			AuthorEmail:  data.Info.AuthorEmail,
			Maintainer:   data.Info.Maintainer,
			HomePage:     data.Info.HomePage,
			License:      data.Info.License,
			RequiresDist: data.Info.RequiresDist,
		}
		return nil
	})
	if err != nil {
		return nil, c.classify(err, pkg)
	}
	return &rel, nil
}

// ResolveDirect picks the best release of pkg satisfying the constraints and
// returns its version together with the release's direct runtime
// dependencies. Extras, dev and test requirements are skipped.
//
// This implements the conversion pipeline's resolver collaborator.
func (c *Client) ResolveDirect(ctx context.Context, pkg string, constraints python.Constraints, refresh bool) (python.Version, []python.Requirement, error) {
	idx, err := c.FetchIndex(ctx, pkg, refresh)
	if err != nil {
		return python.Version{}, nil, err
	}

	best := constraints.BestMatch(idx.Versions)
	if best.IsZero() {
		return python.Version{}, nil, errors.New(errors.ErrCodeResolution,
			"no release of %s satisfies %s (available: %d releases)",
			idx.Name, constraints, len(idx.Versions))
	}

	rel, err := c.FetchRelease(ctx, idx.Name, best.String(), refresh)
	if err != nil {
		return python.Version{}, nil, err
	}

	var deps []python.Requirement
	seen := make(map[string]bool)
	for _, raw := range rel.RequiresDist {
		req, err := python.ParseRequirement(raw)
		if err != nil || req.SkipsRuntime() {
			continue
		}
		if !seen[req.Name] {
			seen[req.Name] = true
			deps = append(deps, req)
		}
	}

	return best, deps, nil
}

// cached retrieves a JSON value from cache or executes fetch and caches it.
func (c *Client) cached(ctx context.Context, key string, ttl time.Duration, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, hit, err := c.cache.Get(ctx, key); err == nil && hit {
			if json.Unmarshal(data, v) == nil {
				return nil
			}
		}
	}
	if err := cache.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, ttl)
	}
	return nil
}

// get performs an HTTP GET and JSON-decodes the response into v.
func (c *Client) get(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(v)
	case resp.StatusCode == http.StatusNotFound:
		return cache.ErrNotFound
	case resp.StatusCode >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode))
	default:
		return fmt.Errorf("%w: status %d", cache.ErrNetwork, resp.StatusCode)
	}
}

// classify maps transport sentinels onto the pipeline's structured errors.
func (c *Client) classify(err error, pkg string) error {
	switch {
	case errors.Is(err, errors.ErrCodeResolution):
		return err
	case stderrors.Is(err, cache.ErrNotFound):
		return errors.Wrap(errors.ErrCodeNotFound, err, "package %s not found on PyPI", pkg)
	default:
		return errors.Wrap(errors.ErrCodeNetwork, err, "PyPI lookup for %s failed", pkg)
	}
}

type apiResponse struct {
	Info     apiInfo                   `json:"info"`
	Releases map[string]json.RawMessage `json:"releases"`
}

type apiInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Summary      string   `json:"summary"`
	License      string   `json:"license"`
	Author       string   `json:"author"`
	AuthorEmail  string   `json:"author_email"`
	Maintainer   string   `json:"maintainer"`
	RequiresDist []string `json:"requires_dist"`
	HomePage     string   `json:"home_page"`
}
