package bitbucketserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
)

const pageLimit = 100

var (
	// ErrForbidden marks 401/403 responses.
	ErrForbidden = errors.New("access forbidden")
	// ErrNotFound marks 404 responses.
	ErrNotFound = errors.New("not found")
)

// client is a thin Bitbucket Server (Data Center) REST client. Collections
// are paged with start offsets and an isLastPage marker.
type client struct {
	baseURL    string
	rotator    *credential.Rotator
	clock      domain.Clock
	quotaKey   string
	httpClient *http.Client
}

func newClient(baseURL string, rotator *credential.Rotator, clock domain.Clock) *client {
	if clock == nil {
		clock = domain.SystemClock{}
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.Logger = nil

	return &client{
		baseURL:    baseURL,
		rotator:    rotator,
		clock:      clock,
		quotaKey:   baseURL,
		httpClient: retry.StandardClient(),
	}
}

// bbsProject represents a Bitbucket Server project.
type bbsProject struct {
	ID   int    `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// bbsRepository represents a repository inside a project.
type bbsRepository struct {
	ID   int    `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// bbsBranch represents a branch reference.
type bbsBranch struct {
	ID        string `json:"id"`
	DisplayID string `json:"displayId"`
}

// bbsCommit represents a commit; the committer timestamp is epoch millis.
type bbsCommit struct {
	ID                 string `json:"id"`
	CommitterTimestamp int64  `json:"committerTimestamp"`
}

// page is the envelope Bitbucket Server wraps every collection in.
type page[T any] struct {
	Values        []T  `json:"values"`
	Size          int  `json:"size"`
	IsLastPage    bool `json:"isLastPage"`
	NextPageStart int  `json:"nextPageStart"`
}

// getAll walks a paged collection to exhaustion.
func getAll[T any](ctx context.Context, c *client, path string) ([]T, error) {
	var all []T
	start := 0

	for {
		endpoint := fmt.Sprintf("%s?limit=%d&start=%d", path, pageLimit, start)
		body, err := c.doRequest(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		var result page[T]
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response for %s: %w", path, err)
		}
		all = append(all, result.Values...)

		if result.IsLastPage {
			break
		}
		start = result.NextPageStart
	}

	return all, nil
}

func (c *client) getProjects(ctx context.Context) ([]bbsProject, error) {
	return getAll[bbsProject](ctx, c, "/rest/api/1.0/projects")
}

func (c *client) getRepositories(ctx context.Context, projectKey string) ([]bbsRepository, error) {
	return getAll[bbsRepository](ctx, c,
		"/rest/api/1.0/projects/"+url.PathEscape(projectKey)+"/repos")
}

func (c *client) getBranches(ctx context.Context, projectKey, slug string) ([]bbsBranch, error) {
	return getAll[bbsBranch](ctx, c, fmt.Sprintf(
		"/rest/api/1.0/projects/%s/repos/%s/branches",
		url.PathEscape(projectKey), url.PathEscape(slug)))
}

// getFiles lists the file paths on the default branch.
func (c *client) getFiles(ctx context.Context, projectKey, slug string) ([]string, error) {
	return getAll[string](ctx, c, fmt.Sprintf(
		"/rest/api/1.0/projects/%s/repos/%s/files",
		url.PathEscape(projectKey), url.PathEscape(slug)))
}

// getLatestCommit returns the newest commit on the default branch, or nil
// for an empty repository.
func (c *client) getLatestCommit(ctx context.Context, projectKey, slug string) (*bbsCommit, error) {
	endpoint := fmt.Sprintf("/rest/api/1.0/projects/%s/repos/%s/commits?limit=1",
		url.PathEscape(projectKey), url.PathEscape(slug))

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		// an empty repository answers 404 on the commits resource
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result page[bbsCommit]
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse commits response: %w", err)
	}
	if len(result.Values) == 0 {
		return nil, nil
	}
	return &result.Values[0], nil
}

func (c *client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.rotator.AwaitQuota(ctx, c.quotaKey); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.rotator.Next())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observeRateHeaders(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w (status %d)", ErrForbidden, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// observeRateHeaders feeds Retry-After back to the rotator when the server
// throttles.
func (c *client) observeRateHeaders(headers http.Header) {
	retryAfter := headers.Get("Retry-After")
	if retryAfter == "" {
		return
	}
	seconds, err := strconv.Atoi(retryAfter)
	if err != nil || seconds <= 0 {
		return
	}
	c.rotator.Observe(c.quotaKey, 0, c.clock.Now().Add(time.Duration(seconds)*time.Second))
}
