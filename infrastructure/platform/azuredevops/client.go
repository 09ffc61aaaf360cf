package azuredevops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
)

const apiVersion = "7.0"

var (
	// ErrForbidden marks 401/403 responses so probes can report "forbidden"
	// distinctly from "absent".
	ErrForbidden = errors.New("access forbidden")
	// ErrNotFound marks 404 responses; most probes treat it as an empty
	// backend rather than a failure.
	ErrNotFound = errors.New("not found")
)

// client is a thin Azure DevOps REST client. Every request consults the
// credential rotator for quota headroom and a token, and feeds rate-limit
// headers back to it.
type client struct {
	baseURL    string
	org        string
	rotator    *credential.Rotator
	clock      domain.Clock
	httpClient *http.Client
}

func newClient(organization, baseURL string, rotator *credential.Rotator, clock domain.Clock) *client {
	base := strings.TrimSuffix(baseURL, "/")
	if base == "" {
		base = "https://dev.azure.com"
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = 3
	retry.Logger = nil

	return &client{
		baseURL:    base + "/" + organization,
		org:        organization,
		rotator:    rotator,
		clock:      clock,
		httpClient: retry.StandardClient(),
	}
}

// project represents an Azure DevOps project.
type project struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// gitRepository represents an Azure DevOps Git repository.
type gitRepository struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	DefaultBranch string `json:"defaultBranch"`
}

// gitRef represents a branch or tag reference.
type gitRef struct {
	Name     string `json:"name"`
	ObjectID string `json:"objectId"`
}

// gitItem represents a file or folder in a Git repository.
type gitItem struct {
	Path            string `json:"path"`
	GitObjectType   string `json:"gitObjectType"`
	URL             string `json:"url"`
	ContentMetadata struct {
		FileName string `json:"fileName"`
	} `json:"contentMetadata"`
	Size int64 `json:"size"`
}

// gitCommit represents a commit; only the committer date matters here.
type gitCommit struct {
	CommitID  string `json:"commitId"`
	Committer struct {
		Date time.Time `json:"date"`
	} `json:"committer"`
}

// tfvcItem represents a file or folder under version control in TFVC.
type tfvcItem struct {
	Path     string `json:"path"`
	IsFolder bool   `json:"isFolder"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// tfvcChangeset represents a TFVC changeset.
type tfvcChangeset struct {
	ChangesetID int       `json:"changesetId"`
	CreatedDate time.Time `json:"createdDate"`
}

// feed represents a package feed.
type feed struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// wiki represents a project wiki.
type wiki struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// teamRef represents a project team.
type teamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// teamMember represents one identity inside a team.
type teamMember struct {
	Identity struct {
		DisplayName string `json:"displayName"`
		UniqueName  string `json:"uniqueName"`
	} `json:"identity"`
}

// valueResult is the envelope Azure DevOps wraps every collection in.
type valueResult[T any] struct {
	Value []T `json:"value"`
	Count int `json:"count"`
}

// getProjects returns all projects in the organization, following
// continuation tokens.
func (c *client) getProjects(ctx context.Context) ([]project, error) {
	var all []project
	continuationToken := ""

	for {
		endpoint := "/_apis/projects?api-version=" + apiVersion
		if continuationToken != "" {
			endpoint += "&continuationToken=" + url.QueryEscape(continuationToken)
		}

		resp, headers, err := c.doRequestWithHeaders(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}

		var result valueResult[project]
		if err := json.Unmarshal(resp, &result); err != nil {
			return nil, fmt.Errorf("failed to parse projects response: %w", err)
		}
		all = append(all, result.Value...)

		continuationToken = headers.Get("x-ms-continuationtoken")
		if continuationToken == "" {
			break
		}
	}

	return all, nil
}

// getRepositories returns all Git repositories in a project.
func (c *client) getRepositories(ctx context.Context, projectName string) ([]gitRepository, error) {
	endpoint := fmt.Sprintf("/%s/_apis/git/repositories?api-version=%s",
		url.PathEscape(projectName), apiVersion)

	var result valueResult[gitRepository]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getBranchRefs returns the heads references of a repository.
func (c *client) getBranchRefs(ctx context.Context, projectName, repoID string) ([]gitRef, error) {
	endpoint := fmt.Sprintf("/%s/_apis/git/repositories/%s/refs?filter=heads&api-version=%s",
		url.PathEscape(projectName), repoID, apiVersion)

	var result valueResult[gitRef]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getRepositoryItems returns the full recursive item listing of a
// repository, with content metadata so file sizes come along.
func (c *client) getRepositoryItems(ctx context.Context, projectName, repoID string) ([]gitItem, error) {
	endpoint := fmt.Sprintf(
		"/%s/_apis/git/repositories/%s/items?recursionLevel=Full&includeContentMetadata=true&api-version=%s",
		url.PathEscape(projectName), repoID, apiVersion)

	var result valueResult[gitItem]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getLatestCommit returns the most recent commit of a repository, or nil
// when the repository has none.
func (c *client) getLatestCommit(ctx context.Context, projectName, repoID string) (*gitCommit, error) {
	endpoint := fmt.Sprintf(
		"/%s/_apis/git/repositories/%s/commits?searchCriteria.$top=1&api-version=%s",
		url.PathEscape(projectName), repoID, apiVersion)

	var result valueResult[gitCommit]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return &result.Value[0], nil
}

// getTfvcItems returns the full recursive TFVC item listing of a project.
func (c *client) getTfvcItems(ctx context.Context, projectName string) ([]tfvcItem, error) {
	endpoint := fmt.Sprintf(
		"/%s/_apis/tfvc/items?scopePath=%s&recursionLevel=Full&api-version=%s",
		url.PathEscape(projectName), url.QueryEscape("$/"+projectName), apiVersion)

	var result valueResult[tfvcItem]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getLatestChangeset returns the most recent TFVC changeset of a project,
// or nil when there are none.
func (c *client) getLatestChangeset(ctx context.Context, projectName string) (*tfvcChangeset, error) {
	endpoint := fmt.Sprintf("/%s/_apis/tfvc/changesets?$top=1&api-version=%s",
		url.PathEscape(projectName), apiVersion)

	var result valueResult[tfvcChangeset]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return &result.Value[0], nil
}

// getFeeds returns the package feeds scoped to a project.
func (c *client) getFeeds(ctx context.Context, projectName string) ([]feed, error) {
	endpoint := fmt.Sprintf("/%s/_apis/packaging/feeds?api-version=%s",
		url.PathEscape(projectName), apiVersion)

	var result valueResult[feed]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getFeedPackageCount returns the number of packages in a feed.
func (c *client) getFeedPackageCount(ctx context.Context, projectName, feedID string) (int, error) {
	endpoint := fmt.Sprintf("/%s/_apis/packaging/feeds/%s/packages?api-version=%s",
		url.PathEscape(projectName), feedID, apiVersion)

	var result valueResult[json.RawMessage]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return 0, err
	}
	return len(result.Value), nil
}

// getWikis returns the wikis of a project.
func (c *client) getWikis(ctx context.Context, projectName string) ([]wiki, error) {
	endpoint := fmt.Sprintf("/%s/_apis/wiki/wikis?api-version=%s",
		url.PathEscape(projectName), apiVersion)

	var result valueResult[wiki]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getAttachedWorkItemCount returns how many work items in the project carry
// file attachments, the signal behind the generic file-storage candidate.
func (c *client) getAttachedWorkItemCount(ctx context.Context, projectName string) (int, error) {
	endpoint := fmt.Sprintf("/%s/_apis/wit/wiql?api-version=%s",
		url.PathEscape(projectName), apiVersion)
	body := map[string]string{
		"query": "Select [System.Id] From WorkItems " +
			"Where [System.TeamProject] = @project And [System.AttachedFileCount] > 0",
	}

	resp, err := c.doRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return 0, err
	}

	var result struct {
		WorkItems []struct {
			ID int `json:"id"`
		} `json:"workItems"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, fmt.Errorf("failed to parse wiql response: %w", err)
	}
	return len(result.WorkItems), nil
}

// getTeams returns the teams of a project.
func (c *client) getTeams(ctx context.Context, projectID string) ([]teamRef, error) {
	endpoint := fmt.Sprintf("/_apis/projects/%s/teams?api-version=%s",
		url.PathEscape(projectID), apiVersion)

	var result valueResult[teamRef]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// getTeamMembers returns the member identities of a team.
func (c *client) getTeamMembers(ctx context.Context, projectID, teamID string) ([]teamMember, error) {
	endpoint := fmt.Sprintf("/_apis/projects/%s/teams/%s/members?api-version=%s",
		url.PathEscape(projectID), teamID, apiVersion)

	var result valueResult[teamMember]
	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

// headContentLength probes the byte length of one item URL without
// downloading the body.
func (c *client) headContentLength(ctx context.Context, itemURL string) (int64, error) {
	if err := c.rotator.AwaitQuota(ctx, c.org); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, itemURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observeRateHeaders(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("HEAD error (status %d)", resp.StatusCode)
	}
	return resp.ContentLength, nil
}

func (c *client) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *client) doRequest(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	resp, _, err := c.doRequestWithHeaders(ctx, method, endpoint, body)
	return resp, err
}

func (c *client) doRequestWithHeaders(
	ctx context.Context, method, endpoint string, body any,
) ([]byte, http.Header, error) {
	if err := c.rotator.AwaitQuota(ctx, c.org); err != nil {
		return nil, nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	c.observeRateHeaders(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, nil, fmt.Errorf("%w (status %d)", ErrForbidden, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, resp.Header, nil
}

// authorize sets Basic auth with the rotator's next PAT.
func (c *client) authorize(req *http.Request) {
	auth := base64.StdEncoding.EncodeToString([]byte(":" + c.rotator.Next()))
	req.Header.Set("Authorization", "Basic "+auth)
}

// observeRateHeaders feeds remaining-quota signals back to the rotator so
// AwaitQuota can hold the next request until the reset instant.
func (c *client) observeRateHeaders(headers http.Header) {
	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
			c.rotator.Observe(c.org, 0, c.clock.Now().Add(time.Duration(seconds)*time.Second))
			return
		}
	}

	remainingHeader := headers.Get("X-RateLimit-Remaining")
	resetHeader := headers.Get("X-RateLimit-Reset")
	if remainingHeader == "" || resetHeader == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return
	}
	resetUnix, err := strconv.ParseInt(resetHeader, 10, 64)
	if err != nil {
		return
	}
	c.rotator.Observe(c.org, remaining, time.Unix(resetUnix, 0))
}
