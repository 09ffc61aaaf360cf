// Package github implements the inventory platform for GitHub. GitHub has
// no project grouping above repositories, so every repository becomes its
// own synthetic project and the ProbeSet holds the single Git candidate.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gh "github.com/google/go-github/v66/github"
	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
	"github.com/rios0rios0/repoinventory/infrastructure/platform"
)

const (
	platformName = "github"
	perPage      = 100
	// quotaTarget keys the rotator's rate tracking; all GitHub requests
	// share one budget per token.
	quotaTarget = "api.github.com"
)

// rotatorTransport injects the rotator's next token into every request and
// feeds the rate-limit headers back so AwaitQuota can hold requests near
// exhaustion. go-github binds a client to a single token; rotating at the
// transport keeps the whole pool in play.
type rotatorTransport struct {
	rotator *credential.Rotator
	base    http.RoundTripper
}

func (t *rotatorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.rotator.AwaitQuota(req.Context(), quotaTarget); err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.rotator.Next())

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	remaining, errRemaining := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	resetUnix, errReset := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if errRemaining == nil && errReset == nil {
		t.rotator.Observe(quotaTarget, remaining, time.Unix(resetUnix, 0))
	}
	return resp, nil
}

// Platform implements domain.Platform for GitHub organizations and user
// accounts.
type Platform struct {
	client     *gh.Client
	heuristics domain.Heuristics
	estimator  *domain.Estimator
}

// New creates a GitHub platform. BaseURL overrides the API endpoint for
// GitHub Enterprise instances and tests.
func New(deps platform.Deps) domain.Platform {
	httpClient := &http.Client{
		Transport: &rotatorTransport{
			rotator: deps.Rotator,
			base:    http.DefaultTransport,
		},
	}

	client := gh.NewClient(httpClient)
	if deps.BaseURL != "" {
		enterprise, err := client.WithEnterpriseURLs(deps.BaseURL, deps.BaseURL)
		if err != nil {
			logger.Warnf("Invalid GitHub base URL %q, using the default: %v", deps.BaseURL, err)
		} else {
			client = enterprise
		}
	}

	return &Platform{
		client:     client,
		heuristics: deps.Heuristics,
		estimator:  domain.NewEstimator(deps.Heuristics),
	}
}

func (p *Platform) Name() string {
	return platformName
}

// ListProjects maps every repository of the organization to a synthetic
// project. Falls back to user-account listing when the name is not an
// organization.
func (p *Platform) ListProjects(ctx context.Context, org string) ([]domain.Project, error) {
	var projects []domain.Project
	opts := &gh.RepositoryListByOrgOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
	}

	for {
		repos, resp, err := p.client.Repositories.ListByOrg(ctx, org, opts)
		if err != nil {
			return p.listUserProjects(ctx, org)
		}
		for _, r := range repos {
			projects = append(projects, domain.Project{
				Organization: org,
				Name:         r.GetName(),
				ID:           strconv.FormatInt(r.GetID(), 10),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return projects, nil
}

func (p *Platform) listUserProjects(ctx context.Context, user string) ([]domain.Project, error) {
	var projects []domain.Project
	opts := &gh.RepositoryListByUserOptions{
		ListOptions: gh.ListOptions{PerPage: perPage},
		Type:        "owner",
	}

	for {
		repos, resp, err := p.client.Repositories.ListByUser(ctx, user, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories for %q: %w", user, err)
		}
		for _, r := range repos {
			projects = append(projects, domain.Project{
				Organization: user,
				Name:         r.GetName(),
				ID:           strconv.FormatInt(r.GetID(), 10),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return projects, nil
}

// ProbeBackends checks the single repository behind the synthetic project.
// The reported Size is authoritative (GitHub reports kilobytes).
func (p *Platform) ProbeBackends(ctx context.Context, project domain.Project) domain.ProbeSet {
	result := domain.BackendProbeResult{
		Kind:         domain.ModernVCS,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	repo, resp, err := p.client.Repositories.Get(ctx, project.Organization, project.Name)
	if err != nil {
		result.Err = err
		result.Forbidden = resp != nil &&
			(resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden)
		return domain.ProbeSet{domain.ModernVCS: result}
	}

	result.RepoCount = 1
	sample := domain.RepoSample{
		ID:         strconv.FormatInt(repo.GetID(), 10),
		Name:       repo.GetName(),
		FileCount:  domain.UnknownMetric(),
		SizeBytes:  domain.UnknownMetric(),
		LastCommit: domain.UnknownTime(),
	}
	if repo.GetSize() > 0 {
		sizeBytes := int64(repo.GetSize()) * 1024
		sample.SizeBytes = domain.KnownMetric(sizeBytes)
		sample.HasContent = true
		result.TotalSize = domain.KnownMetric(sizeBytes)
	} else {
		result.TotalSize = domain.EmptyMetric()
	}
	if pushed := repo.GetPushedAt(); !pushed.IsZero() {
		sample.LastCommit = domain.KnownTime(pushed.Time)
		result.LastActivity = sample.LastCommit
	}

	result.HasContent = sample.HasContent
	result.Samples = []domain.RepoSample{sample}
	return domain.ProbeSet{domain.ModernVCS: result}
}

// CollectRecords measures the one repository of the synthetic project.
func (p *Platform) CollectRecords(
	ctx context.Context,
	project domain.Project,
	kind domain.BackendKind,
	probes domain.ProbeSet,
) ([]domain.RepositoryRecord, error) {
	record := domain.RepositoryRecord{
		Organization:    project.Organization,
		Project:         project.Name,
		Kind:            kind,
		RepoName:        project.Name,
		BranchCount:     domain.UnknownMetric(),
		SizeBytes:       domain.UnknownMetric(),
		SizeTier:        domain.TierUnknown,
		FileCount:       domain.UnknownMetric(),
		LargestFileSize: domain.UnknownMetric(),
		LastModified:    domain.UnknownTime(),
	}
	if kind != domain.ModernVCS {
		return []domain.RepositoryRecord{record}, nil
	}

	repo, _, err := p.client.Repositories.Get(ctx, project.Organization, project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	estimate := p.estimator.Estimate(domain.SizeInput{
		Authoritative: repoSize(repo),
	})
	record.SizeBytes = estimate.Bytes
	record.SizeTier = estimate.Tier

	record.BranchCount = p.countBranches(ctx, project)

	if branch := repo.GetDefaultBranch(); branch != "" {
		record.FileCount, record.LargestFileSize = p.measureTree(ctx, project, branch)
	}

	if pushed := repo.GetPushedAt(); !pushed.IsZero() {
		record.LastModified = domain.KnownTime(pushed.Time)
	}
	return []domain.RepositoryRecord{record}, nil
}

func (p *Platform) countBranches(ctx context.Context, project domain.Project) domain.Metric {
	count := int64(0)
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: perPage}}

	for {
		branches, resp, err := p.client.Repositories.ListBranches(
			ctx, project.Organization, project.Name, opts)
		if err != nil {
			logger.Debugf("Branch listing failed for %s/%s: %v",
				project.Organization, project.Name, err)
			return domain.UnknownMetric()
		}
		count += int64(len(branches))
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return domain.KnownMetric(count)
}

// measureTree counts blobs on the default branch and tracks the largest.
func (p *Platform) measureTree(
	ctx context.Context, project domain.Project, branch string,
) (domain.Metric, domain.Metric) {
	tree, _, err := p.client.Git.GetTree(ctx, project.Organization, project.Name, branch, true)
	if err != nil {
		logger.Debugf("Tree listing failed for %s/%s: %v", project.Organization, project.Name, err)
		return domain.UnknownMetric(), domain.UnknownMetric()
	}

	var files, largest int64
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		files++
		if size := int64(entry.GetSize()); size > largest {
			largest = size
		}
	}

	largestMetric := domain.UnknownMetric()
	if files > 0 {
		largestMetric = domain.KnownMetric(largest)
	}
	return domain.KnownMetric(files), largestMetric
}

func repoSize(repo *gh.Repository) domain.Metric {
	if repo.GetSize() > 0 {
		return domain.KnownMetric(int64(repo.GetSize()) * 1024)
	}
	return domain.UnknownMetric()
}
