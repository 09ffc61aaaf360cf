// Package bitbucketserver implements the inventory platform for Bitbucket
// Server (Data Center). The only backend candidate is Git, so probing
// populates a single-kind ProbeSet and classification is effectively
// presence detection.
package bitbucketserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/platform"
)

// Platform implements domain.Platform for a Bitbucket Server instance. The
// organization argument names the instance in the output; project discovery
// always covers the whole server.
type Platform struct {
	client     *client
	heuristics domain.Heuristics
	estimator  *domain.Estimator
}

// New creates a Bitbucket Server platform.
func New(deps platform.Deps) domain.Platform {
	return &Platform{
		client:     newClient(deps.BaseURL, deps.Rotator, deps.Clock),
		heuristics: deps.Heuristics,
		estimator:  domain.NewEstimator(deps.Heuristics),
	}
}

func (p *Platform) Name() string {
	return "bitbucketserver"
}

// ListProjects enumerates every project on the server.
func (p *Platform) ListProjects(ctx context.Context, org string) ([]domain.Project, error) {
	projects, err := p.client.getProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	result := make([]domain.Project, 0, len(projects))
	for _, proj := range projects {
		result = append(result, domain.Project{
			Organization: org,
			Name:         proj.Name,
			Key:          proj.Key,
		})
	}
	return result, nil
}

// ProbeBackends samples the project's repositories for content signals.
// Bitbucket Server has no legacy, feed, or wiki backend, so the set holds
// the single Git candidate.
func (p *Platform) ProbeBackends(ctx context.Context, project domain.Project) domain.ProbeSet {
	result := domain.BackendProbeResult{
		Kind:         domain.ModernVCS,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	repos, err := p.client.getRepositories(ctx, project.Key)
	if err != nil {
		result.Err = err
		result.Forbidden = isForbidden(err)
		return domain.ProbeSet{domain.ModernVCS: result}
	}
	result.RepoCount = len(repos)
	if len(repos) == 0 {
		result.ItemCount = domain.EmptyMetric()
		result.TotalSize = domain.EmptyMetric()
		return domain.ProbeSet{domain.ModernVCS: result}
	}

	sampleLimit := p.heuristics.ModernRepoSampleLimit
	if sampleLimit > len(repos) {
		sampleLimit = len(repos)
	}

	var totalFiles int64
	filesKnown := false
	for _, repo := range repos[:sampleLimit] {
		sample := p.sampleRepository(ctx, project, repo)
		result.Samples = append(result.Samples, sample)

		if sample.HasContent {
			result.HasContent = true
		}
		if files, ok := sample.FileCount.Value(); ok {
			totalFiles += files
			filesKnown = true
		}
		if sample.LastCommit.Known() &&
			(!result.LastActivity.Known() || sample.LastCommit.After(result.LastActivity)) {
			result.LastActivity = sample.LastCommit
		}
	}
	if filesKnown {
		result.ItemCount = domain.KnownMetric(totalFiles)
	}
	return domain.ProbeSet{domain.ModernVCS: result}
}

func (p *Platform) sampleRepository(
	ctx context.Context, project domain.Project, repo bbsRepository,
) domain.RepoSample {
	sample := domain.RepoSample{
		ID:         repo.Slug,
		Name:       repo.Name,
		FileCount:  domain.UnknownMetric(),
		SizeBytes:  domain.UnknownMetric(),
		LastCommit: domain.UnknownTime(),
	}

	files, err := p.client.getFiles(ctx, project.Key, repo.Slug)
	if err != nil {
		logger.Debugf("File listing failed for %s/%s: %v", project.Key, repo.Slug, err)
	} else {
		sample.FileCount = domain.KnownMetric(int64(len(files)))
		sample.HasContent = len(files) > 0
	}

	commit, err := p.client.getLatestCommit(ctx, project.Key, repo.Slug)
	switch {
	case err != nil:
		logger.Debugf("Latest commit lookup failed for %s/%s: %v", project.Key, repo.Slug, err)
	case commit != nil:
		sample.HasContent = true
		sample.LastCommit = domain.KnownTime(time.UnixMilli(commit.CommitterTimestamp))
	}
	return sample
}

// CollectRecords produces one row per repository. The files API carries no
// byte sizes, so sizes come from the per-file projection.
func (p *Platform) CollectRecords(
	ctx context.Context,
	project domain.Project,
	kind domain.BackendKind,
	_ domain.ProbeSet,
) ([]domain.RepositoryRecord, error) {
	if kind != domain.ModernVCS {
		// empty projects still get their fallback row
		return []domain.RepositoryRecord{{
			Organization:    project.Organization,
			Project:         project.Name,
			Kind:            kind,
			RepoName:        project.Key,
			BranchCount:     domain.UnknownMetric(),
			SizeBytes:       domain.UnknownMetric(),
			SizeTier:        domain.TierUnknown,
			FileCount:       domain.UnknownMetric(),
			LargestFileSize: domain.UnknownMetric(),
			LastModified:    domain.UnknownTime(),
		}}, nil
	}

	repos, err := p.client.getRepositories(ctx, project.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	records := make([]domain.RepositoryRecord, 0, len(repos))
	for _, repo := range repos {
		records = append(records, p.measureRepository(ctx, project, repo))
	}
	return records, nil
}

func (p *Platform) measureRepository(
	ctx context.Context, project domain.Project, repo bbsRepository,
) domain.RepositoryRecord {
	record := domain.RepositoryRecord{
		Organization:    project.Organization,
		Project:         project.Name,
		Kind:            domain.ModernVCS,
		RepoName:        repo.Name,
		BranchCount:     domain.UnknownMetric(),
		SizeBytes:       domain.UnknownMetric(),
		SizeTier:        domain.TierUnknown,
		FileCount:       domain.UnknownMetric(),
		LargestFileSize: domain.UnknownMetric(),
		LastModified:    domain.UnknownTime(),
	}

	branches, err := p.client.getBranches(ctx, project.Key, repo.Slug)
	if err != nil {
		logger.Debugf("Branch listing failed for %s/%s: %v", project.Key, repo.Slug, err)
	} else {
		record.BranchCount = domain.KnownMetric(int64(len(branches)))
	}

	files, err := p.client.getFiles(ctx, project.Key, repo.Slug)
	if err != nil {
		logger.Warnf("File listing failed for %s/%s: %v", project.Key, repo.Slug, err)
		record.Err = err
		return record
	}
	record.FileCount = domain.KnownMetric(int64(len(files)))

	estimate := p.estimator.Estimate(domain.SizeInput{
		ItemCount:    len(files),
		BytesPerItem: p.heuristics.FallbackBytesPerFile,
	})
	record.SizeBytes = estimate.Bytes
	record.SizeTier = estimate.Tier

	commit, err := p.client.getLatestCommit(ctx, project.Key, repo.Slug)
	switch {
	case err != nil:
		logger.Debugf("Latest commit lookup failed for %s/%s: %v", project.Key, repo.Slug, err)
	case commit != nil:
		record.LastModified = domain.KnownTime(time.UnixMilli(commit.CommitterTimestamp))
	}
	return record
}

func isForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}
