package azuredevops

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
)

// CollectRecords produces the exportable rows for a project once its
// authoritative backend kind is decided. Modern projects get one row per
// repository; the other kinds collapse to project-level rows.
func (p *Platform) CollectRecords(
	ctx context.Context,
	project domain.Project,
	kind domain.BackendKind,
	probes domain.ProbeSet,
) ([]domain.RepositoryRecord, error) {
	c := p.clientFor(project.Organization)

	switch kind {
	case domain.ModernVCS:
		return p.collectGitRecords(ctx, c, project)
	case domain.LegacyVCS:
		return p.collectTfvcRecords(ctx, c, project, probes[domain.LegacyVCS])
	case domain.ArtifactStore:
		return p.collectFeedRecords(ctx, c, project)
	case domain.Wiki:
		return p.collectWikiRecords(ctx, c, project)
	case domain.GenericFileStore:
		return p.collectFileStorageRecords(project, probes[domain.GenericFileStore]), nil
	default:
		return nil, fmt.Errorf("unsupported backend kind %q", kind)
	}
}

// collectGitRecords walks every repository of the project and measures it.
// A repository whose statistics collection fails still yields a row, with
// Err set so the export renders "Error" cells.
func (p *Platform) collectGitRecords(
	ctx context.Context, c *client, project domain.Project,
) ([]domain.RepositoryRecord, error) {
	repos, err := c.getRepositories(ctx, project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}

	records := make([]domain.RepositoryRecord, 0, len(repos))
	for _, repo := range repos {
		records = append(records, p.measureRepository(ctx, c, project, repo))
	}
	return records, nil
}

func (p *Platform) measureRepository(
	ctx context.Context, c *client, project domain.Project, repo gitRepository,
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

	refs, err := c.getBranchRefs(ctx, project.Name, repo.ID)
	if err != nil {
		logger.Debugf("Branch listing failed for %s/%s/%s: %v",
			project.Organization, project.Name, repo.Name, err)
	} else {
		record.BranchCount = domain.KnownMetric(int64(len(refs)))
	}

	items, err := c.getRepositoryItems(ctx, project.Name, repo.ID)
	if err != nil {
		logger.Warnf("Item listing failed for %s/%s/%s: %v",
			project.Organization, project.Name, repo.Name, err)
		record.Err = err
		return record
	}

	var metadataSizes []int64
	var blobs []gitItem
	for _, item := range items {
		if item.GitObjectType != "blob" {
			continue
		}
		blobs = append(blobs, item)
		if item.Size > 0 {
			metadataSizes = append(metadataSizes, item.Size)
		}
	}
	record.FileCount = domain.KnownMetric(int64(len(blobs)))

	// Listing metadata sometimes omits sizes entirely; probe individual
	// item lengths when the repository is small enough.
	var sampledSizes []int64
	metadataTotal := int64(0)
	for _, s := range metadataSizes {
		metadataTotal += s
	}
	if p.estimator.ShouldSampleProbe(metadataTotal, len(blobs)) {
		for _, item := range blobs {
			length, err := c.headContentLength(ctx, item.URL)
			if err != nil || length < 0 {
				continue
			}
			sampledSizes = append(sampledSizes, length)
		}
	}

	estimate := p.estimator.Estimate(domain.SizeInput{
		Authoritative:    authoritativeSize(repo),
		MetadataSizes:    metadataSizes,
		SampledSizes:     sampledSizes,
		ItemCount:        len(blobs),
		BytesPerItem:     p.heuristics.FallbackBytesPerFile,
		CheckoutOverhead: false,
	})
	record.SizeBytes = estimate.Bytes
	record.SizeTier = estimate.Tier
	record.LargestFileSize = domain.LargestSize(metadataSizes, sampledSizes)

	commit, err := c.getLatestCommit(ctx, project.Name, repo.ID)
	switch {
	case err != nil:
		logger.Debugf("Latest commit lookup failed for %s/%s/%s: %v",
			project.Organization, project.Name, repo.Name, err)
	case commit != nil:
		record.LastModified = domain.KnownTime(commit.Committer.Date)
	}
	return record
}

func authoritativeSize(repo gitRepository) domain.Metric {
	if repo.Size > 0 {
		return domain.KnownMetric(repo.Size)
	}
	return domain.UnknownMetric()
}

// collectTfvcRecords produces a single project-level row for the
// centralized tree. TFVC has no branch refs, so that cell stays
// inapplicable.
func (p *Platform) collectTfvcRecords(
	ctx context.Context, c *client, project domain.Project, probe domain.BackendProbeResult,
) ([]domain.RepositoryRecord, error) {
	record := domain.RepositoryRecord{
		Organization:    project.Organization,
		Project:         project.Name,
		Kind:            domain.LegacyVCS,
		RepoName:        "$/" + project.Name,
		BranchCount:     domain.UnknownMetric(),
		SizeBytes:       domain.UnknownMetric(),
		SizeTier:        domain.TierUnknown,
		FileCount:       domain.UnknownMetric(),
		LargestFileSize: domain.UnknownMetric(),
		LastModified:    probe.LastActivity,
	}

	items, err := c.getTfvcItems(ctx, project.Name)
	if err != nil {
		record.Err = err
		return []domain.RepositoryRecord{record}, nil
	}

	var metadataSizes []int64
	files := 0
	for _, item := range items {
		if item.IsFolder {
			continue
		}
		files++
		if item.Size > 0 {
			metadataSizes = append(metadataSizes, item.Size)
		}
	}
	record.FileCount = domain.KnownMetric(int64(files))

	var sampledSizes []int64
	metadataTotal := int64(0)
	for _, s := range metadataSizes {
		metadataTotal += s
	}
	if p.estimator.ShouldSampleProbe(metadataTotal, files) {
		for _, item := range items {
			if item.IsFolder || item.URL == "" {
				continue
			}
			length, err := c.headContentLength(ctx, item.URL)
			if err != nil || length < 0 {
				continue
			}
			sampledSizes = append(sampledSizes, length)
		}
	}

	// Raw content understates a legacy checkout, so the overhead model
	// applies here.
	estimate := p.estimator.Estimate(domain.SizeInput{
		MetadataSizes:    metadataSizes,
		SampledSizes:     sampledSizes,
		ItemCount:        files,
		BytesPerItem:     p.heuristics.LegacyBytesPerItem,
		CheckoutOverhead: true,
	})
	record.SizeBytes = estimate.Bytes
	record.SizeTier = estimate.Tier
	record.LargestFileSize = domain.LargestSize(metadataSizes, sampledSizes)

	if !record.LastModified.Known() {
		changeset, err := c.getLatestChangeset(ctx, project.Name)
		if err == nil && changeset != nil {
			record.LastModified = domain.KnownTime(changeset.CreatedDate)
		}
	}
	return []domain.RepositoryRecord{record}, nil
}

// collectFeedRecords produces one row per package feed.
func (p *Platform) collectFeedRecords(
	ctx context.Context, c *client, project domain.Project,
) ([]domain.RepositoryRecord, error) {
	feeds, err := c.getFeeds(ctx, project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}

	records := make([]domain.RepositoryRecord, 0, len(feeds))
	for _, f := range feeds {
		record := domain.RepositoryRecord{
			Organization:    project.Organization,
			Project:         project.Name,
			Kind:            domain.ArtifactStore,
			RepoName:        f.Name,
			BranchCount:     domain.UnknownMetric(),
			SizeBytes:       domain.UnknownMetric(),
			SizeTier:        domain.TierUnknown,
			FileCount:       domain.UnknownMetric(),
			LargestFileSize: domain.UnknownMetric(),
			LastModified:    domain.UnknownTime(),
		}

		count, err := c.getFeedPackageCount(ctx, project.Name, f.ID)
		if err != nil {
			record.Err = err
		} else {
			record.FileCount = domain.KnownMetric(int64(count))
			estimate := p.estimator.Estimate(domain.SizeInput{
				ItemCount:    count,
				BytesPerItem: p.heuristics.LegacyBytesPerItem,
			})
			record.SizeBytes = estimate.Bytes
			record.SizeTier = estimate.Tier
		}
		records = append(records, record)
	}
	return records, nil
}

// collectWikiRecords produces one row per wiki.
func (p *Platform) collectWikiRecords(
	ctx context.Context, c *client, project domain.Project,
) ([]domain.RepositoryRecord, error) {
	wikis, err := c.getWikis(ctx, project.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list wikis: %w", err)
	}

	records := make([]domain.RepositoryRecord, 0, len(wikis))
	for _, w := range wikis {
		records = append(records, domain.RepositoryRecord{
			Organization:    project.Organization,
			Project:         project.Name,
			Kind:            domain.Wiki,
			RepoName:        w.Name,
			BranchCount:     domain.UnknownMetric(),
			SizeBytes:       domain.UnknownMetric(),
			SizeTier:        domain.TierUnknown,
			FileCount:       domain.UnknownMetric(),
			LargestFileSize: domain.UnknownMetric(),
			LastModified:    domain.UnknownTime(),
		})
	}
	return records, nil
}

// collectFileStorageRecords emits the fallback project-level row from the
// probe's attachment signal; no further requests are needed.
func (p *Platform) collectFileStorageRecords(
	project domain.Project, probe domain.BackendProbeResult,
) []domain.RepositoryRecord {
	record := domain.RepositoryRecord{
		Organization:    project.Organization,
		Project:         project.Name,
		Kind:            domain.GenericFileStore,
		RepoName:        project.Name,
		BranchCount:     domain.UnknownMetric(),
		SizeBytes:       domain.UnknownMetric(),
		SizeTier:        domain.TierUnknown,
		FileCount:       probe.ItemCount,
		LargestFileSize: domain.UnknownMetric(),
		LastModified:    domain.UnknownTime(),
	}
	if count, ok := probe.ItemCount.Value(); ok && count > 0 {
		estimate := p.estimator.Estimate(domain.SizeInput{
			ItemCount:    int(count),
			BytesPerItem: p.heuristics.FallbackBytesPerFile,
		})
		record.SizeBytes = estimate.Bytes
		record.SizeTier = estimate.Tier
	}
	return []domain.RepositoryRecord{record}
}
