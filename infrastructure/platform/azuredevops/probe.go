package azuredevops

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
)

// ProbeBackends gathers presence-of-content signals for every backend
// candidate of a project. Probing never raises: a failing candidate
// degrades to a result with Err set and classification proceeds with
// whatever answered.
func (p *Platform) ProbeBackends(ctx context.Context, project domain.Project) domain.ProbeSet {
	c := p.clientFor(project.Organization)
	return domain.ProbeSet{
		domain.ModernVCS:        p.probeGit(ctx, c, project),
		domain.LegacyVCS:        p.probeTfvc(ctx, c, project),
		domain.ArtifactStore:    p.probeFeeds(ctx, c, project),
		domain.Wiki:             p.probeWikis(ctx, c, project),
		domain.GenericFileStore: p.probeFileStorage(ctx, c, project),
	}
}

// probeGit samples the first few Git repositories and aggregates file
// counts, sizes, and latest activity.
func (p *Platform) probeGit(ctx context.Context, c *client, project domain.Project) domain.BackendProbeResult {
	result := domain.BackendProbeResult{
		Kind:         domain.ModernVCS,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	repos, err := c.getRepositories(ctx, project.Name)
	if err != nil {
		return degraded(result, err)
	}
	result.RepoCount = len(repos)
	if len(repos) == 0 {
		result.ItemCount = domain.EmptyMetric()
		result.TotalSize = domain.EmptyMetric()
		return result
	}

	// Authoritative sizes come from the full repository listing even for
	// repositories outside the probe sample.
	var totalSize int64
	sizeKnown := false
	for _, repo := range repos {
		if repo.Size > 0 {
			totalSize += repo.Size
			sizeKnown = true
		}
	}
	if sizeKnown {
		result.TotalSize = domain.KnownMetric(totalSize)
	}

	sampleLimit := p.heuristics.ModernRepoSampleLimit
	if sampleLimit > len(repos) {
		sampleLimit = len(repos)
	}

	var totalFiles int64
	filesKnown := false
	for _, repo := range repos[:sampleLimit] {
		sample := p.sampleRepository(ctx, c, project, repo)
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

	// Unsampled repositories with a nonzero reported size still count as
	// content.
	if !result.HasContent && sizeKnown {
		result.HasContent = true
	}
	return result
}

// sampleRepository gathers the per-repo signals behind the aggregate.
// Partial failures degrade single fields, not the sample.
func (p *Platform) sampleRepository(
	ctx context.Context, c *client, project domain.Project, repo gitRepository,
) domain.RepoSample {
	sample := domain.RepoSample{
		ID:         repo.ID,
		Name:       repo.Name,
		FileCount:  domain.UnknownMetric(),
		SizeBytes:  domain.UnknownMetric(),
		LastCommit: domain.UnknownTime(),
	}
	if repo.Size > 0 {
		sample.SizeBytes = domain.KnownMetric(repo.Size)
	}

	commit, err := c.getLatestCommit(ctx, project.Name, repo.ID)
	switch {
	case err != nil:
		logger.Debugf("Latest commit lookup failed for %s/%s/%s: %v",
			project.Organization, project.Name, repo.Name, err)
	case commit != nil:
		sample.HasContent = true
		sample.LastCommit = domain.KnownTime(commit.Committer.Date)
	}

	items, err := c.getRepositoryItems(ctx, project.Name, repo.ID)
	if err != nil {
		logger.Debugf("Item listing failed for %s/%s/%s: %v",
			project.Organization, project.Name, repo.Name, err)
		return sample
	}

	var files, contentBytes int64
	for _, item := range items {
		if item.GitObjectType != "blob" {
			continue
		}
		files++
		contentBytes += item.Size
	}
	sample.FileCount = domain.KnownMetric(files)
	if files > 0 {
		sample.HasContent = true
	}
	if !sample.SizeBytes.Usable() && contentBytes > 0 {
		sample.SizeBytes = domain.KnownMetric(contentBytes)
	}
	return sample
}

// probeTfvc checks the centralized version-control tree of the project.
func (p *Platform) probeTfvc(ctx context.Context, c *client, project domain.Project) domain.BackendProbeResult {
	result := domain.BackendProbeResult{
		Kind:         domain.LegacyVCS,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	items, itemsErr := c.getTfvcItems(ctx, project.Name)
	switch {
	case itemsErr == nil:
		var files, contentBytes int64
		for _, item := range items {
			if item.IsFolder {
				continue
			}
			files++
			contentBytes += item.Size
		}
		result.ItemCount = domain.KnownMetric(files)
		result.HasContent = files > 0
		if contentBytes > 0 {
			result.TotalSize = domain.KnownMetric(contentBytes)
		}
	case errors.Is(itemsErr, ErrNotFound):
		// no TFVC tree at all
		result.ItemCount = domain.EmptyMetric()
		result.TotalSize = domain.EmptyMetric()
		return result
	default:
		result = degraded(result, itemsErr)
	}

	// Changeset history is content evidence on its own. A project whose
	// item listing is forbidden or empty still counts as a live TFVC
	// backend when changesets are visible.
	changeset, err := c.getLatestChangeset(ctx, project.Name)
	switch {
	case err != nil:
		logger.Debugf("Latest changeset lookup failed for %s/%s: %v",
			project.Organization, project.Name, err)
	case changeset != nil:
		result.HasContent = true
		result.LastActivity = domain.KnownTime(changeset.CreatedDate)
	}
	return result
}

// probeFeeds checks for package feeds. A project with feeds is an artifact
// store candidate even before package counts are known.
func (p *Platform) probeFeeds(ctx context.Context, c *client, project domain.Project) domain.BackendProbeResult {
	result := domain.BackendProbeResult{
		Kind:         domain.ArtifactStore,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	feeds, err := c.getFeeds(ctx, project.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result.ItemCount = domain.EmptyMetric()
			return result
		}
		return degraded(result, err)
	}
	if len(feeds) == 0 {
		result.ItemCount = domain.EmptyMetric()
		return result
	}

	result.HasContent = true
	var packages int64
	counted := false
	for _, f := range feeds {
		count, err := c.getFeedPackageCount(ctx, project.Name, f.ID)
		if err != nil {
			logger.Debugf("Package count failed for feed %s in %s/%s: %v",
				f.Name, project.Organization, project.Name, err)
			continue
		}
		packages += int64(count)
		counted = true
	}
	if counted {
		result.ItemCount = domain.KnownMetric(packages)
	}
	return result
}

// probeWikis checks for project wikis.
func (p *Platform) probeWikis(ctx context.Context, c *client, project domain.Project) domain.BackendProbeResult {
	result := domain.BackendProbeResult{
		Kind:         domain.Wiki,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	wikis, err := c.getWikis(ctx, project.Name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			result.ItemCount = domain.EmptyMetric()
			return result
		}
		return degraded(result, err)
	}
	result.HasContent = len(wikis) > 0
	result.ItemCount = domain.KnownMetric(int64(len(wikis)))
	return result
}

// probeFileStorage counts work items carrying attachments. This candidate
// never claims content on its own; the signal only feeds the fallback
// record when nothing else holds the project.
func (p *Platform) probeFileStorage(ctx context.Context, c *client, project domain.Project) domain.BackendProbeResult {
	result := domain.BackendProbeResult{
		Kind:         domain.GenericFileStore,
		ItemCount:    domain.UnknownMetric(),
		TotalSize:    domain.UnknownMetric(),
		LastActivity: domain.UnknownTime(),
	}

	count, err := c.getAttachedWorkItemCount(ctx, project.Name)
	if err != nil {
		return degraded(result, err)
	}
	result.ItemCount = domain.KnownMetric(int64(count))
	return result
}

// degraded marks a probe result as failed without losing the kind or the
// unknown-valued metrics.
func degraded(result domain.BackendProbeResult, err error) domain.BackendProbeResult {
	result.Err = err
	result.Forbidden = errors.Is(err, ErrForbidden)
	return result
}
