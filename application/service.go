package application

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/config"
	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/export"
)

// InventoryService orchestrates the full inventory flow: discover projects,
// probe backend candidates, classify, collect records, aggregate.
type InventoryService struct {
	platform   domain.Platform
	classifier *domain.Classifier
	clock      domain.Clock
}

// NewInventoryService creates the service. The clock is injected so the
// classification recency window is deterministic under test.
func NewInventoryService(
	platform domain.Platform,
	classifier *domain.Classifier,
	clock domain.Clock,
) *InventoryService {
	return &InventoryService{
		platform:   platform,
		classifier: classifier,
		clock:      clock,
	}
}

// RunOptions holds runtime options for a single run.
type RunOptions struct {
	MaxOrgWorkers     int
	MaxProjectWorkers int
	Verbose           bool
}

func (o RunOptions) orgWorkers() int {
	if o.MaxOrgWorkers > 0 {
		return o.MaxOrgWorkers
	}
	return config.DefaultMaxOrgWorkers
}

func (o RunOptions) projectWorkers() int {
	if o.MaxProjectWorkers > 0 {
		return o.MaxProjectWorkers
	}
	return config.DefaultMaxProjectWorkers
}

// Run executes the inventory pass over the given organizations and returns
// the collected records plus the run summary.
func (s *InventoryService) Run(
	ctx context.Context,
	orgs []string,
	opts RunOptions,
) ([]domain.RepositoryRecord, export.RunSummary, error) {
	if opts.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if len(orgs) == 0 {
		return nil, export.RunSummary{}, fmt.Errorf("no organizations to process")
	}

	start := s.clock.Now()
	aggregator := export.NewAggregator[domain.RepositoryRecord]()
	prog := &progress{}

	logger.Infof(
		"Starting inventory of %d organizations on %s (org workers: %d, project workers: %d)",
		len(orgs), s.platform.Name(), opts.orgWorkers(), opts.projectWorkers(),
	)

	traverse(
		ctx, orgs, opts.orgWorkers(), opts.projectWorkers(),
		s.platform.ListProjects,
		func(ctx context.Context, project domain.Project) error {
			return s.processProject(ctx, project, aggregator)
		},
		prog,
	)

	completed, failed := prog.counts()
	summary := export.RunSummary{
		Records:           aggregator.Len(),
		Organizations:     len(orgs),
		ProjectsCompleted: completed,
		ProjectsFailed:    failed,
		Duration:          s.clock.Now().Sub(start),
	}
	logger.Info(describeRun(summary.Records, completed, failed))

	return aggregator.Snapshot(), summary, nil
}

// processProject runs probe -> classify -> collect for one project. Probe
// evidence stays intact until classification completes; records are
// immutable once appended.
func (s *InventoryService) processProject(
	ctx context.Context,
	project domain.Project,
	aggregator *export.Aggregator[domain.RepositoryRecord],
) error {
	probes := s.platform.ProbeBackends(ctx, project)
	for kind, res := range probes {
		if res.Err == nil {
			continue
		}
		if res.Forbidden {
			logger.Warnf(
				"Probe of %s backend for %s/%s forbidden: %v",
				kind, project.Organization, project.Name, res.Err,
			)
		} else {
			logger.Debugf(
				"Probe of %s backend for %s/%s degraded: %v",
				kind, project.Organization, project.Name, res.Err,
			)
		}
	}

	kind := s.classifier.Classify(probes, s.clock.Now())
	logger.Infof("Project %s/%s classified as %s", project.Organization, project.Name, kind)

	records, err := s.platform.CollectRecords(ctx, project, kind, probes)
	if err != nil {
		return fmt.Errorf("failed to collect records: %w", err)
	}
	aggregator.Append(records...)
	return nil
}
