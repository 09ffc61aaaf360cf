package application

import (
	"context"
	"fmt"
	"sort"

	logger "github.com/sirupsen/logrus"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/export"
)

// UsersService runs the users-inventory variant: per-project member and
// administrator lists instead of repository records. It reuses the same
// two-level bounded traversal as the repository inventory.
type UsersService struct {
	platform  domain.Platform
	members   domain.MembershipLister
	detection domain.AdminDetection
	clock     domain.Clock
}

// NewUsersService creates the service. The platform must also implement
// domain.MembershipLister; Run fails before any traversal otherwise.
func NewUsersService(
	platform domain.Platform,
	detection domain.AdminDetection,
	clock domain.Clock,
) *UsersService {
	members, _ := platform.(domain.MembershipLister)
	return &UsersService{
		platform:  platform,
		members:   members,
		detection: detection,
		clock:     clock,
	}
}

// Run executes the users pass over the given organizations.
func (s *UsersService) Run(
	ctx context.Context,
	orgs []string,
	opts RunOptions,
) ([]domain.MembershipRecord, export.RunSummary, error) {
	if opts.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if s.members == nil {
		return nil, export.RunSummary{}, fmt.Errorf(
			"platform %q does not support membership listing", s.platform.Name(),
		)
	}
	if len(orgs) == 0 {
		return nil, export.RunSummary{}, fmt.Errorf("no organizations to process")
	}

	start := s.clock.Now()
	aggregator := export.NewAggregator[domain.MembershipRecord]()
	prog := &progress{}

	logger.Infof(
		"Starting users inventory of %d organizations on %s",
		len(orgs), s.platform.Name(),
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

func (s *UsersService) processProject(
	ctx context.Context,
	project domain.Project,
	aggregator *export.Aggregator[domain.MembershipRecord],
) error {
	record, err := s.members.ProjectMembership(ctx, project)
	if err != nil {
		return fmt.Errorf("failed to list membership: %w", err)
	}

	record.Members = s.cleanIdentities(record.Members)
	record.Admins = s.cleanIdentities(record.Admins)

	// Known-admin fallback: configured identities count as administrators
	// when the platform exposed no explicit admin group, but only if they
	// actually appear among the project's members.
	if len(record.Admins) == 0 {
		for _, known := range s.detection.KnownAdmins[project.Name] {
			for _, member := range record.Members {
				if member == known {
					record.Admins = append(record.Admins, known)
					break
				}
			}
		}
		sort.Strings(record.Admins)
	}

	logger.Infof(
		"Project %s/%s: %d members, %d admins",
		project.Organization, project.Name, len(record.Members), len(record.Admins),
	)
	aggregator.Append(record)
	return nil
}

// cleanIdentities filters service accounts, removes duplicates, and sorts
// so the exported cell content is stable.
func (s *UsersService) cleanIdentities(identities []string) []string {
	seen := make(map[string]struct{}, len(identities))
	var cleaned []string
	for _, id := range identities {
		if !s.detection.ValidIdentity(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	sort.Strings(cleaned)
	return cleaned
}
