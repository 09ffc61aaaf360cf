package application

import (
	"context"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rios0rios0/repoinventory/domain"
)

// taskState is the lifecycle of one unit of work in the traversal.
type taskState int

const (
	taskPending taskState = iota
	taskInFlight
	taskCompleted
	taskFailed
)

func (s taskState) String() string {
	switch s {
	case taskPending:
		return "pending"
	case taskInFlight:
		return "in-flight"
	case taskCompleted:
		return "completed"
	case taskFailed:
		return "failed"
	}
	return "unknown"
}

// progress counts terminal work-item states across all workers.
type progress struct {
	mu        sync.Mutex
	completed int
	failed    int
}

func (p *progress) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
}

func (p *progress) fail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed++
}

func (p *progress) counts() (completed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed
}

// traverse runs the two-level bounded traversal shared by the inventory and
// users services: an outer pool over organizations and a fresh inner pool
// per organization over its projects. Pool widths are hard caps. A failing
// or panicking project reaches the Failed terminal state and contributes
// zero records; it never aborts sibling work.
func traverse(
	ctx context.Context,
	orgs []string,
	orgWorkers, projectWorkers int,
	listProjects func(ctx context.Context, org string) ([]domain.Project, error),
	process func(ctx context.Context, project domain.Project) error,
	prog *progress,
) {
	outer := &errgroup.Group{}
	outer.SetLimit(orgWorkers)

	for _, org := range orgs {
		org := org
		outer.Go(func() error {
			traverseOrganization(ctx, org, projectWorkers, listProjects, process, prog)
			return nil
		})
	}

	// Workers convert their own failures; Wait only synchronizes.
	_ = outer.Wait()
}

func traverseOrganization(
	ctx context.Context,
	org string,
	projectWorkers int,
	listProjects func(ctx context.Context, org string) ([]domain.Project, error),
	process func(ctx context.Context, project domain.Project) error,
	prog *progress,
) {
	logger.Infof("Processing organization: %s", org)

	projects, err := listProjects(ctx, org)
	if err != nil {
		logger.Errorf("Failed to list projects for organization %q: %v", org, err)
		prog.fail()
		return
	}
	if len(projects) == 0 {
		logger.Infof("No projects found for organization %q", org)
		return
	}

	inner := &errgroup.Group{}
	inner.SetLimit(projectWorkers)

	for _, project := range projects {
		project := project
		inner.Go(func() error {
			runProject(ctx, project, process, prog)
			return nil
		})
	}
	_ = inner.Wait()

	logger.Infof("Completed processing organization: %s", org)
}

// runProject drives one work item through its state machine, converting
// panics and errors to the Failed terminal state.
func runProject(
	ctx context.Context,
	project domain.Project,
	process func(ctx context.Context, project domain.Project) error,
	prog *progress,
) {
	logger.Debugf("Project %s/%s is %s", project.Organization, project.Name, taskInFlight)

	defer func() {
		if r := recover(); r != nil {
			prog.fail()
			logger.Errorf(
				"Panic while processing project %s/%s (%s): %v",
				project.Organization, project.Name, taskFailed, r,
			)
		}
	}()

	if err := process(ctx, project); err != nil {
		prog.fail()
		logger.Errorf(
			"Failed to process project %s/%s (%s): %v",
			project.Organization, project.Name, taskFailed, err,
		)
		return
	}

	prog.complete()
	logger.Debugf("Project %s/%s is %s", project.Organization, project.Name, taskCompleted)
}

// describeRun formats the one-line completion log.
func describeRun(records, completed, failed int) string {
	return fmt.Sprintf(
		"Run complete: %d records collected, %d projects completed, %d failed",
		records, completed, failed,
	)
}
