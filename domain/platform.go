package domain

import (
	"context"
	"time"
)

// Platform abstracts a hosted version-control service (Azure DevOps,
// Bitbucket Server, GitHub). Each implementation owns discovery, backend
// probing, and record collection for its platform.
type Platform interface {
	// Name returns the platform identifier (e.g. "azuredevops").
	Name() string

	// ListProjects lists all projects in an organization.
	ListProjects(ctx context.Context, org string) ([]Project, error)

	// ProbeBackends queries every backend candidate of a project for
	// presence-of-content signals. It never returns an error: unreachable
	// or forbidden backends degrade to a result with Err set and
	// HasContent false.
	ProbeBackends(ctx context.Context, project Project) ProbeSet

	// CollectRecords produces the exported records for a project after its
	// backend kind has been decided. Probe evidence is passed back in so
	// already-gathered signals are not re-fetched.
	CollectRecords(ctx context.Context, project Project, kind BackendKind, probes ProbeSet) ([]RepositoryRecord, error)
}

// MembershipLister is implemented by platforms that can enumerate project
// members and administrators for the users inventory.
type MembershipLister interface {
	// ProjectMembership returns the member and administrator identity
	// lists for a project.
	ProjectMembership(ctx context.Context, project Project) (MembershipRecord, error)
}

// Clock abstracts wall-clock time and sleeping so the recency window and
// quota waits are deterministic under test.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is canceled.
	Sleep(ctx context.Context, d time.Duration)
}

// SystemClock is the real Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
