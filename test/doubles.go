// Package testdoubles provides test doubles (spies, stubs, dummies) for domain
// interfaces. These are hand-crafted implementations, no mock frameworks.
package testdoubles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rios0rios0/repoinventory/domain"
)

// ---------------------------------------------------------------------------
// SpyPlatform
// ---------------------------------------------------------------------------

// SpyPlatform implements domain.Platform and domain.MembershipLister as a
// configurable spy. Configure the response fields for the methods your
// test exercises, then inspect the call-tracking fields to verify behavior.
// Safe for concurrent use; the fan-out tests hit it from many goroutines.
type SpyPlatform struct {
	mu sync.Mutex

	// --- identity ---
	PlatformName string

	// --- ListProjects ---
	Projects        map[string][]domain.Project // org -> projects
	ListProjectsErr map[string]error            // org -> error
	// spy: orgs that were requested
	ListedOrgs []string

	// --- ProbeBackends ---
	ProbeSets map[string]domain.ProbeSet // project name -> probes
	// ProbePanics makes ProbeBackends panic for the named projects.
	ProbePanics map[string]bool
	// spy: projects that were probed
	ProbedProjects []string

	// --- CollectRecords ---
	Records    map[string][]domain.RepositoryRecord // project name -> records
	CollectErr map[string]error                     // project name -> error
	// spy: project names in collection order, and the kind each was given
	CollectedProjects []string
	CollectedKinds    map[string]domain.BackendKind

	// --- ProjectMembership ---
	Memberships   map[string]domain.MembershipRecord // project name -> record
	MembershipErr map[string]error                   // project name -> error
	// spy: project names in request order
	MembershipProjects []string
}

func (s *SpyPlatform) Name() string {
	if s.PlatformName == "" {
		return "spy"
	}
	return s.PlatformName
}

func (s *SpyPlatform) ListProjects(_ context.Context, org string) ([]domain.Project, error) {
	s.mu.Lock()
	s.ListedOrgs = append(s.ListedOrgs, org)
	s.mu.Unlock()

	if err := s.ListProjectsErr[org]; err != nil {
		return nil, err
	}
	projects, found := s.Projects[org]
	if !found {
		return nil, fmt.Errorf("no projects configured for org %q", org)
	}
	return projects, nil
}

func (s *SpyPlatform) ProbeBackends(_ context.Context, project domain.Project) domain.ProbeSet {
	s.mu.Lock()
	s.ProbedProjects = append(s.ProbedProjects, project.Name)
	s.mu.Unlock()

	if s.ProbePanics[project.Name] {
		panic(fmt.Sprintf("probe panic for project %q", project.Name))
	}
	if probes, found := s.ProbeSets[project.Name]; found {
		return probes
	}
	return domain.ProbeSet{}
}

func (s *SpyPlatform) CollectRecords(
	_ context.Context,
	project domain.Project,
	kind domain.BackendKind,
	_ domain.ProbeSet,
) ([]domain.RepositoryRecord, error) {
	s.mu.Lock()
	s.CollectedProjects = append(s.CollectedProjects, project.Name)
	if s.CollectedKinds == nil {
		s.CollectedKinds = make(map[string]domain.BackendKind)
	}
	s.CollectedKinds[project.Name] = kind
	s.mu.Unlock()

	if err := s.CollectErr[project.Name]; err != nil {
		return nil, err
	}
	if records, found := s.Records[project.Name]; found {
		return records, nil
	}
	// default: one record naming the classified kind, so tests can assert
	// classification reached collection
	return []domain.RepositoryRecord{{
		Organization: project.Organization,
		Project:      project.Name,
		Kind:         kind,
		RepoName:     project.Name,
	}}, nil
}

func (s *SpyPlatform) ProjectMembership(
	_ context.Context,
	project domain.Project,
) (domain.MembershipRecord, error) {
	s.mu.Lock()
	s.MembershipProjects = append(s.MembershipProjects, project.Name)
	s.mu.Unlock()

	if err := s.MembershipErr[project.Name]; err != nil {
		return domain.MembershipRecord{}, err
	}
	if record, found := s.Memberships[project.Name]; found {
		return record, nil
	}
	return domain.MembershipRecord{
		Organization: project.Organization,
		Project:      project.Name,
	}, nil
}

// ---------------------------------------------------------------------------
// StubClock
// ---------------------------------------------------------------------------

// StubClock implements domain.Clock with a stepping time and recorded sleeps,
// so tests never block on real timers.
type StubClock struct {
	mu      sync.Mutex
	Current time.Time
	Slept   []time.Duration
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Current
}

func (c *StubClock) Sleep(_ context.Context, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Slept = append(c.Slept, d)
	c.Current = c.Current.Add(d)
}
