// Package azuredevops implements the inventory platform for Azure DevOps.
// It is the only platform with all five backend candidates: Git, TFVC,
// package feeds, wikis, and work-item file storage.
package azuredevops

import (
	"context"
	"fmt"
	"sync"

	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
	"github.com/rios0rios0/repoinventory/infrastructure/platform"
)

// Platform implements domain.Platform and domain.MembershipLister for
// Azure DevOps organizations.
type Platform struct {
	baseURL    string
	rotator    *credential.Rotator
	clock      domain.Clock
	heuristics domain.Heuristics
	estimator  *domain.Estimator
	detection  domain.AdminDetection

	mu      sync.Mutex
	clients map[string]*client
}

// New creates an Azure DevOps platform. API clients are created per
// organization because the API base URL embeds the organization name.
func New(deps platform.Deps) domain.Platform {
	return &Platform{
		baseURL:    deps.BaseURL,
		rotator:    deps.Rotator,
		clock:      deps.Clock,
		heuristics: deps.Heuristics,
		estimator:  domain.NewEstimator(deps.Heuristics),
		detection:  deps.AdminDetection,
		clients:    make(map[string]*client),
	}
}

func (p *Platform) Name() string {
	return "azuredevops"
}

// ListProjects enumerates the organization's projects.
func (p *Platform) ListProjects(ctx context.Context, org string) ([]domain.Project, error) {
	projects, err := p.clientFor(org).getProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for %q: %w", org, err)
	}

	result := make([]domain.Project, 0, len(projects))
	for _, proj := range projects {
		result = append(result, domain.Project{
			Organization: org,
			Name:         proj.Name,
			ID:           proj.ID,
		})
	}
	return result, nil
}

func (p *Platform) clientFor(org string) *client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, found := p.clients[org]; found {
		return c
	}
	c := newClient(org, p.baseURL, p.rotator, p.clock)
	p.clients[org] = c
	return c
}
