package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rios0rios0/repoinventory/application"
	"github.com/rios0rios0/repoinventory/domain"
	testdoubles "github.com/rios0rios0/repoinventory/test"
)

func newClassifier() *domain.Classifier {
	h := domain.DefaultHeuristics()
	return domain.NewClassifier(h, domain.NewEstimator(h))
}

func projectsFor(org string, names ...string) []domain.Project {
	projects := make([]domain.Project, 0, len(names))
	for _, name := range names {
		projects = append(projects, domain.Project{Organization: org, Name: name})
	}
	return projects
}

func TestInventoryService_Run(t *testing.T) {
	t.Parallel()

	t.Run("should collect records for every project across organizations", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme":    projectsFor("acme", "alpha", "beta"),
				"globex":  projectsFor("globex", "gamma"),
				"initech": projectsFor("initech", "delta", "epsilon", "zeta"),
			},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, summary, err := service.Run(context.Background(), []string{"acme", "globex", "initech"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		assert.Len(t, records, 6)
		assert.Equal(t, 6, summary.Records)
		assert.Equal(t, 3, summary.Organizations)
		assert.Equal(t, 6, summary.ProjectsCompleted)
		assert.Equal(t, 0, summary.ProjectsFailed)
		assert.ElementsMatch(t, []string{"acme", "globex", "initech"}, spy.ListedOrgs)
	})

	t.Run("should isolate a failing project from its siblings", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha", "beta", "gamma"),
			},
			CollectErr: map[string]error{
				"beta": errors.New("backend unavailable"),
			},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, summary, err := service.Run(context.Background(), []string{"acme"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		assert.Len(t, records, 2)
		assert.Equal(t, 2, summary.ProjectsCompleted)
		assert.Equal(t, 1, summary.ProjectsFailed)
	})

	t.Run("should isolate a panicking project from its siblings", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha", "beta"),
			},
			ProbePanics: map[string]bool{"alpha": true},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, summary, err := service.Run(context.Background(), []string{"acme"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 1, summary.ProjectsCompleted)
		assert.Equal(t, 1, summary.ProjectsFailed)
	})

	t.Run("should count a failed organization listing without aborting others", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha"),
			},
			ListProjectsErr: map[string]error{
				"globex": errors.New("unauthorized"),
			},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, summary, err := service.Run(context.Background(), []string{"acme", "globex"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		assert.Len(t, records, 1)
		assert.Equal(t, 1, summary.ProjectsCompleted)
		assert.Equal(t, 1, summary.ProjectsFailed)
	})

	t.Run("should fail when no organizations are given", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		_, _, err := service.Run(context.Background(), nil, application.RunOptions{})

		// then
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no organizations")
	})

	t.Run("should hand the classified backend kind to collection", func(t *testing.T) {
		t.Parallel()

		// given - a project whose only content-bearing backend is legacy
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha"),
			},
			ProbeSets: map[string]domain.ProbeSet{
				"alpha": {
					domain.LegacyVCS: {Kind: domain.LegacyVCS, HasContent: true, ItemCount: domain.KnownMetric(12)},
				},
			},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, _, err := service.Run(context.Background(), []string{"acme"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.LegacyVCS, records[0].Kind)
		assert.Equal(t, domain.LegacyVCS, spy.CollectedKinds["alpha"])
	})

	t.Run("should classify an empty project as generic file store", func(t *testing.T) {
		t.Parallel()

		// given - every probe reports no content
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha"),
			},
			ProbeSets: map[string]domain.ProbeSet{
				"alpha": {
					domain.ModernVCS: {Kind: domain.ModernVCS, HasContent: false},
					domain.LegacyVCS: {Kind: domain.LegacyVCS, HasContent: false},
				},
			},
		}
		service := application.NewInventoryService(spy, newClassifier(), &testdoubles.StubClock{})

		// when
		records, _, err := service.Run(context.Background(), []string{"acme"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, domain.GenericFileStore, records[0].Kind)
	})

	t.Run("should report run duration from the injected clock", func(t *testing.T) {
		t.Parallel()

		// given
		spy := &testdoubles.SpyPlatform{
			Projects: map[string][]domain.Project{
				"acme": projectsFor("acme", "alpha"),
			},
		}
		clock := &testdoubles.StubClock{Current: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
		service := application.NewInventoryService(spy, newClassifier(), clock)

		// when
		_, summary, err := service.Run(context.Background(), []string{"acme"}, application.RunOptions{})

		// then
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), summary.Duration)
	})
}
