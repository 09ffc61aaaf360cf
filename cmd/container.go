package cmd

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"go.uber.org/dig"

	"github.com/rios0rios0/repoinventory/application"
	"github.com/rios0rios0/repoinventory/config"
	"github.com/rios0rios0/repoinventory/domain"
	"github.com/rios0rios0/repoinventory/infrastructure/credential"
	platformPkg "github.com/rios0rios0/repoinventory/infrastructure/platform"
	adoPlat "github.com/rios0rios0/repoinventory/infrastructure/platform/azuredevops"
	bbsPlat "github.com/rios0rios0/repoinventory/infrastructure/platform/bitbucketserver"
	ghPlat "github.com/rios0rios0/repoinventory/infrastructure/platform/github"
)

// buildContainer wires the full object graph bottom-up: configuration,
// clock, credential rotator, platform registry, selected platform, and the
// application services.
func buildContainer() (*dig.Container, error) {
	container := dig.New()

	providers := []any{
		loadConfig,
		newClock,
		newRotator,
		newHeuristics,
		newAdminDetection,
		newEstimator,
		domain.NewClassifier,
		buildPlatformRegistry,
		newPlatform,
		application.NewInventoryService,
		application.NewUsersService,
	}
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return nil, fmt.Errorf("failed to register provider: %w", err)
		}
	}
	return container, nil
}

// loadConfig resolves the configuration from --config, the standard search
// locations, or pure flags, with flags overriding file values. Validation
// is fail-fast: a missing credential or organizations file stops the run
// before any network activity.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	path := configPath
	if path == "" {
		if found, err := config.FindConfigFile(); err == nil {
			path = found
		}
	}

	if path != "" {
		logger.Infof("Using config file: %s", path)
		loaded, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		built, err := config.FromFlags(platformName, baseURL, orgsFile)
		if err != nil {
			return nil, err
		}
		return built, nil
	}

	if platformName != "" {
		cfg.Platform = platformName
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if orgsFile != "" {
		cfg.OrganizationsFile = orgsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClock() domain.Clock {
	return domain.SystemClock{}
}

func newRotator(cfg *config.Config, clock domain.Clock) (*credential.Rotator, error) {
	return credential.NewRotator(cfg.Tokens(), credential.WithClock(clock))
}

func newHeuristics(cfg *config.Config) domain.Heuristics {
	return cfg.DomainHeuristics()
}

func newAdminDetection(cfg *config.Config) domain.AdminDetection {
	return cfg.DomainAdminDetection()
}

func newEstimator(h domain.Heuristics) *domain.Estimator {
	return domain.NewEstimator(h)
}

func buildPlatformRegistry() *platformPkg.Registry {
	reg := platformPkg.NewRegistry()
	reg.Register("azuredevops", adoPlat.New)
	reg.Register("bitbucketserver", bbsPlat.New)
	reg.Register("github", ghPlat.New)
	return reg
}

func newPlatform(
	cfg *config.Config,
	registry *platformPkg.Registry,
	rotator *credential.Rotator,
	clock domain.Clock,
	heuristics domain.Heuristics,
	detection domain.AdminDetection,
) (domain.Platform, error) {
	return registry.Get(cfg.Platform, platformPkg.Deps{
		Rotator:        rotator,
		BaseURL:        cfg.BaseURL,
		Heuristics:     heuristics,
		AdminDetection: detection,
		Clock:          clock,
	})
}
