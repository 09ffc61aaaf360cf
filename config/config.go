package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rios0rios0/repoinventory/domain"
)

// Default worker pool widths for the two fan-out levels.
const (
	DefaultMaxOrgWorkers     = 5
	DefaultMaxProjectWorkers = 3
)

// Config is the top-level configuration for repoinventory.
type Config struct {
	Platform          string               `yaml:"platform"`           // "azuredevops", "bitbucketserver", "github"
	BaseURL           string               `yaml:"base_url"`           // Required for Bitbucket Server; optional elsewhere
	Token             string               `yaml:"token"`              // Inline, ${ENV_VAR}, or file path; comma-separated pool
	OrganizationsFile string               `yaml:"organizations_file"` // Newline-delimited org identifiers
	Workers           WorkersConfig        `yaml:"workers"`
	Heuristics        HeuristicsConfig     `yaml:"heuristics"`
	AdminDetection    AdminDetectionConfig `yaml:"admin_detection"`
}

// WorkersConfig bounds the two fan-out pool widths. Zero values fall back
// to the defaults.
type WorkersConfig struct {
	MaxOrgWorkers     int `yaml:"max_org_workers"`
	MaxProjectWorkers int `yaml:"max_project_workers"`
}

// HeuristicsConfig overrides individual classification/estimation
// thresholds; zero values keep the documented defaults.
type HeuristicsConfig struct {
	RecencyWindowDays      int   `yaml:"recency_window_days"`
	ModernRepoSampleLimit  int   `yaml:"modern_repo_sample_limit"`
	SampleProbeLimit       int   `yaml:"sample_probe_limit"`
	LegacyVolumeDominance  int   `yaml:"legacy_volume_dominance"`
	SmallContentThreshold  int64 `yaml:"small_content_threshold"`
	SmallContentMultiplier int64 `yaml:"small_content_multiplier"`
	LargeContentMultiplier int64 `yaml:"large_content_multiplier"`
	MinCheckoutFootprint   int64 `yaml:"min_checkout_footprint"`
	ModernBytesPerFile     int64 `yaml:"modern_bytes_per_file"`
	LegacyBytesPerItem     int64 `yaml:"legacy_bytes_per_item"`
	FallbackBytesPerFile   int64 `yaml:"fallback_bytes_per_file"`
}

// AdminDetectionConfig configures administrator discovery for the users
// inventory. Group patterns and known admins are deployment data, not
// algorithm.
type AdminDetectionConfig struct {
	GroupPatterns         []string            `yaml:"group_patterns"`
	KnownAdmins           map[string][]string `yaml:"known_admins"`
	ExcludedIdentityTerms []string            `yaml:"excluded_identity_terms"`
}

// envVarPattern matches ${VAR_NAME} placeholders.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// tokenEnvVars maps a platform to the environment variables consulted, in
// order, when no token is configured.
var tokenEnvVars = map[string][]string{
	"azuredevops":     {"AZURE_DEVOPS_PAT", "REPOINVENTORY_TOKEN"},
	"bitbucketserver": {"BITBUCKET_TOKEN", "REPOINVENTORY_TOKEN"},
	"github":          {"GITHUB_TOKEN", "REPOINVENTORY_TOKEN"},
}

// Load reads and parses a configuration file, expanding environment
// variables and resolving token file paths.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	var cfg Config
	if unmarshalErr := yaml.Unmarshal(data, &cfg); unmarshalErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", unmarshalErr)
	}

	cfg.Token = resolveToken(cfg.Token)
	cfg.applyEnvFallbacks()

	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, validateErr
	}

	return &cfg, nil
}

// FromFlags builds a configuration without a config file, from CLI flags
// and the platform's token environment variables.
func FromFlags(platform, baseURL, orgsFile string) (*Config, error) {
	cfg := &Config{
		Platform:          platform,
		BaseURL:           baseURL,
		OrganizationsFile: orgsFile,
	}
	cfg.applyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile searches for a configuration file in standard locations.
// Returns the path to the first file found or an error if none is found.
func FindConfigFile() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}

	locations := []string{
		".",
		".config",
		"configs",
	}
	if homeDir != "" {
		locations = append(
			locations,
			homeDir,
			filepath.Join(homeDir, ".config"),
		)
	}

	patterns := []string{
		".repoinventory.yaml",
		".repoinventory.yml",
		"repoinventory.yaml",
		"repoinventory.yml",
	}

	for _, loc := range locations {
		for _, pat := range patterns {
			p := filepath.Join(loc, pat)
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}

	return "", errors.New("config file not found in default locations")
}

// Tokens splits the resolved token value into the rotation pool.
func (c *Config) Tokens() []string {
	var tokens []string
	for _, t := range strings.Split(c.Token, ",") {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

// MaxOrgWorkers returns the configured outer pool width or the default.
func (c *Config) MaxOrgWorkers() int {
	if c.Workers.MaxOrgWorkers > 0 {
		return c.Workers.MaxOrgWorkers
	}
	return DefaultMaxOrgWorkers
}

// MaxProjectWorkers returns the configured inner pool width or the default.
func (c *Config) MaxProjectWorkers() int {
	if c.Workers.MaxProjectWorkers > 0 {
		return c.Workers.MaxProjectWorkers
	}
	return DefaultMaxProjectWorkers
}

// DomainHeuristics overlays the configured overrides on the documented
// defaults.
func (c *Config) DomainHeuristics() domain.Heuristics {
	h := domain.DefaultHeuristics()
	hc := c.Heuristics
	if hc.RecencyWindowDays > 0 {
		h.RecencyWindow = time.Duration(hc.RecencyWindowDays) * 24 * time.Hour
	}
	if hc.ModernRepoSampleLimit > 0 {
		h.ModernRepoSampleLimit = hc.ModernRepoSampleLimit
	}
	if hc.SampleProbeLimit > 0 {
		h.SampleProbeLimit = hc.SampleProbeLimit
	}
	if hc.LegacyVolumeDominance > 0 {
		h.LegacyVolumeDominance = hc.LegacyVolumeDominance
	}
	if hc.SmallContentThreshold > 0 {
		h.SmallContentThreshold = hc.SmallContentThreshold
	}
	if hc.SmallContentMultiplier > 0 {
		h.SmallContentMultiplier = hc.SmallContentMultiplier
	}
	if hc.LargeContentMultiplier > 0 {
		h.LargeContentMultiplier = hc.LargeContentMultiplier
	}
	if hc.MinCheckoutFootprint > 0 {
		h.MinCheckoutFootprint = hc.MinCheckoutFootprint
	}
	if hc.ModernBytesPerFile > 0 {
		h.ModernBytesPerFile = hc.ModernBytesPerFile
	}
	if hc.LegacyBytesPerItem > 0 {
		h.LegacyBytesPerItem = hc.LegacyBytesPerItem
	}
	if hc.FallbackBytesPerFile > 0 {
		h.FallbackBytesPerFile = hc.FallbackBytesPerFile
	}
	return h
}

// DomainAdminDetection overlays the configured admin-detection data on the
// defaults.
func (c *Config) DomainAdminDetection() domain.AdminDetection {
	d := domain.DefaultAdminDetection()
	if len(c.AdminDetection.GroupPatterns) > 0 {
		d.GroupPatterns = c.AdminDetection.GroupPatterns
	}
	if len(c.AdminDetection.KnownAdmins) > 0 {
		d.KnownAdmins = c.AdminDetection.KnownAdmins
	}
	if len(c.AdminDetection.ExcludedIdentityTerms) > 0 {
		d.ExcludedIdentityTerms = c.AdminDetection.ExcludedIdentityTerms
	}
	return d
}

// Validate checks for the required values. It runs before any network
// activity so a missing input file or credential terminates immediately
// with a descriptive message.
func (c *Config) Validate() error {
	if c.Platform == "" {
		return errors.New("platform is required (azuredevops, bitbucketserver, or github)")
	}
	if c.Token == "" {
		vars := tokenEnvVars[c.Platform]
		return fmt.Errorf(
			"no credential configured for %q: set token in the config file or export one of %s (comma-separate multiple tokens for rotation)",
			c.Platform, strings.Join(vars, ", "),
		)
	}
	if c.OrganizationsFile == "" {
		return errors.New("organizations_file is required")
	}
	if _, err := os.Stat(c.OrganizationsFile); err != nil {
		return fmt.Errorf("organizations file %q not found: %w", c.OrganizationsFile, err)
	}
	if c.Platform == "bitbucketserver" && c.BaseURL == "" {
		return errors.New("base_url is required for the bitbucketserver platform")
	}
	return nil
}

// LoadOrganizations reads the newline-delimited organization list, skipping
// blank lines and # comments.
func LoadOrganizations(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open organizations file %q: %w", path, err)
	}
	defer file.Close()

	var orgs []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		orgs = append(orgs, line)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, fmt.Errorf("failed to read organizations file %q: %w", path, scanErr)
	}
	if len(orgs) == 0 {
		return nil, fmt.Errorf("organizations file %q contains no organizations", path)
	}
	return orgs, nil
}

// applyEnvFallbacks fills the token from the platform's environment
// variables when the config carries none.
func (c *Config) applyEnvFallbacks() {
	if c.Token != "" {
		return
	}
	for _, name := range tokenEnvVars[c.Platform] {
		if val := os.Getenv(name); val != "" {
			c.Token = val
			return
		}
	}
}

// resolveToken expands environment variable references (${VAR}) and, if the
// resulting string is a path to an existing file, reads the token from the
// file.
func resolveToken(raw string) string {
	if raw == "" {
		return raw
	}

	resolved := envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		logger.Warnf("Environment variable %q is not set", varName)
		return ""
	})

	if _, statErr := os.Stat(resolved); statErr == nil {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			logger.Warnf("Failed to read token file %q: %v", resolved, readErr)
			return resolved
		}
		logger.Infof("Read token from file %q", resolved)
		return strings.TrimSpace(string(data))
	}

	return resolved
}
