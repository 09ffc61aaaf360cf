package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rios0rios0/repoinventory/application"
	"github.com/rios0rios0/repoinventory/config"
	"github.com/rios0rios0/repoinventory/infrastructure/export"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Collect per-project member and administrator lists",
	Long: `Discover every project of the configured organizations and export one
CSV row per project with its member and administrator identities.
Service accounts and build agents are filtered out; administrator
detection follows the configured group-name patterns.`,
	RunE: runUsers,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.AddCommand(usersCmd)
}

func runUsers(_ *cobra.Command, _ []string) error {
	container, err := buildContainer()
	if err != nil {
		return err
	}

	return container.Invoke(func(cfg *config.Config, svc *application.UsersService) error {
		orgs, err := config.LoadOrganizations(cfg.OrganizationsFile)
		if err != nil {
			return err
		}

		records, summary, err := svc.Run(context.Background(), orgs, application.RunOptions{
			MaxOrgWorkers:     maxOrgWorkers,
			MaxProjectWorkers: maxProjectWorkers,
			Verbose:           verbose,
		})
		if err != nil {
			return err
		}

		path := outputPath
		if path == "" {
			path = fmt.Sprintf("users_inventory_%s.csv", time.Now().Format("20060102_150405"))
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		if err := export.WriteUsersCSV(file, records); err != nil {
			return err
		}
		logger.Infof("Users inventory written to %s", path)

		summary.OutputFile = path
		return export.RenderSummary(os.Stdout, summary)
	})
}
