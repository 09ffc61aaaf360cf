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
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Collect the repository inventory and export it as CSV",
	Long: `Discover every project of the configured organizations, classify each
project's authoritative content backend, measure its repositories, and
write one CSV row per repository.`,
	RunE: runInventory,
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.AddCommand(inventoryCmd)
}

func runInventory(_ *cobra.Command, _ []string) error {
	container, err := buildContainer()
	if err != nil {
		return err
	}

	return container.Invoke(func(cfg *config.Config, svc *application.InventoryService) error {
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
			path = fmt.Sprintf("repo_inventory_%s.csv", time.Now().Format("20060102_150405"))
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()

		if err := export.WriteInventoryCSV(file, records); err != nil {
			return err
		}
		logger.Infof("Inventory written to %s", path)

		summary.OutputFile = path
		return export.RenderSummary(os.Stdout, summary)
	})
}
