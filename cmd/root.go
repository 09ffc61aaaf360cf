// Package cmd wires the command-line interface: flag parsing, dependency
// wiring, and the inventory and users subcommands.
package cmd

import (
	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var (
	configPath        string
	platformName      string
	baseURL           string
	orgsFile          string
	outputPath        string
	maxOrgWorkers     int
	maxProjectWorkers int
	verbose           bool
)

//nolint:gochecknoglobals // required by cobra CLI pattern
var rootCmd = &cobra.Command{
	Use:   "repoinventory",
	Short: "Source-control inventory collector for Azure DevOps, Bitbucket Server, and GitHub",
	Long: `Walks every project of the given organizations, decides which backend
actually holds each project's content (Git, TFVC, package feeds, wikis,
or plain file storage), measures repository sizes with a best-effort
cascade, and exports the result as CSV.

Classification and sizing never abort a run: failures degrade single
cells to "Unknown" or "Error" and the remaining projects proceed.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetFormatter(&logger.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		if verbose {
			logger.SetLevel(logger.DebugLevel)
		}
		// optional; tokens may come from the process environment instead
		if err := godotenv.Load(); err == nil {
			logger.Debug("Loaded environment from .env")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

//nolint:gochecknoinits // required by cobra CLI pattern
func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the configuration file (default: search standard locations)")
	rootCmd.PersistentFlags().StringVar(&platformName, "platform", "",
		"Platform to inventory (azuredevops, bitbucketserver, github)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"API base URL (required for Bitbucket Server)")
	rootCmd.PersistentFlags().StringVar(&orgsFile, "orgs-file", "",
		"Newline-delimited file of organizations to process")
	rootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "",
		"Output CSV path (default: timestamped file in the working directory)")
	rootCmd.PersistentFlags().IntVar(&maxOrgWorkers, "max-org-workers", 0,
		"Concurrent organizations (default 5)")
	rootCmd.PersistentFlags().IntVar(&maxProjectWorkers, "max-project-workers", 0,
		"Concurrent projects per organization (default 3)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")
}
