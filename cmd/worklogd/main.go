package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/config"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
)

var version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "worklogd",
		Short: "Bridge Discord voice presence to Jira worklogs",
		Long:  `worklogd tracks how long users stay in mapped Discord voice channels and records the time as Jira worklogs, attributed to the right person.`,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(
		newStartCmd(&configPath),
		newValidateCmd(&configPath),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newStartCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bridge daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(resolveConfigPath(*configPath))
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and mapping files",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(*configPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config invalid: %w", err)
			}

			st, err := store.Open(cfg.Store.TasksPath, cfg.Store.UsersPath)
			if err != nil {
				return fmt.Errorf("mapping files invalid: %w", err)
			}
			snap := st.Snapshot()

			fmt.Printf("Config OK (%s)\n", path)
			fmt.Printf("Mappings OK: %d channels, %d users\n", len(snap.Tasks()), len(snap.Accounts()))
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show worklogd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("worklogd v%s\n", version)
		},
	}
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	return config.DefaultConfigPath()
}
