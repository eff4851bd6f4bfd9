package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openl10n/tmsync/internal/config"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a config file with the default settings",
	Long: `Init-config writes a starter configuration file. Without a path it
writes ./tmsync.yaml. Existing files are never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	// The command only writes defaults; skip config and database setup.
	PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
	PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
	RunE:               runInitConfig,
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := "tmsync.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	defaults := config.Default()
	v := viper.New()
	v.Set("database.path", defaults.Database.Path)
	v.Set("sync.system_user", defaults.Sync.SystemUser)
	v.Set("sync.suggest_on_conflict", defaults.Sync.SuggestOnConflict)
	v.Set("sync.default_language", defaults.Sync.DefaultLanguage)
	v.Set("log.level", defaults.Log.Level)
	v.Set("log.format", defaults.Log.Format)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	printSuccess("Wrote %s", path)
	return nil
}
