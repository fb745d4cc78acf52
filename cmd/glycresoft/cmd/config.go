package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/BostonUniversityCBMS/Glycresoft/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create settings files",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write the default settings as YAML",
	Long:  `Write the default settings to file, or to stdout when no file is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return config.WriteDefault(os.Stdout)
		}
		f, err := os.OpenFile(args[0], os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			return fmt.Errorf("failed to create settings file: %w", err)
		}
		if err := config.WriteDefault(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("Wrote default settings to %s\n", args[0])
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings after file, environment and flag overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		return cfg.Write(os.Stdout)
	},
}

func init() {
	addSettingsFlags(configShowCmd.Flags())
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
