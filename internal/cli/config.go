package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/andy/timeledger/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(config.DefaultConfigPath())
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDefault()
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := config.DefaultConfig().Save(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("✓ Config written to %s\n", path)
		return nil
	},
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List the environment variables that override the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		usage, err := config.EnvUsage()
		if err != nil {
			return err
		}
		fmt.Println(usage)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
}
