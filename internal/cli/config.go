package cli

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/buildlens/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage buildlens configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}

		if _, err := os.Stat(path); err == nil {
			fmt.Fprintf(os.Stderr, "Config file already exists at %s\n", path)
			return nil
		}

		cfg := config.Default()
		if err := config.Save(cfg); err != nil {
			return errors.Wrap(err, "writing config")
		}

		fmt.Fprintf(os.Stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		if fileCfg, err := config.LoadFile(); err == nil {
			cfg = cfg.Merge(fileCfg)
		}

		cfg, err := config.SetField(cfg, args[0], args[1])
		if err != nil {
			return err
		}

		if err := config.Save(cfg); err != nil {
			return errors.Wrap(err, "saving config")
		}

		shown := args[1]
		if args[0] == "github.token" || args[0] == "gitlab.token" {
			shown = "********"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", args[0], shown)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}

		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}

		fmt.Fprint(os.Stdout, string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
}
