package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/macdtrader/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  macdtrader config init -o macdtrader.yaml
  macdtrader config validate -f macdtrader.yaml`,
		Annotations: map[string]string{skipConfig: "true"},
	}

	var output string
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Generate a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  macdtrader backtest --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "macdtrader.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate a configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = o.ConfigPath
			}
			if path == "" {
				return fmt.Errorf("--file or --config is required")
			}
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Symbol:   %s (%s, cash %.2f)\n", cfg.Backtest.Symbol, cfg.Instrument().Kind, cfg.Backtest.InitialCash)
			fmt.Fprintf(out, "  Strategy: %s\n", cfg.Params())
			fmt.Fprintf(out, "  Data:     %s %s\n", cfg.Data.Source, cfg.Data.Dir)
			if cfg.Journal.Enabled {
				fmt.Fprintf(out, "  Journal:  %s\n", cfg.Journal.DBPath)
			}
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
