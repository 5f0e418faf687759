package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/catalystcommunity/wsprobe/config"
)

func configCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config <command>",
		Short: "Manage probe and server configuration",
		Example: heredoc.Doc(`
			$ wsprobe config init
			$ wsprobe config list`),
	}

	cmd.AddCommand(configInitCommand())
	cmd.AddCommand(configListCommand(cfg))

	return cmd
}

func configInitCommand() *cobra.Command {
	var (
		path  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Example: heredoc.Doc(`
			$ wsprobe config init
			$ wsprobe config init --path ./probe.yaml --force
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return ErrConfigExists
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}

			out, err := yaml.Marshal(config.Default())
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, out, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "config created: %v\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", config.DefaultFileName, "Where to write the file")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func configListCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the effective configuration",
		Example: heredoc.Doc(`
			$ wsprobe config list
			$ WSPROBE_TIMEOUT=3s wsprobe config list
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(*cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
