package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/opsbox/opsbox/api/v1beta1/configs"
)

func NewConfigCmd(ra *RootArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the opsbox configuration file",
	}

	cmd.AddCommand(
		newConfigInitCmd(ra),
		newConfigShowCmd(ra),
		newConfigSchemaCmd(),
	)

	return cmd
}

func newConfigInitCmd(ra *RootArgs) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := ra.ConfigPath
			if path == "" {
				path = configs.GetPath()
			}

			return configs.WriteDefault(path, force) //nolint:wrapcheck // Already descriptive.
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and replace an existing file")

	bindEnvVars(cmd)

	return cmd
}

func newConfigShowCmd(ra *RootArgs) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration, defaults included",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ra.LoadConfig()
			if err != nil {
				return err
			}

			b, err := cfg.MarshalYAML()
			if err != nil {
				return fmt.Errorf("marshal config yaml: %w", err)
			}

			slog.Debug("active configuration", slog.String("path", ra.ConfigPath))

			return writeYAML(cmd.OutOrStdout(), string(b))
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), string(configs.Schema()))
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}
