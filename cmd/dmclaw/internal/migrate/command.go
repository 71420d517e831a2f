package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/dmclaw/pkg/migrate"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate configuration between formats",
		Example: `  dmclaw migrate to-dhall
  dmclaw migrate to-dhall --dry-run`,
	}

	var dhallOpts migrate.ToDhallOptions

	toDhallCmd := &cobra.Command{
		Use:   "to-dhall",
		Short: "Convert JSON config to Dhall format",
		Args:  cobra.NoArgs,
		Example: `  dmclaw migrate to-dhall
  dmclaw migrate to-dhall --dry-run
  dmclaw migrate to-dhall --config ~/.dmclaw/config.json
  dmclaw migrate to-dhall --output ~/.dmclaw/config.dhall --force`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := migrate.RunToDhall(dhallOpts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dhallOpts.DryRun {
				fmt.Fprintln(out, "-- Generated Dhall config (dry-run)")
				fmt.Fprint(out, result.Dhall)
			} else {
				fmt.Fprintf(out, "Dhall config written to %s\n", result.OutputPath)
			}
			if len(result.Warnings) > 0 {
				fmt.Fprintln(out, "\nWarnings:")
				for _, w := range result.Warnings {
					fmt.Fprintf(out, "  - %s\n", w)
				}
			}
			return nil
		},
	}

	toDhallCmd.Flags().StringVar(&dhallOpts.ConfigPath, "config", "",
		"JSON config file path (default: ~/.dmclaw/config.json)")
	toDhallCmd.Flags().StringVar(&dhallOpts.OutputPath, "output", "",
		"Dhall output file path (default: same dir as input, .dhall extension)")
	toDhallCmd.Flags().BoolVar(&dhallOpts.DryRun, "dry-run", false,
		"Print generated Dhall without writing")
	toDhallCmd.Flags().BoolVar(&dhallOpts.Force, "force", false,
		"Overwrite existing output file")

	cmd.AddCommand(toDhallCmd)

	return cmd
}
