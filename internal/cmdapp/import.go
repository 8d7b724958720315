package cmdapp

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ladzaretti/codex-switch/util"
)

func newImportCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "register a codex cli credential as a managed account",
	}

	cmd.AddCommand(
		newImportCurrentCmd(o),
		newImportFromFileCmd(o),
		newImportViaLoginCmd(o),
	)

	return cmd
}

func newImportCurrentCmd(o *RootOptions) *cobra.Command {
	var name, tags string

	cmd := &cobra.Command{
		Use:   "current",
		Short: "import the cli's current live credential file",
		RunE: func(*cobra.Command, []string) error {
			a, err := o.Facade.ImportCurrent(context.Background(), name, util.ParseCommaSeparated(tags))
			if err != nil {
				return err
			}

			o.Infof("imported account %s (%s)\n", a.ID, a.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for the imported account")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")

	return cmd
}

func newImportFromFileCmd(o *RootOptions) *cobra.Command {
	var name, tags string

	cmd := &cobra.Command{
		Use:   "from-file PATH",
		Short: "import a credential file without touching the live file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			a, err := o.Facade.ImportFromFile(context.Background(), args[0], name, util.ParseCommaSeparated(tags))
			if err != nil {
				return err
			}

			o.Infof("imported account %s (%s)\n", a.ID, a.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for the imported account")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")

	return cmd
}

func newImportViaLoginCmd(o *RootOptions) *cobra.Command {
	var name, tags string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "drive an interactive cli login and import the resulting credential",
		RunE: func(*cobra.Command, []string) error {
			a, err := o.Facade.ImportViaLogin(context.Background(), name, util.ParseCommaSeparated(tags))
			if err != nil {
				return err
			}

			o.Infof("imported account %s (%s)\n", a.ID, a.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for the imported account")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")

	return cmd
}
