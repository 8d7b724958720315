package cmdapp

import (
	"context"

	"github.com/spf13/cobra"
)

func newSwitchCmd(o *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "switch ID",
		Short: "atomically replace the live credential file with the given account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("force") {
				force = o.App.Config.Switch.ForceRestartDefault
			}

			h, err := o.Facade.SwitchAccount(context.Background(), args[0], force)
			if err != nil {
				return err
			}

			o.Infof("switched (history %s, result %s)\n", h.ID, h.Result)

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "terminate running cli processes after replacing the live file")

	return cmd
}
