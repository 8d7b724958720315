package cmdapp

import (
	"context"

	"github.com/spf13/cobra"
)

func newRollbackCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback HISTORY_ID",
		Short: "restore the live credential file from a previous switch's snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			h, err := o.Facade.Rollback(context.Background(), args[0])
			if err != nil {
				return err
			}

			o.Infof("rolled back (history %s, result %s)\n", h.ID, h.Result)

			return nil
		},
	}
}
