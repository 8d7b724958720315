package cmdapp

import (
	"context"

	"github.com/spf13/cobra"
)

func newHistoryCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "list recorded switch and rollback operations",
	}

	cmd.AddCommand(newHistoryListCmd(o))

	return cmd
}

func newHistoryListCmd(o *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list switch history, most recent first",
		RunE: func(*cobra.Command, []string) error {
			rows, err := o.Facade.ListHistory(context.Background(), limit)
			if err != nil {
				return err
			}

			for _, h := range rows {
				o.Printf("%s\t%s\t%s\n", h.ID, h.Result, h.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to return")

	return cmd
}
