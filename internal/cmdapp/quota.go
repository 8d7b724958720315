package cmdapp

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/ladzaretti/codex-switch/internal/facade"
)

func newQuotaCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "probe and inspect remaining account quota",
	}

	cmd.AddCommand(
		newQuotaRefreshCmd(o),
		newQuotaDashboardCmd(o),
		newQuotaSnapshotsCmd(o),
		newQuotaSetPolicyCmd(o),
	)

	return cmd
}

func newQuotaRefreshCmd(o *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "refresh [ID]",
		Short: "probe current quota for one account, or every account if ID is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var accountID string
			if len(args) == 1 {
				accountID = args[0]
			}

			snaps, err := o.Facade.RefreshQuota(context.Background(), accountID, force)
			if err != nil {
				return err
			}

			for _, s := range snaps {
				o.Printf("%s\t%s\t%s\n", s.AccountID, s.Mode, s.QuotaState)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "bypass the cached result even if it is still fresh")

	return cmd
}

func newQuotaDashboardCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "show the latest known quota snapshot per account, without probing",
		RunE: func(*cobra.Command, []string) error {
			entries, err := o.Facade.QuotaDashboard(context.Background())
			if err != nil {
				return err
			}

			for _, e := range entries {
				if e.Snapshot == nil {
					o.Printf("%s\t%s\tno snapshot yet\n", e.Account.ID, e.Account.Name)
					continue
				}

				o.Printf("%s\t%s\t%s\n", e.Account.ID, e.Account.Name, e.Snapshot.QuotaState)
			}

			return nil
		},
	}
}

func newQuotaSnapshotsCmd(o *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "snapshots ID",
		Short: "list an account's quota snapshot history, most recent first",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			snaps, err := o.Facade.ListSnapshots(context.Background(), args[0], limit)
			if err != nil {
				return err
			}

			for _, s := range snaps {
				o.Printf("%s\t%s\t%s\n", s.ID, s.Mode, s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries to return")

	return cmd
}

func newQuotaSetPolicyCmd(o *RootOptions) *cobra.Command {
	var (
		cacheTTL    time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "set-refresh-policy",
		Short: "record the probe cache TTL and concurrency in the resolved config (the running prober keeps its own)",
		RunE: func(*cobra.Command, []string) error {
			o.Facade.SetRefreshPolicy(facade.RefreshPolicy{
				CacheTTL:       cacheTTL,
				MaxConcurrency: int64(concurrency),
			})

			return nil
		},
	}

	cmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 5*time.Minute, "how long a probe result stays fresh")
	cmd.Flags().IntVar(&concurrency, "max-concurrency", 4, "maximum concurrent outbound probes")

	return cmd
}
