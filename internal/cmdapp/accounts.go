package cmdapp

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ladzaretti/codex-switch/genericclioptions"
	"github.com/ladzaretti/codex-switch/internal/store"
	"github.com/ladzaretti/codex-switch/util"
)

func newAccountsCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "accounts",
		Aliases: []string{"account"},
		Short:   "list and manage registered accounts",
	}

	cmd.AddCommand(
		newAccountsListCmd(o),
		newAccountsUpdateMetaCmd(o),
		newAccountsDeleteCmd(o),
	)

	return cmd
}

// newAccountsListCmd filters the store's full account list client-side
// by a name glob and by tag globs.
func newAccountsListCmd(o *RootOptions) *cobra.Command {
	search := &genericclioptions.SearchOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "list registered accounts, optionally filtered by name or tag",
		RunE: func(*cobra.Command, []string) error {
			accounts, err := o.Facade.ListAccounts(context.Background())
			if err != nil {
				return err
			}

			for _, a := range matchAccounts(accounts, search) {
				o.Printf("%s\t%s\t%v\n", a.ID, a.Name, a.Tags)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&search.Name, "name", "", "", search.Usage(genericclioptions.NAME))
	cmd.Flags().StringSliceVarP(&search.Labels, "tag", "", nil, search.Usage(genericclioptions.LABELS))

	return cmd
}

func matchAccounts(accounts []store.Account, search *genericclioptions.SearchOptions) []store.Account {
	if search.Name == "" && len(search.Labels) == 0 {
		return accounts
	}

	matched := make([]store.Account, 0, len(accounts))

	for _, a := range accounts {
		if search.Name != "" {
			if ok, _ := filepath.Match(search.Name, a.Name); !ok {
				continue
			}
		}

		if len(search.Labels) > 0 && !hasAnyTag(a.Tags, search.Labels) {
			continue
		}

		matched = append(matched, a)
	}

	return matched
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range tags {
			if ok, _ := filepath.Match(w, t); ok {
				return true
			}
		}
	}

	return false
}

func newAccountsUpdateMetaCmd(o *RootOptions) *cobra.Command {
	var name, tags string

	cmd := &cobra.Command{
		Use:   "update-meta ID",
		Short: "update an account's display name and tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return o.Facade.UpdateAccountMeta(context.Background(), args[0], name, util.ParseCommaSeparated(tags))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags, replaces the existing set")

	return cmd
}

func newAccountsDeleteCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "remove an account and its stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return o.Facade.DeleteAccount(context.Background(), args[0])
		},
	}
}
