package cmdapp

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ladzaretti/codex-switch/input"
	"github.com/ladzaretti/codex-switch/internal/vaultmgr"
)

// newVaultCmd groups init/unlock/lock/status under "vault", mirroring
// how the CLI's other option groups are attached as cobra command
// groups rather than flat top-level verbs.
func newVaultCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "manage the credential vault's lock state",
	}

	cmd.AddCommand(
		newVaultInitCmd(o),
		newVaultUnlockCmd(o),
		newVaultLockCmd(o),
		newVaultStatusCmd(o),
	)

	return cmd
}

func newVaultInitCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "initialize the vault with a new master password",
		RunE: func(*cobra.Command, []string) error {
			pass, err := input.PromptNewPassword(o.Out, int(o.In.Fd()), vaultmgr.MinPasswordLen)
			if err != nil {
				return err
			}

			if err := o.Facade.InitVault(context.Background(), string(pass)); err != nil {
				return err
			}

			o.Infof("vault initialized and unlocked\n")

			return nil
		},
	}
}

func newVaultUnlockCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "unlock the vault for this session",
		RunE: func(*cobra.Command, []string) error {
			ctx := context.Background()

			if o.Facade.TryUnlockFromSession(ctx) {
				o.Infof("vault unlocked from cached session\n")
				return nil
			}

			pass, err := input.PromptPassword(o.Out, int(o.In.Fd()))
			if err != nil {
				return err
			}

			if err := o.Facade.UnlockVault(ctx, string(pass)); err != nil {
				return err
			}

			o.Infof("vault unlocked\n")

			return nil
		},
	}
}

func newVaultLockCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "lock the vault, discarding the in-memory key",
		RunE: func(*cobra.Command, []string) error {
			o.Facade.LockVault()
			o.Infof("vault locked\n")

			return nil
		},
	}
}

func newVaultStatusCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report the vault's lock state and account count",
		RunE: func(*cobra.Command, []string) error {
			res, err := o.Facade.VaultStatus(context.Background())
			if err != nil {
				return err
			}

			o.Printf("%s\n", fmt.Sprintf("state: %s, accounts: %d", res.State, res.AccountCount))

			return nil
		},
	}
}
