// Package cmdapp builds the cobra command tree for cmd/codexswitch.
// Every subcommand calls one internal/facade operation (vault unlock
// first tries TryUnlockFromSession, then UnlockVault); cmdapp's own job
// is flag binding, prompting, and result formatting.
package cmdapp

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ladzaretti/codex-switch/genericclioptions"
	"github.com/ladzaretti/codex-switch/internal/clierror"
	"github.com/ladzaretti/codex-switch/internal/config"
	"github.com/ladzaretti/codex-switch/internal/facade"
)

// RootOptions threads the resolved configuration and constructed
// facade through every subcommand's Run closure.
type RootOptions struct {
	ConfigPath string

	App    *facade.AppContext
	Facade *facade.Facade

	genericclioptions.IOStreams
}

var _ genericclioptions.CmdOptions = &RootOptions{}

func NewRootOptions(iostreams genericclioptions.IOStreams) *RootOptions {
	return &RootOptions{IOStreams: iostreams}
}

func (o *RootOptions) Complete() error {
	if !o.Verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(os.Stderr)
	}

	log.SetFlags(0)

	return nil
}

func (*RootOptions) Validate() error {
	return nil
}

func (o *RootOptions) Run() error {
	fc, err := config.LoadFileConfig(o.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := facade.NewAppContext(context.Background(), fc.Resolve())
	if err != nil {
		return fmt.Errorf("initialize app context: %w", err)
	}

	o.App = app
	o.Facade = facade.New(app)

	return nil
}

// NewDefaultCommand builds the "codex-switch" root command with every
// subcommand group attached.
func NewDefaultCommand(iostreams genericclioptions.IOStreams, args []string) *cobra.Command {
	o := NewRootOptions(iostreams)

	cmd := &cobra.Command{
		Use:   "codex-switch",
		Short: "manage multiple codex cli credentials",
		Long:  "codex-switch stores encrypted codex cli credentials and swaps the live auth file between them.",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return genericclioptions.ExecuteCommand(o)
		},
	}

	cmd.SetArgs(args)

	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&o.ConfigPath, "config", "c", "", "path to config.toml (default: <app-data>/config.toml)")

	cmd.AddCommand(
		newVaultCmd(o),
		newImportCmd(o),
		newAccountsCmd(o),
		newSwitchCmd(o),
		newRollbackCmd(o),
		newHistoryCmd(o),
		newQuotaCmd(o),
		newDiagCmd(o),
	)

	return cmd
}

// Execute runs the root command and reports failures through clierror.
func Execute(iostreams genericclioptions.IOStreams, args []string) error {
	return clierror.Check(NewDefaultCommand(iostreams, args).Execute())
}
