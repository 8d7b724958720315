package cmdapp

import (
	"context"

	"github.com/spf13/cobra"
)

func newDiagCmd(o *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "runtime diagnostics for support and debugging",
	}

	cmd.AddCommand(
		newDiagRuntimeCmd(o),
		newDiagCLIStatusCmd(o),
	)

	return cmd
}

func newDiagRuntimeCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "runtime",
		Short: "report database path, live file state, and schema version",
		RunE: func(*cobra.Command, []string) error {
			d, err := o.Facade.GetRuntimeDiagnostics(context.Background())
			if err != nil {
				return err
			}

			o.Printf("database:     %s\n", d.DatabasePath)
			o.Printf("live file:    %s (exists: %v)\n", d.LiveAuthFilePath, d.LiveFileExists)
			o.Printf("snapshots:    %s\n", d.SnapshotsDir)
			o.Printf("schema:       v%d\n", d.SchemaVersion)
			o.Printf("cli processes: %d\n", d.CLIProcessCount)

			return nil
		},
	}
}

func newDiagCLIStatusCmd(o *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cli-status",
		Short: "report whether the codex cli is currently running",
		RunE: func(*cobra.Command, []string) error {
			s, err := o.Facade.GetCLIStatus(context.Background())
			if err != nil {
				return err
			}

			o.Printf("running: %v\tprocesses: %d\tchecked: %s\n",
				s.Running, s.ProcessCount, s.LastCheckedAt.Format("2006-01-02T15:04:05Z07:00"))

			return nil
		},
	}
}
