package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/reconcile"
)

var reconcileConcurrency int

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Settle journaled submissions whose outcome is unknown",
	Long: `Look up every pending or ambiguous submission in the journal by hash and
record its final result. Nothing is resubmitted: an entry stays pending while
its transaction can still validate, and fails once the ledger passes its
LastLedgerSequence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !loaded.JournalEnabled() {
			return errors.New("reconcile needs [journal] path to be set")
		}
		return withApp(func(a *app) error {
			r, err := reconcile.New(reconcile.Config{
				Dialer:      a.dialer,
				Gateway:     a.opts,
				Journal:     a.journal,
				Logger:      logger,
				Concurrency: reconcileConcurrency,
			})
			if err != nil {
				return err
			}
			report, err := r.Run(cmd.Context())
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
	reconcileCmd.Flags().IntVar(&reconcileConcurrency, "concurrency", 4, "lookups in flight")
}
