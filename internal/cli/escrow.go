package cli

import (
	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
)

// escrowCmd represents the escrow command group
var escrowCmd = &cobra.Command{
	Use:   "escrow",
	Short: "Create, finish, cancel and inspect escrows",
	Long: `Escrow commands. An escrow is identified by its owner address and the
sequence number of the EscrowCreate that made it.`,
}

var escrowFlags struct {
	seed           string
	destination    string
	amount         string
	finishAfter    string
	cancelAfter    string
	condition      string
	destinationTag uint32
	fulfillment    string
}

var escrowCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Lock funds in a new escrow",
	Long: `Create an escrow. At least one of --finish-after and --condition is required.
Time bounds accept a duration (90s, 2h), whole days (3d) or an RFC 3339 time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := parseAmount(escrowFlags.amount)
		if err != nil {
			return err
		}
		finishAfter, err := parseBound(escrowFlags.finishAfter)
		if err != nil {
			return err
		}
		cancelAfter, err := parseBound(escrowFlags.cancelAfter)
		if err != nil {
			return err
		}
		in := api.CreateEscrowInput{
			Seed:        escrowFlags.seed,
			Destination: escrowFlags.destination,
			Amount:      amount,
			FinishAfter: finishAfter,
			CancelAfter: cancelAfter,
			Condition:   escrowFlags.condition,
		}
		if cmd.Flags().Changed("destination-tag") {
			tag := escrowFlags.destinationTag
			in.DestinationTag = &tag
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.CreateEscrow(cmd.Context(), in))
		})
	},
}

var escrowFinishCmd = &cobra.Command{
	Use:   "finish <owner> <sequence>",
	Short: "Release an escrow to its destination",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseSequence(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.FinishEscrow(cmd.Context(), api.FinishEscrowInput{
				Seed:        escrowFlags.seed,
				Owner:       args[0],
				Sequence:    seq,
				Fulfillment: escrowFlags.fulfillment,
			}))
		})
	},
}

var escrowCancelCmd = &cobra.Command{
	Use:   "cancel <owner> <sequence>",
	Short: "Return an expired escrow to its owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseSequence(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.CancelEscrow(cmd.Context(), api.CancelEscrowInput{
				Seed:     escrowFlags.seed,
				Owner:    args[0],
				Sequence: seq,
			}))
		})
	},
}

var escrowInfoCmd = &cobra.Command{
	Use:   "info <owner> <sequence>",
	Short: "Show an open escrow and its status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseSequence(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.EscrowInfo(cmd.Context(), args[0], seq))
		})
	},
}

var escrowStatusCmd = &cobra.Command{
	Use:   "status <owner> <sequence>",
	Short: "Show only the status of an open escrow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseSequence(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			res := a.service.EscrowInfo(cmd.Context(), args[0], seq)
			if state, ok := res.Data.(api.EscrowState); ok {
				res.Data = map[string]any{"status": state.Status}
			}
			return printResult(cmd, res)
		})
	},
}

var escrowOutcomeCmd = &cobra.Command{
	Use:   "outcome <owner> <sequence>",
	Short: "Tell whether an escrow is open, finished or cancelled",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		seq, err := parseSequence(args[1])
		if err != nil {
			return err
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.EscrowOutcome(cmd.Context(), args[0], seq))
		})
	},
}

var escrowListCmd = &cobra.Command{
	Use:   "list <owner>",
	Short: "List the open escrows an account owns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.ListEscrows(cmd.Context(), args[0]))
		})
	},
}

func init() {
	rootCmd.AddCommand(escrowCmd)
	escrowCmd.AddCommand(escrowCreateCmd, escrowFinishCmd, escrowCancelCmd,
		escrowInfoCmd, escrowStatusCmd, escrowOutcomeCmd, escrowListCmd)

	escrowCmd.PersistentFlags().StringVar(&escrowFlags.seed, "seed", "", "signing seed (default [operator] admin_seed)")

	escrowCreateCmd.Flags().StringVar(&escrowFlags.destination, "destination", "", "destination address")
	escrowCreateCmd.Flags().StringVar(&escrowFlags.amount, "amount", "", "drops, or a JSON token amount")
	escrowCreateCmd.Flags().StringVar(&escrowFlags.finishAfter, "finish-after", "", "earliest finish time")
	escrowCreateCmd.Flags().StringVar(&escrowFlags.cancelAfter, "cancel-after", "", "earliest cancel time")
	escrowCreateCmd.Flags().StringVar(&escrowFlags.condition, "condition", "", "hex PREIMAGE-SHA-256 condition")
	escrowCreateCmd.Flags().Uint32Var(&escrowFlags.destinationTag, "destination-tag", 0, "destination tag")
	_ = escrowCreateCmd.MarkFlagRequired("destination")
	_ = escrowCreateCmd.MarkFlagRequired("amount")

	escrowFinishCmd.Flags().StringVar(&escrowFlags.fulfillment, "fulfillment", "", "hex fulfillment for a conditional escrow")
}
