package cli

import (
	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
	"github.com/LeJamon/goxrpl-escrow/internal/core/tx"
)

// mptCmd represents the mpt command group
var mptCmd = &cobra.Command{
	Use:   "mpt",
	Short: "Create, inspect and destroy multi-purpose token issuances",
}

var mptFlags struct {
	seed          string
	assetScale    uint8
	maximumAmount string
	transferFee   uint16
	metadata      string
	flags         tx.MPTFlags
}

var mptCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an issuance",
	Long: `Create an MPT issuance. --metadata takes a JSON object or @file; fields
beyond the canonical set are folded into additional_info automatically.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := api.CreateIssuanceInput{
			Seed:          mptFlags.seed,
			AssetScale:    mptFlags.assetScale,
			MaximumAmount: mptFlags.maximumAmount,
			TransferFee:   mptFlags.transferFee,
			Flags:         mptFlags.flags,
		}
		if mptFlags.metadata != "" {
			fields, err := readJSONObject(mptFlags.metadata)
			if err != nil {
				return err
			}
			in.Metadata = fields
		}
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.CreateIssuance(cmd.Context(), in))
		})
	},
}

var mptInfoCmd = &cobra.Command{
	Use:   "info <issuer> <issuance-id>",
	Short: "Show an issuance and its decoded metadata",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.IssuanceInfo(cmd.Context(), args[0], args[1]))
		})
	},
}

var mptDestroyCmd = &cobra.Command{
	Use:   "destroy <issuance-id>",
	Short: "Destroy an issuance with no outstanding balances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app) error {
			return printResult(cmd, a.service.DestroyIssuance(cmd.Context(), api.DestroyIssuanceInput{
				Seed:       mptFlags.seed,
				IssuanceID: args[0],
			}))
		})
	},
}

func init() {
	rootCmd.AddCommand(mptCmd)
	mptCmd.AddCommand(mptCreateCmd, mptInfoCmd, mptDestroyCmd)

	mptCmd.PersistentFlags().StringVar(&mptFlags.seed, "seed", "", "issuer seed (default [operator] admin_seed)")

	f := mptCreateCmd.Flags()
	f.Uint8Var(&mptFlags.assetScale, "asset-scale", 0, "decimal places of one unit")
	f.StringVar(&mptFlags.maximumAmount, "maximum-amount", "", "supply cap as a base-10 integer")
	f.Uint16Var(&mptFlags.transferFee, "transfer-fee", 0, "fee in 1/1000 of a percent, needs --can-transfer")
	f.StringVar(&mptFlags.metadata, "metadata", "", "metadata JSON object or @file")
	f.BoolVar(&mptFlags.flags.CanLock, "can-lock", false, "holders' balances may be locked")
	f.BoolVar(&mptFlags.flags.RequireAuth, "require-auth", false, "holders need authorization")
	f.BoolVar(&mptFlags.flags.CanEscrow, "can-escrow", false, "balances may be escrowed")
	f.BoolVar(&mptFlags.flags.CanTrade, "can-trade", false, "tradable on the DEX")
	f.BoolVar(&mptFlags.flags.CanTransfer, "can-transfer", false, "transferable between holders")
	f.BoolVar(&mptFlags.flags.CanClawback, "can-clawback", false, "issuer may claw back")
}
