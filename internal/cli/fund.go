package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/wallet"
)

var fundSeed string

// fundCmd represents the fund command
var fundCmd = &cobra.Command{
	Use:   "fund [address]",
	Short: "Fund an account from the test network faucet",
	Long: `Ask the configured network's faucet to fund an address, or the account of
--seed when no address is given. Only test networks have a faucet.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !loaded.HasFaucet() {
			return errors.New("network " + loaded.Network.Name + " has no faucet")
		}
		var address string
		switch {
		case len(args) == 1:
			address = args[0]
		case fundSeed != "":
			w, err := wallet.FromSeed(fundSeed)
			if err != nil {
				return err
			}
			address = w.Address
			w.Close()
		default:
			return errors.New("an address or --seed is required")
		}

		faucet := &gateway.Faucet{URL: loaded.Network.FaucetURL}
		res, err := faucet.Fund(cmd.Context(), address)
		if err != nil {
			return err
		}
		logger.Info("faucet funded account", "address", res.Address, "amount", res.Amount)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(fundCmd)
	fundCmd.Flags().StringVar(&fundSeed, "seed", "", "fund the account of this seed")
}
