package cli

import (
	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
)

// conditionCmd represents the condition command group
var conditionCmd = &cobra.Command{
	Use:   "condition",
	Short: "Generate and verify PREIMAGE-SHA-256 crypto-conditions",
	// Conditions are computed locally; no configuration is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var conditionGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a condition and its fulfillment",
	Long: `Generate a random 32-byte preimage and print the condition to put on an
escrow together with the fulfillment that releases it. Keep the fulfillment
secret until the escrow should be finished.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, localService().GenerateCondition(cmd.Context()))
	},
}

var conditionVerifyCmd = &cobra.Command{
	Use:   "verify <condition> <fulfillment>",
	Short: "Check that a fulfillment satisfies a condition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, localService().VerifyCondition(cmd.Context(), api.VerifyConditionInput{
			Condition:   args[0],
			Fulfillment: args[1],
		}))
	},
}

// localService serves verbs that never reach the ledger.
func localService() *api.Service {
	return api.NewService(api.ServiceConfig{Logger: logger})
}

func init() {
	rootCmd.AddCommand(conditionCmd)
	conditionCmd.AddCommand(conditionGenerateCmd, conditionVerifyCmd)
}
