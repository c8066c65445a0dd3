package cli

import (
	"github.com/spf13/cobra"
)

// metadataCmd represents the metadata command group
var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Encode and decode MPTokenMetadata",
	// Encoding is local; no configuration is needed.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var metadataEncodeCmd = &cobra.Command{
	Use:   "encode <json | @file>",
	Short: "Compact token metadata and print its hex encoding and size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := readJSONObject(args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, localService().EncodeMetadata(cmd.Context(), fields))
	},
}

var metadataDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode an MPTokenMetadata hex value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResult(cmd, localService().DecodeMetadata(cmd.Context(), args[0]))
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.AddCommand(metadataEncodeCmd, metadataDecodeCmd)
}
