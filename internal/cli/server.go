package cli

import (
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/LeJamon/goxrpl-escrow/internal/api"
)

var (
	// Server flags
	listenAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve escrow and issuance operations over HTTP",
	Long: `Start the HTTP surface, which provides:
- escrow create, finish, cancel, info, outcome and list endpoints
- condition generation and verification
- token issuance create, info and destroy endpoints
- /healthz and Prometheus /metrics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (default from [server] listen)")
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := loaded.Server.Listen
	if listenAddr != "" {
		addr = listenAddr
	}
	if loaded.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	return withApp(func(a *app) error {
		logger.Info("starting escrowd",
			"network", loaded.Network.Name,
			"url", loaded.Network.URL,
			"journal", loaded.JournalEnabled(),
			"operator_seed", loaded.Operator.AdminSeed != "")
		srv := api.NewServer(addr, api.NewHandler(a.service, logger), logger)
		return srv.Run(cmd.Context())
	})
}
