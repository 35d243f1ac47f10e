package cli

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the JSON HTTP API until interrupted.

Requests identify themselves with the X-User-ID header.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			appInstance.Config.Server.Addr = addr
		}
		return appInstance.HTTPServer().ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (defaults to the configured address)")
}
