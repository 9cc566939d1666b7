// Package commands implements the dsvctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// httpClient is the HTTP client used to reach the dsvd stats endpoint.
	httpClient = &http.Client{Timeout: 5 * time.Second}

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the dsvd metrics/stats HTTP address (host:port).
	serverAddr string
)

// rootCmd is the top-level cobra command for dsvctl.
var rootCmd = &cobra.Command{
	Use:   "dsvctl",
	Short: "CLI client for the Dimensional Scattering Vault daemon",
	Long:  "dsvctl reads dsvd's JSON stats endpoint and runs standalone scatter/gather demos against an in-process Vault.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9300",
		"dsvd stats/metrics HTTP address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(demoCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
