package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// vaultStats mirrors dsv.Stats for JSON decoding without importing the
// library package's internal types directly.
type vaultStats struct {
	ActiveSessions           int     `json:"ActiveSessions"`
	QueueLength              int     `json:"QueueLength"`
	ReassemblyBinCount       int     `json:"ReassemblyBinCount"`
	TotalScattered           uint64  `json:"TotalScattered"`
	AverageScatteringEntropy float64 `json:"AverageScatteringEntropy"`
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the running daemon's Vault statistics",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			stats, err := fetchStats(serverAddr)
			if err != nil {
				return fmt.Errorf("fetch stats: %w", err)
			}

			out, err := formatStats(stats, outputFormat)
			if err != nil {
				return fmt.Errorf("format stats: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

func fetchStats(addr string) (*vaultStats, error) {
	resp, err := httpClient.Get("http://" + addr + "/stats")
	if err != nil {
		return nil, fmt.Errorf("GET /stats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dsvd returned %s: %s", resp.Status, string(body))
	}

	var stats vaultStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode stats response: %w", err)
	}

	return &stats, nil
}

func formatStats(stats *vaultStats, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal stats to JSON: %w", err)
		}
		return string(data) + "\n", nil
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Active Sessions:\t%d\n", stats.ActiveSessions)
		fmt.Fprintf(w, "Queue Length:\t%d\n", stats.QueueLength)
		fmt.Fprintf(w, "Reassembly Bins:\t%d\n", stats.ReassemblyBinCount)
		fmt.Fprintf(w, "Total Scattered:\t%d\n", stats.TotalScattered)
		fmt.Fprintf(w, "Average Scattering Entropy:\t%.4f\n", stats.AverageScatteringEntropy)
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}
