package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var logsLimit int

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent activity log entries",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "Maximum entries to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	logs, err := st.RecentLogs(context.Background(), logsLimit)
	if err != nil {
		return fmt.Errorf("failed to load logs: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tEVENT\tPRODUCT\tDETAILS")
	for _, e := range logs {
		product := e.ProductID
		if product == "" {
			product = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Event, product, e.Details)
	}
	return w.Flush()
}
