package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and query telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	home, err := dataHome()
	if err != nil {
		return err
	}

	var resp daemon.StatusResponse
	err = withDaemon(ctx, home, func(h daemon.Handler) error {
		var statusErr error
		resp, statusErr = h.Status(ctx)
		return statusErr
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := output.New(cmd.OutOrStdout())
	out.Status("", fmt.Sprintf("PID:                %d", resp.PID))
	out.Status("", fmt.Sprintf("Uptime:             %.0fs", resp.UptimeSeconds))
	out.Status("", fmt.Sprintf("Projects:           %d", resp.ProjectCount))
	out.Status("", fmt.Sprintf("Open indexes:       %d", resp.OpenIndexCount))
	out.Status("", fmt.Sprintf("Result cache size:  %d", resp.ResultCacheSize))
	out.Status("", fmt.Sprintf("Query cache size:   %d", resp.QueryCacheSize))
	out.Status("", fmt.Sprintf("Total queries:      %d", resp.TotalQueries))
	out.Status("", fmt.Sprintf("Zero-result queries: %d (%.1f%%)", resp.ZeroResultCount, resp.ZeroResultPercentage))
	return nil
}
