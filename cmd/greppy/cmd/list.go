package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runList(cmd *cobra.Command, jsonOutput bool) error {
	ctx := cmd.Context()
	home, err := dataHome()
	if err != nil {
		return err
	}

	var resp daemon.ListResponse
	err = withDaemon(ctx, home, func(h daemon.Handler) error {
		var listErr error
		resp, listErr = h.List(ctx)
		return listErr
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp.Projects)
	}

	out := output.New(cmd.OutOrStdout())
	if len(resp.Projects) == 0 {
		out.Status("", "No projects registered")
		return nil
	}
	for _, p := range resp.Projects {
		out.Status("", p.Root)
		out.Status("", fmt.Sprintf("  hash: %s  files: %d  chunks: %d  size: %d bytes  indexed: %s",
			p.Hash, p.FileCount, p.ChunkCount, p.IndexBytes, p.LastIndexed))
	}
	return nil
}
