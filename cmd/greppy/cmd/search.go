package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

type searchOptions struct {
	limit      int
	project    string
	pathPrefix string
	json       bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search a project's index using lexical (BM25) ranking with
symbol-name and test-file score adjustments.

Examples:
  greppy search "authenticate"
  greppy search "parseConfig" --limit 5 --json
  greppy search "handler" --path internal/daemon`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of results (1-100)")
	cmd.Flags().StringVar(&opts.project, "project", "", "Project root (default: discovered from cwd)")
	cmd.Flags().StringVar(&opts.pathPrefix, "path", "", "Restrict results to paths with this prefix")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	ctx := cmd.Context()

	root, err := projectRoot(opts.project)
	if err != nil {
		return err
	}
	home, err := dataHome()
	if err != nil {
		return err
	}

	client := newClient(home)
	defer func() { _ = client.Close() }()

	start := time.Now()
	resp, err := client.Search(ctx, daemon.SearchRequest{
		ProjectRoot: root,
		Query:       query,
		Limit:       clampLimit(opts.limit),
		PathFilter:  opts.pathPrefix,
	})
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	slog.Info("search completed",
		slog.String("query", query),
		slog.Int("results", len(resp.Results)),
		slog.Duration("elapsed", elapsed))

	if opts.json {
		return printSearchJSON(cmd, query, root, resp.Results, elapsed)
	}

	out := output.New(cmd.OutOrStdout())
	if len(resp.Results) == 0 {
		out.Status("", fmt.Sprintf("No results for %q", query))
		return errNoResults
	}

	for _, r := range resp.Results {
		out.Status("", fmt.Sprintf("%s:%d-%d", r.Path, r.StartLine, r.EndLine))
		for _, line := range firstLines(r.Content, 3) {
			out.Status("", "  "+line)
		}
	}
	return nil
}

type jsonSearchResponse struct {
	Results   []daemon.WireResult `json:"results"`
	Total     int                 `json:"total"`
	ElapsedMS int64               `json:"elapsed_ms"`
	Query     string              `json:"query"`
	Project   string              `json:"project"`
}

func printSearchJSON(cmd *cobra.Command, query, project string, results []daemon.WireResult, elapsed time.Duration) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	err := enc.Encode(jsonSearchResponse{
		Results:   results,
		Total:     len(results),
		ElapsedMS: elapsed.Milliseconds(),
		Query:     query,
		Project:   project,
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return errNoResults
	}
	return nil
}

// firstLines returns at most the first n lines of content, with trailing
// blank lines among them dropped.
func firstLines(content string, n int) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
