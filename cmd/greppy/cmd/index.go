package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a project for search",
		Long: `Walk a project tree, chunk every file, and commit the result to
its search index.

Examples:
  greppy index
  greppy index . --force
  greppy index --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runIndex(cmd, path, force, watch)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Full re-index, discarding the current index")
	cmd.Flags().BoolVar(&watch, "watch", false, "Register the project with the file watcher after indexing")

	return cmd
}

func runIndex(cmd *cobra.Command, path string, force, watch bool) error {
	ctx := cmd.Context()
	out := output.New(cmd.OutOrStdout())

	root, err := projectRoot(path)
	if err != nil {
		return err
	}
	home, err := dataHome()
	if err != nil {
		return err
	}

	client := newClient(home)
	daemonRunning := client.IsRunning()
	_ = client.Close()

	var resp daemon.IndexResponse
	err = withDaemon(ctx, home, func(h daemon.Handler) error {
		var indexErr error
		resp, indexErr = h.Index(ctx, daemon.IndexRequest{ProjectRoot: root, Force: force})
		if indexErr != nil {
			return indexErr
		}
		if watch && daemonRunning {
			return h.IndexWatch(ctx, daemon.IndexWatchRequest{ProjectRoot: root})
		}
		return nil
	})
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Indexed %d files, %d chunks (%dms)", resp.FilesIndexed, resp.ChunksStored, resp.DurationMS))
	switch {
	case watch && daemonRunning:
		out.Status("", "Watching for changes")
	case watch:
		out.Warning("No daemon running; --watch has no effect until 'greppy start' is run")
	}
	return nil
}
