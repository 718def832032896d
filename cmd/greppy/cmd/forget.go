package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newForgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forget <path>",
		Short: "Drop a project from the registry and delete its index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForget(cmd, args[0])
		},
	}
	return cmd
}

func runForget(cmd *cobra.Command, path string) error {
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

	err = withDaemon(ctx, home, func(h daemon.Handler) error {
		return h.Forget(ctx, daemon.ForgetRequest{ProjectRoot: root})
	})
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Forgot %s", root))
	return nil
}
