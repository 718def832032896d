package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd)
		},
	}
}

func runStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	home, err := dataHome()
	if err != nil {
		return err
	}

	client := newClient(home)
	defer func() { _ = client.Close() }()

	if !client.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	if err := client.Stop(cmd.Context()); err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(daemon.PIDFilePath(home))
	for i := 0; i < 50; i++ {
		if !client.IsRunning() {
			out.Success("Daemon stopped")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	if locked, pid := pidFile.Locked(); locked {
		return fmt.Errorf("daemon (pid %d) did not stop within timeout", pid)
	}
	out.Success("Daemon stopped")
	return nil
}
