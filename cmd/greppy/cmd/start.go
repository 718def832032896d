package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greppy/greppy/internal/daemon"
	"github.com/greppy/greppy/internal/output"
)

func newStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background search daemon",
		Long: `Start the daemon that keeps every registered project's index
open, serves search/index/status/list/forget requests over a persistent
connection, and runs the file watcher.

By default the daemon detaches and runs in the background. Use
--foreground to run it attached, for debugging.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run attached to this terminal")
	return cmd
}

func runStart(cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.OutOrStdout())

	home, err := dataHome()
	if err != nil {
		return err
	}
	socket := daemon.ResolveSocketPath(home)
	client := newClient(home)
	defer func() { _ = client.Close() }()

	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		return runDaemonForeground(cmd, home)
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	bg := exec.Command(execPath, "start", "--foreground")
	bg.Stdout = nil
	bg.Stderr = nil
	bg.Stdin = nil
	bg.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bg.Start(); err != nil {
		return fmt.Errorf("start daemon process: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bg.Wait() }()

	for i := 0; i < 50; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("daemon exited unexpectedly: %w", err)
			}
			return fmt.Errorf("daemon exited unexpectedly")
		default:
		}
		time.Sleep(100 * time.Millisecond)
		if client.IsRunning() {
			out.Success(fmt.Sprintf("Daemon started (pid: %d, socket: %s)", bg.Process.Pid, socket))
			return nil
		}
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

// runDaemonForeground runs the daemon attached, blocking until it is
// asked to stop (via `greppy stop` or an interrupt signal).
func runDaemonForeground(cmd *cobra.Command, home string) error {
	out := output.New(cmd.OutOrStdout())

	pidFile := daemon.NewPIDFile(daemon.PIDFilePath(home))
	if err := pidFile.Acquire(); err != nil {
		return err
	}
	defer func() { _ = pidFile.Release() }()

	d, err := daemon.NewDaemon(home, daemon.DefaultConfig())
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()

	srv := daemon.NewServer(daemon.ResolveSocketPath(home), d, daemon.DefaultConfig())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-srv.StopRequested()
		stop()
	}()

	out.Status("", fmt.Sprintf("Daemon listening on %s", daemon.ResolveSocketPath(home)))
	slog.Info("daemon starting", slog.String("socket", daemon.ResolveSocketPath(home)))

	serveErr := srv.ListenAndServe(ctx)
	if serveErr != nil && serveErr != context.Canceled {
		return serveErr
	}
	return nil
}
