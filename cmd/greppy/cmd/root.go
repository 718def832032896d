// Package cmd provides the CLI commands for greppy.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	greperrors "github.com/greppy/greppy/internal/errors"
	"github.com/greppy/greppy/internal/logging"
	"github.com/greppy/greppy/pkg/version"
)

// EnvLogLevel overrides the default log level (§6.4's "log level"
// environment override), independent of --debug.
const EnvLogLevel = "GREPPY_LOG_LEVEL"

var debugMode bool

// errNoResults signals a successful search that matched nothing. It is
// not a failure: Execute maps it to exit code 1 without printing an
// error line, per §6.3's exit code scheme.
var errNoResults = fmt.Errorf("no results")

// NewRootCmd creates the root command for the greppy CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "greppy",
		Short: "Local code search over your project",
		Long: `greppy indexes a codebase for fast lexical search and serves
queries from a background daemon, falling back to an in-process search
when no daemon is reachable.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setupLogging,
	}

	cmd.SetVersionTemplate("greppy version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newForgetCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging configures the default slog logger before any subcommand
// runs. Level precedence: --debug, then GREPPY_LOG_LEVEL, then "info".
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if level := os.Getenv(EnvLogLevel); level != "" {
		logCfg.Level = level
	}
	if debugMode {
		logCfg = logging.DebugConfig()
		logCfg.WriteToStderr = false
	}

	logger, _, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is ambient, not load-bearing: a failure to open the log
		// file must never block the command it was meant to observe.
		return nil
	}
	slog.SetDefault(logger)
	return nil
}

// Execute runs the root command and returns the process exit code
// described in §6.3: 0 success, 1 no results, 2 project not found, 3
// index error, 4 invalid arguments.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err == nil {
		return 0
	}
	if err == errNoResults {
		return 1
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	if greperrors.Code(err) != "" {
		return greperrors.ExitCode(err)
	}
	// Unclassified errors (bad flags, bad args from cobra itself) are
	// invalid-argument errors in the §6.3 scheme, not index errors.
	return 4
}
