// Command revdb inspects record/replay logs, decodes event logs and runs a
// small demo program under recording, replay and the interactive navigator.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/config"
	"github.com/willibrandon/revdb/pkg/version"
)

func newRootCmd() *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "revdb",
		Short:         "Deterministic record/replay logs",
		Long:          `Inspect revdb logs and checkpoint indexes, decode JITLOG event logs, and record, replay or navigate the bundled demo program.`,
		Version:       version.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), debug))
		},
	}
	rootCmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(
		newInspectCmd(),
		newDumpCmd(),
		newDemoCmd(),
		newDebugCmd(),
		newJitlogCmd(),
	)
	return rootCmd
}

// newLogger builds the CLI logger. The level comes from REVDB_LOG_LEVEL
// unless --debug is given.
func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if cfg, err := config.Load(); err == nil {
		level = cfg.SlogLevel()
	}
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// decorated reports whether w is a terminal that gets bold headings.
func decorated(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func heading(w io.Writer, title string) {
	if decorated(w) {
		fmt.Fprintf(w, "\x1b[1m%s\x1b[0m\n", title)
		return
	}
	fmt.Fprintln(w, title)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "revdb: %v\n", err)
		os.Exit(1)
	}
}
