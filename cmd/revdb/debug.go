package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/debugger"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/replay"
	"github.com/willibrandon/revdb/pkg/revdb"
	"github.com/willibrandon/revdb/pkg/store"
)

func newDebugCmd() *cobra.Command {
	var breakpoints []string

	cmd := &cobra.Command{
		Use:   "debug LOG",
		Short: "Navigate a demo recording back and forth",
		Long:  `Replay a log written by "revdb demo --record" under an interactive navigator that can continue to breakpoints, step in both directions and jump to any step.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bm := debugger.NewBreakpointManager()
			for _, loc := range breakpoints {
				if _, err := bm.AddBreakpoint(loc); err != nil {
					return err
				}
			}

			program := newDemoProgram(nil, 0)
			nav, s, err := openNavigator(args[0], program, bm)
			if err != nil {
				return err
			}
			defer s.Teardown()

			NewCLI(nav, s, program.describe, cmd.InOrStdin(), cmd.OutOrStdout()).Start()
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&breakpoints, "break", "b", nil, "initial breakpoints (step, step:N or uid:N)")
	return cmd
}

// openNavigator opens a replay of path for program, with the checkpoint
// index next to the log.
func openNavigator(path string, program replay.Program, bm *debugger.BreakpointManager) (*replay.Navigator, *revdb.Session, error) {
	src, err := store.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log: %w", err)
	}

	nav := replay.NewNavigator(program, bm)
	s, err := revdb.NewReplayer(src,
		revdb.WithLogger(slog.Default()),
		revdb.WithIndexPath(recorder.IndexPath(path)),
		revdb.WithHooks(nav.Hooks()),
	)
	if err != nil {
		src.Close()
		return nil, nil, err
	}
	if err := nav.Attach(s); err != nil {
		s.Teardown()
		return nil, nil, err
	}
	return nav, s, nil
}

func (p *demoProgram) describe() string {
	if p.step == 0 {
		return "demo not started"
	}
	return fmt.Sprintf("demo step %d: rolled %d at %s, total %d", p.step, p.last, p.when.Format(time.StampMicro), p.total)
}
