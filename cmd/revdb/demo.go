package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/willibrandon/revdb/pkg/instrumentation"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/revdb"
)

// demoProgram rolls a die once per step. Every step reads the clock and the
// random source, both of which come from the log on replay, and allocates
// one object whose unique id and identity hash it prints.
type demoProgram struct {
	out   io.Writer
	steps uint32

	started bool
	limit   uint32
	user    string
	step    uint64
	total   uint64
	last    int
	when    time.Time
}

func newDemoProgram(out io.Writer, steps uint32) *demoProgram {
	return &demoProgram{out: out, steps: steps}
}

// Step implements replay.Program. The step count and the user name are read
// once before the first step, so a replay runs as many steps as were
// recorded.
func (p *demoProgram) Step(s *revdb.Session) bool {
	if !p.started {
		p.limit = revdb.EmitAndBind(s, nil, func() uint32 { return p.steps })
		p.user = instrumentation.Getenv(s, "USER")
		p.started = true
		if p.out != nil {
			fmt.Fprintf(p.out, "%s %d steps for %q\n", s.Mode(), p.limit, p.user)
		}
	}
	if p.step >= uint64(p.limit) {
		return false
	}

	p.when = instrumentation.Now(s)
	p.last = instrumentation.IntN(s, nil, 6) + 1
	p.step++
	p.total += uint64(p.last)

	h := revdb.Handle(p.step)
	uid := s.AllocateID(h)
	s.StopPoint()

	if p.out != nil {
		fmt.Fprintf(p.out, "step %3d  %s  roll %d  total %4d  uid %d  hash %016x\n",
			p.step, p.when.Format(time.StampMicro), p.last, p.total, uid, s.IdentityHash(h))
	}
	return true
}

const demoStateSize = 8 + 8 + 8 + 8

// Snapshot implements replay.Program.
func (p *demoProgram) Snapshot() []byte {
	b := make([]byte, 0, demoStateSize)
	b = binary.LittleEndian.AppendUint64(b, p.step)
	b = binary.LittleEndian.AppendUint64(b, p.total)
	b = binary.LittleEndian.AppendUint64(b, uint64(p.last))
	b = binary.LittleEndian.AppendUint64(b, uint64(p.when.UnixNano()))
	return b
}

// Restore implements replay.Program. The origin restarts the program, which
// then reads its step count again.
func (p *demoProgram) Restore(cp recorder.Checkpoint) error {
	if cp.State == nil {
		p.started = false
		p.step, p.total, p.last = 0, 0, 0
		p.when = time.Time{}
		return nil
	}
	if len(cp.State) != demoStateSize {
		return fmt.Errorf("checkpoint at step %d has %d state bytes, want %d", cp.Step, len(cp.State), demoStateSize)
	}
	p.step = binary.LittleEndian.Uint64(cp.State[0:])
	p.total = binary.LittleEndian.Uint64(cp.State[8:])
	p.last = int(binary.LittleEndian.Uint64(cp.State[16:]))
	p.when = time.Unix(0, int64(binary.LittleEndian.Uint64(cp.State[24:])))
	return nil
}

type demoOptions struct {
	record     string
	replay     string
	steps      uint32
	checkpoint uint64
}

func newDemoCmd() *cobra.Command {
	var opts demoOptions

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Record or replay the demo program",
		Long: `Run a small program that reads the clock and a random source once per step.
With --record the values are written to a log; with --replay they are read
back from it and every step prints the same values as in the recorded run.
Without either the program runs live. REVDB_* variables such as
REVDB_COMPRESSION apply.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.record != "" && opts.replay != "" {
				return errors.New("--record and --replay are mutually exclusive")
			}
			return runDemo(cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.record, "record", "", "log to record to")
	cmd.Flags().StringVar(&opts.replay, "replay", "", "log to replay")
	cmd.Flags().Uint32Var(&opts.steps, "steps", 10, "steps to record")
	cmd.Flags().Uint64Var(&opts.checkpoint, "checkpoint", 4, "add a checkpoint every N steps, 0 for none")
	return cmd
}

func runDemo(out io.Writer, opts demoOptions) error {
	var args []string
	switch {
	case opts.replay != "":
		args = []string{"--revdb-replay", opts.replay}
	case opts.record != "":
		args = []string{"--revdb-record", opts.record}
	}

	p := newDemoProgram(out, opts.steps)
	s, _, err := revdb.Setup(args,
		revdb.WithLogger(slog.Default()),
		revdb.WithCheckpointInterval(opts.checkpoint),
		revdb.WithHooks(revdb.Hooks{Snapshot: func(*revdb.Session) []byte { return p.Snapshot() }}),
	)
	if err != nil {
		return err
	}

	for p.Step(s) {
	}

	if err := s.Teardown(); err != nil {
		return fmt.Errorf("finishing %s: %w", s.Mode(), err)
	}
	stats := s.Stats()
	if s.Replaying() {
		fmt.Fprintf(out, "replayed %d steps from %d bytes in %d reads\n", p.step, stats.BytesFetched, stats.Fetches)
	} else {
		fmt.Fprintf(out, "recorded %d steps into %d bytes in %d writes\n", p.step, stats.BytesFlushed, stats.Flushes)
	}
	return nil
}
