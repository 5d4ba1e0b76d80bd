package replay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/willibrandon/revdb/pkg/debugger"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/revdb"
	"github.com/willibrandon/revdb/pkg/store"
)

const totalSteps = 12

// sumProgram adds one logged value per step and allocates one object per
// step, so step k allocates unique id k for handle 1000+k.
type sumProgram struct {
	step  uint64
	sum   uint64
	live  func() uint64
	sums  []uint64
	limit uint64
}

func (p *sumProgram) Step(s *revdb.Session) bool {
	if p.step == p.limit {
		return false
	}
	v := revdb.EmitAndBind(s, nil, p.live)
	p.sum += v
	p.step++
	s.AllocateID(revdb.Handle(1000 + p.step))
	s.StopPoint()
	if !s.Replaying() {
		p.sums = append(p.sums, p.sum)
	}
	return true
}

func (p *sumProgram) Snapshot() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b, p.step)
	binary.LittleEndian.PutUint64(b[8:], p.sum)
	return b
}

func (p *sumProgram) Restore(cp recorder.Checkpoint) error {
	if cp.State == nil {
		p.step, p.sum = 0, 0
		return nil
	}
	if len(cp.State) != 16 {
		return fmt.Errorf("bad state of %d bytes", len(cp.State))
	}
	p.step = binary.LittleEndian.Uint64(cp.State)
	p.sum = binary.LittleEndian.Uint64(cp.State[8:])
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// record runs the sum program to its end and returns the log path and the
// running sum after each step, index 0 being the initial sum.
func record(t *testing.T) (string, []uint64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sum.rdb")
	sink, err := store.CreateFile(path, store.NoCompression)
	if err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	next := uint64(3)
	p := &sumProgram{limit: totalSteps, sums: []uint64{0}, live: func() uint64 {
		next = next*7 + 1
		return next % 100
	}}
	s := revdb.NewRecorder(sink,
		revdb.WithLogger(quietLogger()),
		revdb.WithBufferSize(16),
		revdb.WithCheckpointInterval(4),
		revdb.WithIndexPath(recorder.IndexPath(path)),
		revdb.WithHooks(revdb.Hooks{Snapshot: func(*revdb.Session) []byte { return p.Snapshot() }}),
	)
	for p.Step(s) {
	}
	if err := s.Teardown(); err != nil {
		t.Fatalf("Failed to finish recording: %v", err)
	}
	return path, p.sums
}

// navigate opens a replay of path with a fresh program under a navigator.
func navigate(t *testing.T, path string, bm *debugger.BreakpointManager) (*Navigator, *sumProgram) {
	t.Helper()
	p := &sumProgram{limit: totalSteps, live: func() uint64 {
		t.Fatal("replay read a live value")
		return 0
	}}
	nav := NewNavigator(p, bm)

	src, err := store.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	s, err := revdb.NewReplayer(src,
		revdb.WithLogger(quietLogger()),
		revdb.WithBufferSize(16),
		revdb.WithCheckpointInterval(4),
		revdb.WithIndexPath(recorder.IndexPath(path)),
		revdb.WithHooks(nav.Hooks()),
		revdb.WithFatalHandler(func(err error) { t.Fatalf("Replay failed: %v", err) }),
	)
	if err != nil {
		t.Fatalf("Failed to open replay: %v", err)
	}
	t.Cleanup(func() { s.Teardown() })

	if err := nav.Attach(s); err != nil {
		t.Fatalf("Failed to attach: %v", err)
	}
	return nav, p
}

func TestContinueStopsAtBreakpoints(t *testing.T) {
	path, sums := record(t)

	bm := debugger.NewBreakpointManager()
	bm.AddBreakpoint("9")
	bm.AddBreakpoint("5")
	nav, p := navigate(t, path, bm)

	for _, want := range []uint64{5, 9} {
		reason, err := nav.Continue()
		if err != nil {
			t.Fatalf("Continue failed: %v", err)
		}
		if reason != StopBreakpoint {
			t.Fatalf("Expected breakpoint stop, got %v", reason)
		}
		if nav.CurrentStep() != want {
			t.Errorf("Expected step %d, got %d", want, nav.CurrentStep())
		}
		if p.sum != sums[want] {
			t.Errorf("Expected sum %d at step %d, got %d", sums[want], want, p.sum)
		}
	}

	reason, err := nav.Continue()
	if err != nil || reason != StopFinished {
		t.Fatalf("Expected to finish, got %v, %v", reason, err)
	}
	if !nav.Finished() || p.sum != sums[totalSteps] {
		t.Errorf("Expected finished with sum %d, got %d", sums[totalSteps], p.sum)
	}
	for _, bp := range bm.GetBreakpoints() {
		if bp.Hits != 1 {
			t.Errorf("Expected 1 hit on %s", bp)
		}
	}
}

func TestGoToTravelsBothWays(t *testing.T) {
	path, sums := record(t)
	nav, p := navigate(t, path, nil)

	if err := nav.ReplayForward(); err != nil {
		t.Fatalf("ReplayForward failed: %v", err)
	}
	if nav.CurrentStep() != totalSteps {
		t.Fatalf("Expected step %d, got %d", totalSteps, nav.CurrentStep())
	}

	moves := []struct {
		name string
		move func() (StopReason, error)
		want uint64
	}{
		{"back into a checkpoint interval", func() (StopReason, error) { return nav.GoTo(6) }, 6},
		{"back before the first checkpoint", func() (StopReason, error) { return nav.GoTo(2) }, 2},
		{"to the end", func() (StopReason, error) { return nav.GoTo(totalSteps) }, totalSteps},
		{"step backward", func() (StopReason, error) { return nav.StepBackward(3) }, 9},
		{"step forward", func() (StopReason, error) { return nav.StepForward(2) }, 11},
		{"exactly onto a checkpoint", func() (StopReason, error) { return nav.GoTo(8) }, 8},
		{"to the origin", func() (StopReason, error) { return nav.GoTo(0) }, 0},
	}
	for _, m := range moves {
		reason, err := m.move()
		if err != nil {
			t.Fatalf("%s: %v", m.name, err)
		}
		if reason != StopTarget {
			t.Errorf("%s: expected target stop, got %v", m.name, reason)
		}
		if nav.CurrentStep() != m.want || p.step != m.want {
			t.Errorf("%s: expected step %d, got session %d program %d", m.name, m.want, nav.CurrentStep(), p.step)
		}
		if p.sum != sums[m.want] {
			t.Errorf("%s: expected sum %d, got %d", m.name, sums[m.want], p.sum)
		}
	}

	if _, err := nav.StepBackward(1); !errors.Is(err, revdb.ErrInvalidTime) {
		t.Errorf("Expected ErrInvalidTime stepping back from the origin, got %v", err)
	}
	if _, err := nav.GoTo(totalSteps + 1); !errors.Is(err, revdb.ErrInvalidTime) {
		t.Errorf("Expected ErrInvalidTime past the end, got %v", err)
	}
}

func TestObjectBreakpoint(t *testing.T) {
	path, _ := record(t)

	bm := debugger.NewBreakpointManager()
	bm.AddBreakpoint("uid:7")
	nav, _ := navigate(t, path, bm)

	reason, err := nav.Continue()
	if err != nil || reason != StopObject {
		t.Fatalf("Expected object stop, got %v, %v", reason, err)
	}
	if nav.CurrentStep() != 7 || nav.LastObject() != 1007 {
		t.Errorf("Expected handle 1007 at step 7, got %d at step %d", nav.LastObject(), nav.CurrentStep())
	}

	if _, err := nav.GoTo(3); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}
	reason, err = nav.Continue()
	if err != nil || reason != StopObject || nav.CurrentStep() != 7 {
		t.Fatalf("Expected the object again at step 7, got %v at step %d (%v)", reason, nav.CurrentStep(), err)
	}
	if bm.GetBreakpoints()[0].Hits != 2 {
		t.Errorf("Expected 2 hits, got %d", bm.GetBreakpoints()[0].Hits)
	}

	reason, err = nav.Continue()
	if err != nil || reason != StopFinished {
		t.Errorf("Expected to finish, got %v, %v", reason, err)
	}
}

func TestAttachRequiresReplay(t *testing.T) {
	nav := NewNavigator(&sumProgram{}, nil)
	if _, err := nav.Continue(); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Expected ErrNotAttached, got %v", err)
	}
	if _, err := nav.GoTo(1); !errors.Is(err, ErrNotAttached) {
		t.Errorf("Expected ErrNotAttached, got %v", err)
	}

	s := revdb.NewRecorder(store.Discard(store.NewHeader(store.NoCompression)), revdb.WithLogger(quietLogger()))
	if err := nav.Attach(s); !errors.Is(err, revdb.ErrNotReplaying) {
		t.Errorf("Expected ErrNotReplaying, got %v", err)
	}
	if nav.CurrentStep() != 0 {
		t.Errorf("Expected step 0, got %d", nav.CurrentStep())
	}
}

func TestStopReasonString(t *testing.T) {
	names := map[StopReason]string{
		StopFinished:   "finished",
		StopBreakpoint: "breakpoint",
		StopObject:     "object",
		StopTarget:     "target",
		StopReason(42): "unknown",
	}
	for r, want := range names {
		if r.String() != want {
			t.Errorf("Expected %q, got %q", want, r.String())
		}
	}
}
