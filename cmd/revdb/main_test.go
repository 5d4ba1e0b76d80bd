package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/willibrandon/revdb/pkg/jitlog"
	"gopkg.in/yaml.v3"
)

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	logger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(logger) })

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func clearRevdbEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"REVDB", "REVDB_REPLAY", "REVDB_COMPRESSION", "REVDB_BUFFER_SIZE"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("USER", "tester")
}

func stepLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "step ") {
			lines = append(lines, line)
		}
	}
	return lines
}

// recordDemo records a six step demo with a checkpoint every two steps.
func recordDemo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.rdb")
	out, err := execute(t, "", "demo", "--record", path, "--steps", "6", "--checkpoint", "2")
	require.NoError(t, err)
	require.Contains(t, out, `recording 6 steps for "tester"`)
	require.Len(t, stepLines(out), 6)
	return path
}

func TestDemoReplayMatchesRecording(t *testing.T) {
	clearRevdbEnv(t)
	path := filepath.Join(t.TempDir(), "demo.rdb")

	recorded, err := execute(t, "", "demo", "--record", path, "--steps", "6", "--checkpoint", "2")
	require.NoError(t, err)

	t.Setenv("USER", "someone-else")
	replayed, err := execute(t, "", "demo", "--replay", path)
	require.NoError(t, err)

	require.Contains(t, replayed, `replaying 6 steps for "tester"`)
	require.Contains(t, replayed, "replayed 6 steps")
	require.Equal(t, stepLines(recorded), stepLines(replayed))
}

func TestDemoFlags(t *testing.T) {
	clearRevdbEnv(t)

	_, err := execute(t, "", "demo", "--record", "a", "--replay", "b")
	require.ErrorContains(t, err, "mutually exclusive")

	out, err := execute(t, "", "demo", "--steps", "2")
	require.NoError(t, err)
	require.Len(t, stepLines(out), 2)
	require.Contains(t, out, "recorded 2 steps")
}

func TestInspect(t *testing.T) {
	clearRevdbEnv(t)
	path := recordDemo(t)

	out, err := execute(t, "", "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, "compression  none")
	require.Contains(t, out, "Checkpoints (6 steps recorded):")
	require.Contains(t, out, "step 6 ")

	out, err = execute(t, "", "inspect", "--yaml", path)
	require.NoError(t, err)

	var report logReport
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	require.Equal(t, uint64(6), report.TotalSteps)
	require.Equal(t, "none", report.Compression)
	require.Len(t, report.Checkpoints, 4)
	for i, c := range report.Checkpoints {
		require.Equal(t, uint64(2*i), c.Step)
		require.Equal(t, uint64(2*i+1), c.UniqueID)
	}
	require.Zero(t, report.Checkpoints[0].State)
	require.Equal(t, demoStateSize, report.Checkpoints[1].State)

	_, err = execute(t, "", "inspect", filepath.Join(t.TempDir(), "missing.rdb"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDump(t *testing.T) {
	clearRevdbEnv(t)
	path := recordDemo(t)

	out, err := execute(t, "", "dump", "--width", "4", "--count", "1", path)
	require.NoError(t, err)
	require.Equal(t, "00000000  00000006\n", out)

	out, err = execute(t, "", "dump", "--offset", "4", "--count", "5", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "00000004 "))
	require.True(t, strings.HasPrefix(lines[1], "00000024 "))

	_, err = execute(t, "", "dump", "--width", "3", path)
	require.ErrorContains(t, err, "invalid word width")
}

func TestDumpPartialWord(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, dumpWords(&out, bytes.NewReader([]byte{1, 0, 0, 0, 0xab}), 0, 4, 0))
	first := fmt.Sprintf("%08x", binary.NativeEndian.Uint32([]byte{1, 0, 0, 0}))
	require.Equal(t, "00000000  "+first+"\n00000004  partial ab\n", out.String())
}

func TestDebugSession(t *testing.T) {
	clearRevdbEnv(t)
	path := recordDemo(t)

	script := strings.Join([]string{
		"bp 4",
		"c",
		"i",
		"b 2",
		"g 6",
		"c",
		"bp disable 1",
		"l",
		"bogus",
		"q",
	}, "\n")
	out, err := execute(t, script, "debug", path)
	require.NoError(t, err)

	for _, want := range []string{
		"Breakpoint #1 step 4 (enabled, 0 hits)",
		"Breakpoint hit at step 4",
		"Step 4 of 6",
		"demo step 4: rolled",
		"Now at step 2",
		"Now at step 6",
		"Program finished at step 6",
		"Breakpoint 1: disabled",
		"#1 step 4 (disabled, 1 hits)",
		"Unknown command: bogus",
	} {
		require.Contains(t, out, want)
	}
}

func TestDebugObjectBreakpointFlag(t *testing.T) {
	clearRevdbEnv(t)
	path := recordDemo(t)

	out, err := execute(t, "c\nc\n", "debug", "--break", "uid:3", path)
	require.NoError(t, err)
	require.Contains(t, out, "Object uid:3 allocated at step 3")
	require.Contains(t, out, "Program finished at step 6")

	_, err = execute(t, "", "debug", "--break", "file:1", path)
	require.Error(t, err)
}

func TestJitlogDecode(t *testing.T) {
	var data []byte
	for _, rec := range []jitlog.CounterRecord{
		{Kind: jitlog.CounterBridge, Number: 3, Count: 10},
		{Kind: jitlog.CounterEntryPoint, Number: 7, Count: 1},
	} {
		data = append(data, jitlog.MarkJitlogCounter, rec.Kind)
		data = binary.LittleEndian.AppendUint64(data, uint64(rec.Number))
		data = binary.LittleEndian.AppendUint64(data, uint64(rec.Count))
	}
	data = append(data, 0x15, 'x')

	path := filepath.Join(t.TempDir(), "jit.log")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "", "jitlog", "decode", path)
	require.NoError(t, err)
	require.Contains(t, out, "2 counter records")
	require.Contains(t, out, "bridge")
	require.Contains(t, out, "entry point")
	require.Contains(t, out, "stopped: unknown jitlog record: tag 0x15 after 2 counters")
}

func TestVersionFlag(t *testing.T) {
	out, err := execute(t, "", "--version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "revdb dev"), out)
}
