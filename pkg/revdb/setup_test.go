package revdb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/willibrandon/revdb/pkg/config"
	"github.com/willibrandon/revdb/pkg/recorder"
	"github.com/willibrandon/revdb/pkg/store"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{"REVDB", "REVDB_REPLAY", "REVDB_BUFFER_SIZE", "REVDB_COMPRESSION",
		"REVDB_CHECKPOINT_INTERVAL", "REVDB_FRAME_CACHE", "REVDB_TRACE", "REVDB_LOG_LEVEL"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestParseArgs(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		wantRest   []string
		wantReplay string
		wantRecord string
		wantErr    error
	}{
		{
			name:     "no flags",
			args:     []string{"prog", "-v", "input.txt"},
			wantRest: []string{"prog", "-v", "input.txt"},
		},
		{
			name:       "replay with separate value",
			args:       []string{"prog", "--revdb-replay", "run.rdb", "input.txt"},
			wantRest:   []string{"prog", "input.txt"},
			wantReplay: "run.rdb",
		},
		{
			name:       "record with equals",
			args:       []string{"prog", "--revdb-record=out.rdb"},
			wantRest:   []string{"prog"},
			wantRecord: "out.rdb",
		},
		{
			name:    "missing value",
			args:    []string{"prog", "--revdb-replay"},
			wantErr: ErrMissingPath,
		},
		{
			name:    "empty value",
			args:    []string{"prog", "--revdb-record="},
			wantErr: ErrMissingPath,
		},
		{
			name:    "record and replay",
			args:    []string{"prog", "--revdb-record", "out.rdb", "--revdb-replay=run.rdb"},
			wantErr: ErrConflictingModes,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg config.Config
			rest, err := parseArgs(tc.args, &cfg)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantRest, rest)
			require.Equal(t, tc.wantReplay, cfg.ReplayPath)
			require.Equal(t, tc.wantRecord, cfg.RecordPath)
		})
	}
}

func TestSetupRecordThenReplay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "run.rdb")
	t.Setenv("REVDB", path)
	t.Setenv("REVDB_COMPRESSION", "zstd")
	t.Setenv("REVDB_BUFFER_SIZE", "32")
	t.Setenv("REVDB_CHECKPOINT_INTERVAL", "4")

	values := map[int]uint64{}
	s, rest, err := Setup([]string{"prog", "arg"}, WithFatalHandler(panicOnFatal))
	require.NoError(t, err)
	require.Equal(t, []string{"prog", "arg"}, rest)
	require.Equal(t, ModeRecording, s.Mode())
	steppedProgram(s, 1, 20, &liveValues{t: t}, values)
	require.NoError(t, s.Teardown())
	require.Greater(t, s.Stats().Flushes, 1)

	ix, err := recorder.ReadIndexFile(recorder.IndexPath(path))
	require.NoError(t, err)
	require.Equal(t, uint64(20), ix.TotalSteps)
	require.Equal(t, 6, ix.Len(), "origin plus every 4th step")

	r, rest, err := Setup([]string{"prog", "--revdb-replay", path, "arg"}, WithFatalHandler(panicOnFatal))
	require.NoError(t, err)
	require.Equal(t, []string{"prog", "arg"}, rest)
	require.True(t, r.Replaying())
	require.Equal(t, int64(20), r.GetValue(SelectTotalSteps))

	replayed := map[int]uint64{}
	steppedProgram(r, 1, 20, &liveValues{t: t, replay: true}, replayed)
	require.Equal(t, values, replayed)

	// Travel back into the compressed log through the loaded index.
	require.NoError(t, r.ChangeTime(ChangeTimeGoto, 10, nil))
	require.Equal(t, int64(8), r.GetValue(SelectCurrentStep))
	again := map[int]uint64{}
	stepBody(r, 8, &liveValues{t: t, replay: true}, again)
	require.Equal(t, values[8], again[8])

	require.ErrorIs(t, r.ChangeTime(ChangeTimeGoto, 21, nil), ErrInvalidTime)
	require.NoError(t, r.Teardown())
}

func TestSetupRejectsRecordWithReplayEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REVDB_REPLAY", filepath.Join(t.TempDir(), "run.rdb"))

	_, _, err := Setup([]string{"prog", "--revdb-record", filepath.Join(t.TempDir(), "out.rdb")})
	require.ErrorIs(t, err, ErrConflictingModes)
}

func TestSetupWithoutTargetDiscards(t *testing.T) {
	clearEnv(t)
	s, rest, err := Setup([]string{"prog"}, WithFatalHandler(panicOnFatal))
	require.NoError(t, err)
	require.Equal(t, []string{"prog"}, rest)
	require.Equal(t, ModeRecording, s.Mode())

	EmitValue(s, uint64(1))
	require.NoError(t, s.Teardown())
}

func TestSetupReplayMissingFile(t *testing.T) {
	clearEnv(t)
	_, _, err := Setup([]string{"prog", "--revdb-replay=" + filepath.Join(t.TempDir(), "nope")})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSetupBadCompression(t *testing.T) {
	clearEnv(t)
	t.Setenv("REVDB_COMPRESSION", "lz4")
	_, _, err := Setup(nil)
	require.Error(t, err)
}

func TestSetupReplayRejectsForeignIndex(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "run.rdb")
	sink, err := store.CreateFile(path, store.NoCompression)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	ix := recorder.NewIndex(store.NewHeader(store.NoCompression).SessionID)
	require.NoError(t, recorder.WriteIndexFile(recorder.IndexPath(path), ix, recorder.DefaultIndexFileOptions()))

	_, _, err = Setup([]string{"prog", "--revdb-replay", path})
	require.ErrorIs(t, err, recorder.ErrIndexMismatch)
}
