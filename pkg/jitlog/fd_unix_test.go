//go:build unix

package jitlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestInitFromEnvFileMode(t *testing.T) {
	old := unix.Umask(0)
	defer unix.Umask(old)

	path := filepath.Join(t.TempDir(), "mode.log")
	t.Setenv(EnvVar, path)
	l := New()
	require.NoError(t, l.InitFromEnv())
	defer l.Teardown()

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o775), info.Mode().Perm())
}

func TestInitFD(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fd.log")
	n, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT, 0o644)
	require.NoError(t, err)

	l := New()
	l.InitFD(n, "jit")
	l.WriteMarked(0x14, []byte("fd"))
	require.NoError(t, l.Teardown())

	// The descriptor is owned and closed by the logger.
	require.ErrorIs(t, unix.Close(n), unix.EBADF)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte{0x14, 'f', 'd'}, data)
}
