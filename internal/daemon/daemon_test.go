package daemon

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deadPID(t *testing.T) int {
	t.Helper()
	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	return cmd.Process.Pid
}

func TestReadPIDMissing(t *testing.T) {
	m := NewManager(t.TempDir(), "true")

	_, err := m.ReadPID()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestReadPIDInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PIDFile), []byte("not-a-pid"), 0o644))

	_, err := NewManager(dir, "true").ReadPID()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotRunning)
}

func TestWriteReadRemovePID(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, "true")

	require.NoError(t, m.WritePID(4242))
	data, err := os.ReadFile(filepath.Join(dir, PIDFile))
	require.NoError(t, err)
	assert.Equal(t, "4242", string(data))

	pid, err := m.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)

	require.NoError(t, m.RemovePID())
	require.NoError(t, m.RemovePID())
	assert.NoFileExists(t, m.PIDPath())
}

func TestAlive(t *testing.T) {
	assert.True(t, Alive(os.Getpid()))
	assert.False(t, Alive(deadPID(t)))
}

func TestRunning(t *testing.T) {
	m := NewManager(t.TempDir(), "true")

	_, ok := m.Running()
	assert.False(t, ok)

	require.NoError(t, m.WritePID(os.Getpid()))
	pid, ok := m.Running()
	assert.True(t, ok)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, m.WritePID(deadPID(t)))
	_, ok = m.Running()
	assert.False(t, ok)
}

func TestStopWithoutMarker(t *testing.T) {
	_, err := NewManager(t.TempDir(), "true").Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStopStaleMarker(t *testing.T) {
	m := NewManager(t.TempDir(), "true")
	require.NoError(t, m.WritePID(deadPID(t)))

	_, err := m.Stop()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.NoFileExists(t, m.PIDPath())
}

func TestStartAlreadyRunning(t *testing.T) {
	m := NewManager(t.TempDir(), "true")
	require.NoError(t, m.WritePID(os.Getpid()))

	pid, err := m.Start()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, os.Getpid(), pid)
}

func TestStartAndStop(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, "sleep", "30")
	require.NoError(t, m.WritePID(deadPID(t)))

	pid, err := m.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		if p, err := os.FindProcess(pid); err == nil {
			_ = p.Kill()
		}
	})

	recorded, err := m.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, pid, recorded)
	assert.True(t, Alive(pid))
	assert.FileExists(t, filepath.Join(dir, LogFile))

	stopped, err := m.Stop()
	require.NoError(t, err)
	assert.Equal(t, pid, stopped)
	assert.NoFileExists(t, m.PIDPath())
}
