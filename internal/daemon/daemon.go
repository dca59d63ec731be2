// Package daemon manages the background worker process through a pid marker
// file in the data directory.
package daemon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// File names, relative to the data directory.
const (
	PIDFile = "rssclient.pid"
	LogFile = "worker.log"
)

var (
	// ErrNotRunning is returned when there is no live worker to act on.
	ErrNotRunning = errors.New("background updater is not running")
	// ErrAlreadyRunning is returned by Start when a live worker owns the marker.
	ErrAlreadyRunning = errors.New("background updater already running")
)

// Manager starts and stops the worker process.
type Manager struct {
	dir     string
	command string
	args    []string
}

// NewManager creates a Manager that keeps its marker in dir and launches
// command with args.
func NewManager(dir, command string, args ...string) *Manager {
	return &Manager{dir: dir, command: command, args: args}
}

// PIDPath returns the location of the pid marker.
func (m *Manager) PIDPath() string {
	return filepath.Join(m.dir, PIDFile)
}

// ReadPID returns the pid recorded in the marker, or ErrNotRunning when
// there is none.
func (m *Manager) ReadPID() (int, error) {
	data, err := os.ReadFile(m.PIDPath())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, ErrNotRunning
	}
	if err != nil {
		return 0, fmt.Errorf("read pid file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("parse pid file %s: invalid pid %q", m.PIDPath(), strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// WritePID records pid in the marker.
func (m *Manager) WritePID(pid int) error {
	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(m.PIDPath(), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// RemovePID deletes the marker. A missing marker is not an error.
func (m *Manager) RemovePID() error {
	if err := os.Remove(m.PIDPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

// Running returns the worker's pid if the marker names a live process.
func (m *Manager) Running() (int, bool) {
	pid, err := m.ReadPID()
	if err != nil {
		return 0, false
	}
	return pid, Alive(pid)
}

// Start launches the worker detached from the terminal and records its pid.
// A marker left by a dead worker is replaced.
func (m *Manager) Start() (int, error) {
	pid, err := m.ReadPID()
	switch {
	case err == nil && Alive(pid):
		return pid, ErrAlreadyRunning
	case err == nil:
		if err := m.RemovePID(); err != nil {
			return 0, err
		}
	case !errors.Is(err, ErrNotRunning):
		// Unreadable marker: nothing we can signal, start over.
		if err := m.RemovePID(); err != nil {
			return 0, err
		}
	}

	if err := os.MkdirAll(m.dir, 0o750); err != nil {
		return 0, fmt.Errorf("create data directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(m.dir, LogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open worker log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	cmd := exec.Command(m.command, m.args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start worker: %w", err)
	}

	pid = cmd.Process.Pid
	if err := m.WritePID(pid); err != nil {
		_ = cmd.Process.Kill()
		return 0, err
	}
	_ = cmd.Process.Release()
	return pid, nil
}

// Stop terminates the recorded worker and deletes the marker. A marker
// naming a dead process is removed and reported as ErrNotRunning.
func (m *Manager) Stop() (int, error) {
	pid, err := m.ReadPID()
	if err != nil {
		return 0, err
	}

	if !Alive(pid) {
		if err := m.RemovePID(); err != nil {
			return pid, err
		}
		return pid, ErrNotRunning
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, fmt.Errorf("find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return pid, fmt.Errorf("signal process %d: %w", pid, err)
	}
	return pid, m.RemovePID()
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
