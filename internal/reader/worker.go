package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/JustADataConstruct/TermRSS/internal/daemon"
	"github.com/JustADataConstruct/TermRSS/internal/model"
)

var errWorkerExited = errors.New("worker exited")

// Start launches the background updater and waits until it serves the
// control channel.
func (r *Reader) Start(ctx context.Context) error {
	pid, err := r.worker.Start()
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		r.render.Info(r.out, "Background updater already running!")
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.waitReady(ctx, pid); err != nil {
		if _, stopErr := r.worker.Stop(); stopErr != nil && !errors.Is(stopErr, daemon.ErrNotRunning) {
			r.log.WarnContext(ctx, "stop unready background updater", "pid", pid, "error", stopErr)
		}
		return fmt.Errorf("background updater did not start (see %s): %w", daemon.LogFile, err)
	}
	r.log.DebugContext(ctx, "background updater started", "pid", pid)
	r.render.OK(r.out, "Background updater started successfully. Will check for new entries every %d minute(s)",
		int(r.interval.Minutes()))
	return nil
}

// waitReady polls the control channel until the worker with pid answers.
// A previous worker still holding the address answers with another pid.
func (r *Reader) waitReady(ctx context.Context, pid int) error {
	b := retry.WithMaxDuration(r.ready, retry.NewConstant(100*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if _, ok := r.worker.Running(); !ok {
			return errWorkerExited
		}
		st, err := r.control.Status(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		if st.PID != pid {
			return retry.RetryableError(fmt.Errorf("control channel answered by pid %d", st.PID))
		}
		return nil
	})
}

// Stop terminates the background updater.
func (r *Reader) Stop(ctx context.Context) error {
	pid, err := r.worker.Stop()
	if errors.Is(err, daemon.ErrNotRunning) {
		r.render.Info(r.out, "Background updater is not running.")
		return nil
	}
	if err != nil {
		return err
	}
	r.log.DebugContext(ctx, "background updater stopped", "pid", pid)
	r.render.OK(r.out, "Background updater stopped successfully.")
	return nil
}

// Status prints the background updater's progress.
func (r *Reader) Status(ctx context.Context) error {
	if _, ok := r.worker.Running(); !ok {
		r.render.Info(r.out, "Background updater is not running.")
		return nil
	}
	st, err := r.control.Status(ctx)
	if err != nil {
		return fmt.Errorf("query background updater: %w", err)
	}

	last := "never"
	if st.LastSweep != nil {
		last = st.LastSweep.Local().Format(model.TimeLayout)
	}
	r.render.OK(r.out, "Background updater running (pid %d).", st.PID)
	fmt.Fprintf(r.out, "Check interval: %s\n", st.Interval)
	fmt.Fprintf(r.out, "Sweeps: %d. Last sweep: %s\n", st.Sweeps, last)
	return nil
}
