//go:build unix

// Package filelock provides an exclusive advisory lock on a file with a
// bounded wait. Locks are taken with flock(2) on a dedicated lock file, so
// they exclude other processes as well as other open handles in this one.
package filelock

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

const (
	minPoll = 5 * time.Millisecond
	maxPoll = 250 * time.Millisecond
)

// Lock is a held exclusive lock. Release it exactly once.
type Lock struct {
	f    *os.File
	path string
}

// Acquire blocks until the exclusive lock on path is held, ctx is done, or
// timeout elapses. A timeout yields an error wrapping ErrBuildTimeout.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	deadline := time.Now().Add(timeout)
	poll := minPoll
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &Lock{f: f, path: path}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EINTR {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			f.Close()
			return nil, fmt.Errorf("%w: %s held for more than %v", apperrors.ErrBuildTimeout, path, timeout)
		}
		wait := min(poll, remaining)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.Close()
			return nil, fmt.Errorf("waiting for lock %s: %w", path, ctx.Err())
		case <-timer.C:
		}
		poll = min(poll*2, maxPoll)
	}
}

// Release unlocks and closes the lock file. The file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	if closeErr := l.f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	l.f = nil
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", l.path, err)
	}
	return nil
}
