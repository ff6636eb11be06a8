//go:build unix

package filelock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lexical-Statistics-Platform/pkg/errors"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.lock")

	lock, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	require.NoError(t, lock.Release())

	again, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	assert.NoError(t, again.Release())
	assert.NoError(t, again.Release(), "double release is a no-op")
}

func TestAcquireTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.lock")
	held, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), path, 50*time.Millisecond)
	assert.ErrorIs(t, err, apperrors.ErrBuildTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAcquireHonoursContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.lock")
	held, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Acquire(ctx, path, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAcquireAfterHolderReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "text.lock")
	held, err := Acquire(context.Background(), path, time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		held.Release()
	}()

	lock, err := Acquire(context.Background(), path, 5*time.Second)
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
}
