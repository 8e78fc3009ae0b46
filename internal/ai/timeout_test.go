package ai

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTimeoutsCapsShortComponents(t *testing.T) {
	shaped := buildTimeouts(600)
	assert.Equal(t, 30*time.Second, shaped.connect)
	assert.Equal(t, 60*time.Second, shaped.write)
	assert.Equal(t, 30*time.Second, shaped.pool)
	// The read window keeps the full configured value.
	assert.Equal(t, 600*time.Second, shaped.read)
}

func TestBuildTimeoutsSmallValue(t *testing.T) {
	shaped := buildTimeouts(10)
	assert.Equal(t, 10*time.Second, shaped.connect)
	assert.Equal(t, 10*time.Second, shaped.write)
	assert.Equal(t, 10*time.Second, shaped.read)
}

func TestBuildTimeoutsZeroFallsBack(t *testing.T) {
	shaped := buildTimeouts(0)
	assert.Equal(t, 120*time.Second, shaped.read)
}

func TestWatchBodyCancelsOnSilence(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	pr, pw := io.Pipe()
	defer pw.Close()

	watched := watchBody(pr, 20*time.Millisecond, cancel)
	defer watched.stop()

	select {
	case <-ctx.Done():
		assert.ErrorIs(t, context.Cause(ctx), errReadIdle)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog did not fire on a silent body")
	}
}

func TestWatchBodyReArmsOnData(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	pr, pw := io.Pipe()
	watched := watchBody(pr, 80*time.Millisecond, cancel)
	defer watched.stop()

	go func() {
		for i := 0; i < 4; i++ {
			time.Sleep(30 * time.Millisecond)
			_, _ = pw.Write([]byte("x"))
		}
		pw.Close()
	}()

	buf := make([]byte, 1)
	total := 0
	for {
		n, err := watched.Read(buf)
		total += n
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 4, total)
	assert.NoError(t, context.Cause(ctx))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(errReadIdle))
	assert.True(t, isTransient(io.ErrUnexpectedEOF))
	assert.True(t, isTransient(context.DeadlineExceeded))

	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(&StreamError{Message: "bad prompt"}))
	assert.False(t, isTransient(&StatusError{Code: 429, Body: "rate limited"}))
	assert.False(t, isTransient(ErrNoContent))
}
