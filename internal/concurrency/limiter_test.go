package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/spine-engine-go/internal/settings"
)

func TestAcquireReleaseOneShot(t *testing.T) {
	s := settings.New()
	s.SetString("engineSettings/processLimit", "1")
	l, err := NewLimiter(s)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.AcquireOneShot(ctx))
	l.ReleaseOneShot()
	require.NoError(t, l.AcquireOneShot(ctx))
}

func TestAcquirePersistentEvictsOnContention(t *testing.T) {
	s := settings.New()
	s.SetString("engineSettings/persistentLimit", "1")
	l, err := NewLimiter(s)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, l.persistent.Acquire(ctx, 1))

	evicted := false
	go func() {
		time.Sleep(20 * time.Millisecond)
		l.ReleasePersistent()
	}()

	err = l.AcquirePersistent(ctx, 5*time.Millisecond, func() bool {
		evicted = true
		return false
	})
	require.NoError(t, err)
	assert.True(t, evicted)
}
