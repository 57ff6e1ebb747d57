package generation_test

import (
	"context"
	"testing"
	"time"

	"destiny-server/internal/generation"
	"destiny-server/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SingleRunPerReport(t *testing.T) {
	reg := generation.NewRegistry()
	id := uuid.New()

	release, err := reg.Acquire(id)
	require.NoError(t, err)
	assert.True(t, reg.IsActive(id))

	_, err = reg.Acquire(id)
	assert.ErrorIs(t, err, models.ErrGenerationInProgress)

	other, err := reg.Acquire(uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	release()
	release()
	other()
	assert.False(t, reg.IsActive(id))
	assert.Equal(t, 0, reg.Len())

	again, err := reg.Acquire(id)
	require.NoError(t, err)
	again()
}

func TestRegistry_Drain(t *testing.T) {
	reg := generation.NewRegistry()
	release, err := reg.Acquire(uuid.New())
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, reg.Drain(ctx))

	_, err = reg.Acquire(uuid.New())
	assert.ErrorIs(t, err, models.ErrShuttingDown)
}

func TestRegistry_DrainTimeout(t *testing.T) {
	reg := generation.NewRegistry()
	_, err := reg.Acquire(uuid.New())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, reg.Drain(ctx), context.DeadlineExceeded)
}
