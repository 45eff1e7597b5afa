package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_Success(t *testing.T) {
	invocation, err := Invoke(context.Background(), "generator", time.Second,
		map[string]any{"hint": "Token"},
		func(_ context.Context) (map[string]any, error) {
			return map[string]any{"name": "Token"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "generator", invocation.Tool)
	assert.Equal(t, map[string]any{"hint": "Token"}, invocation.Parameters)
	assert.Equal(t, map[string]any{"name": "Token"}, invocation.Result)
	assert.Empty(t, invocation.Error)
	assert.False(t, invocation.StartedAt.IsZero())
}

func TestInvoke_Failure(t *testing.T) {
	boom := errors.New("boom")

	invocation, err := Invoke(context.Background(), "compiler", time.Second, nil,
		func(_ context.Context) (map[string]any, error) {
			return nil, boom
		})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, "boom", invocation.Error)
}

func TestInvoke_Timeout(t *testing.T) {
	_, err := Invoke(context.Background(), "deployer", 10*time.Millisecond, nil,
		func(ctx context.Context) (map[string]any, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return map[string]any{}, nil
			}
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
