package tools

import (
	"context"
	"time"

	"github.com/quendro/forgeflow/pkg/models"
)

// Invoke runs one collaborator call under a timeout and records it as a
// ToolInvocation. Every external call goes through here so no stage can
// hang indefinitely on a collaborator.
func Invoke(
	ctx context.Context,
	tool string,
	timeout time.Duration,
	params map[string]any,
	fn func(ctx context.Context) (map[string]any, error),
) (models.ToolInvocation, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now().UTC()
	result, err := fn(ctx)
	duration := time.Since(started)

	invocation := models.ToolInvocation{
		Tool:       tool,
		Parameters: params,
		Result:     result,
		Duration:   duration,
		StartedAt:  started,
	}

	if err != nil {
		invocation.Error = err.Error()
	}

	return invocation, err
}
