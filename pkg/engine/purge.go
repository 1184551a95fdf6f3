package engine

import (
	"context"
	"fmt"
)

// PurgeExpired removes idempotency records whose retention window has passed.
// A purged key is treated as new if it is ever sent again.
func (e *Engine) PurgeExpired(ctx context.Context) (int, error) {
	n, err := e.store.PurgeOperations(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge operations: %w", err)
	}
	if n > 0 {
		e.logger.Info("purged expired operations", "count", n)
	}
	return n, nil
}
