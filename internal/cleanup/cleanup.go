package cleanup

import (
	"context"
	"time"

	"loungebackend/internal/logger"
)

// Task is one periodic housekeeping job. It returns how many records it
// removed.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Run executes every task once per interval until ctx is cancelled. A
// failing task is logged and retried on the next round.
func Run(ctx context.Context, interval time.Duration, tasks ...Task) error {
	logger.LogInfo("Cleanup routine started - running every %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.LogInfo("Cleanup routine stopped")
			return nil
		case <-ticker.C:
			runOnce(ctx, tasks)
		}
	}
}

func runOnce(ctx context.Context, tasks []Task) int {
	total := 0
	for _, task := range tasks {
		cleaned, err := task.Run(ctx)
		if err != nil {
			logger.LogError("Failed to cleanup %s: %v", task.Name, err)
			continue
		}
		total += cleaned
		if cleaned > 0 {
			logger.LogInfo("Cleaned up %d expired %s", cleaned, task.Name)
		}
	}
	if total == 0 {
		logger.LogDebug("Cleanup completed - nothing expired")
	}
	return total
}
