package nodebuiltin

import (
	"context"
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// Delay returns a NodeDescriptor that pauses the execution goroutine
// for config["durationMs"] before following "next", honoring
// cancellation while waiting.
func Delay() domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:         "delay",
		Kind:         domain.NodeKindAction,
		ConfigKeys:   []string{"durationMs"},
		RequiredKeys: []string{"durationMs"},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			ms, ok := asInt(call.Config()["durationMs"])
			if !ok || ms < 0 {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "durationMs", "must be a non-negative integer")
			}
			select {
			case <-ctx.Done():
				return domain.Edge{}, domain.Cancelled()
			case <-time.After(time.Duration(ms) * time.Millisecond):
			}
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}
