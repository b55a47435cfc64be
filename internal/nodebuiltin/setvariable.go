package nodebuiltin

import (
	"context"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// SetVariable returns a NodeDescriptor that writes config["value"] to
// config["path"] in the shared state document and follows "next".
func SetVariable() domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:         "setVariable",
		Kind:         domain.NodeKindAction,
		ConfigKeys:   []string{"path", "value"},
		RequiredKeys: []string{"path"},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			cfg := call.Config()
			path, _ := cfg["path"].(string)
			if path == "" {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "path", "must be a non-empty string")
			}
			if err := call.State().Set(path, cfg["value"]); err != nil {
				return domain.Edge{}, err
			}
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}
}
