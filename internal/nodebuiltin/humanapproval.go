package nodebuiltin

import (
	"context"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// HumanApproval returns a pausing NodeDescriptor (spec §4.6): its
// Execute immediately returns EdgePause carrying a form schema built
// from config["prompt"]/config["formSchema"]; the interpreter parks
// the execution until a Resume arrives, then follows "submitted".
func HumanApproval() domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:       "humanApproval",
		Kind:       domain.NodeKindHuman,
		ConfigKeys: []string{"prompt", "formSchema", "timeoutMs"},
		Pausing:    true,
		ResumeEdge: "submitted",
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			cfg := call.Config()
			return domain.NewEdgeWithData(domain.EdgePause, func() any {
				data := map[string]any{"prompt": cfg["prompt"]}
				if schema, ok := cfg["formSchema"]; ok {
					data["formSchema"] = schema
				} else {
					data["formSchema"] = map[string]any{
						"type":       "object",
						"properties": map[string]any{"approved": map[string]any{"type": "boolean"}},
					}
				}
				if timeout, ok := cfg["timeoutMs"]; ok {
					data["timeoutMs"] = timeout
				}
				return data
			}), nil
		},
	}
}
