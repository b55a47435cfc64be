package nodebuiltin

import (
	"net/http"

	"github.com/flowscript-dev/flowscript/internal/registry"
)

// Options configures the optional externally-backed nodes.
type Options struct {
	// HTTPClient is used by the httpRequest node; a 30s-timeout default
	// client is used when nil.
	HTTPClient *http.Client
	// DefaultOpenAIKey is the fallback API key for llmSummarize when a
	// call site's config omits "apiKey".
	DefaultOpenAIKey string
}

// Register adds every built-in node to reg. Re-registering into a
// Registry that already has one of these names fails exactly as any
// other duplicate registration would (spec §4.2).
func Register(reg *registry.Registry, opts Options) error {
	descriptors := []func() error{
		func() error { return reg.Register(HTTPRequest(opts.HTTPClient)) },
		func() error { return reg.Register(Delay()) },
		func() error { return reg.Register(SetVariable()) },
		func() error { return reg.Register(HumanApproval()) },
		func() error { return reg.Register(LLMSummarize(opts.DefaultOpenAIKey)) },
	}
	for _, register := range descriptors {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}
