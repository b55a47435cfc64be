// Package nodebuiltin is a small library of concrete domain nodes
// FlowScript ships out of the box, so a workflow author gets something
// runnable before writing a single custom NodeDescriptor.
//
// Grounded on the teacher's internal/application/executor/node_executors.go
// (OpenAICompletionExecutor, HTTPRequestExecutor): same config-then-call
// shape, same variable/output-key conventions, adapted from that
// package's NodeExecutor interface onto domain.NodeDescriptor/Executable.
package nodebuiltin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// HTTPRequest returns a NodeDescriptor that sends an HTTP request and
// writes the response body to config["outputPath"] (default "$.response").
//
// Config: url (string, required), method (string, default GET),
// headers (map[string]string), body (string | map[string]any),
// outputPath (string), timeoutMs (int; when absent the client's own
// timeout applies, 30s for the default client).
func HTTPRequest(client *http.Client) domain.NodeDescriptor {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return domain.NodeDescriptor{
		Name:         "httpRequest",
		Kind:         domain.NodeKindAction,
		ConfigKeys:   []string{"url", "method", "headers", "body", "outputPath", "timeoutMs"},
		RequiredKeys: []string{"url"},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			cfg := call.Config()
			url, _ := cfg["url"].(string)
			if url == "" {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "url", "must be a non-empty string")
			}
			method, _ := cfg["method"].(string)
			if method == "" {
				method = http.MethodGet
			}
			if ms, ok := asInt(cfg["timeoutMs"]); ok && ms > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
				defer cancel()
			}

			var bodyReader io.Reader
			if raw, ok := cfg["body"]; ok && raw != nil {
				var payload []byte
				var err error
				switch v := raw.(type) {
				case string:
					payload = []byte(v)
				default:
					payload, err = json.Marshal(v)
					if err != nil {
						return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "body", fmt.Sprintf("cannot marshal: %v", err))
					}
				}
				bodyReader = bytes.NewReader(payload)
			}

			req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
			if err != nil {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "url", fmt.Sprintf("invalid request: %v", err))
			}
			if headers, ok := cfg["headers"].(map[string]any); ok {
				for k, v := range headers {
					if s, ok := v.(string); ok {
						req.Header.Set(k, s)
					}
				}
			}

			resp, err := client.Do(req)
			if err != nil {
				return domain.Edge{}, fmt.Errorf("httpRequest %s: %w", url, err)
			}
			defer resp.Body.Close()

			raw, err := io.ReadAll(resp.Body)
			if err != nil {
				return domain.Edge{}, fmt.Errorf("httpRequest %s: reading response: %w", url, err)
			}

			outputPath, _ := cfg["outputPath"].(string)
			if outputPath == "" {
				outputPath = "$.response"
			}

			var decoded any
			if json.Unmarshal(raw, &decoded) != nil {
				decoded = string(raw)
			}
			if err := call.State().Set(outputPath, map[string]any{
				"statusCode": resp.StatusCode,
				"body":       decoded,
			}); err != nil {
				return domain.Edge{}, err
			}

			if resp.StatusCode >= 500 {
				return domain.Edge{}, fmt.Errorf("httpRequest %s: server error %d", url, resp.StatusCode)
			}
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}
}
