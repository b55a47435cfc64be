package nodebuiltin

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/flowscript-dev/flowscript/internal/domain"
)

// LLMSummarize returns a NodeDescriptor grounded on the teacher's
// OpenAICompletionExecutor: it sends config["prompt"] to a chat
// completion model and writes the trimmed response to
// config["outputPath"] (default "$.summary"). apiKey is the fallback
// used when config["apiKey"] is absent.
//
// Config: prompt (string, required), model (string, default gpt-4o),
// maxTokens (int), apiKey (string), outputPath (string).
func LLMSummarize(defaultAPIKey string) domain.NodeDescriptor {
	return domain.NodeDescriptor{
		Name:         "llmSummarize",
		Kind:         domain.NodeKindAction,
		ConfigKeys:   []string{"prompt", "model", "maxTokens", "apiKey", "outputPath"},
		RequiredKeys: []string{"prompt"},
		Execute: func(ctx context.Context, call domain.Executable) (domain.Edge, error) {
			cfg := call.Config()
			prompt, _ := cfg["prompt"].(string)
			if prompt == "" {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "prompt", "must be a non-empty string")
			}

			apiKey, _ := cfg["apiKey"].(string)
			if apiKey == "" {
				apiKey = defaultAPIKey
			}
			if apiKey == "" {
				return domain.Edge{}, domain.ConfigInvalid(call.NodeID(), "apiKey", "no API key in config or node default")
			}

			model, _ := cfg["model"].(string)
			if model == "" {
				model = openai.GPT4o
			}
			maxTokens, _ := asInt(cfg["maxTokens"])

			client := openai.NewClient(apiKey)
			resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:               model,
				MaxCompletionTokens: maxTokens,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleUser, Content: prompt},
				},
			})
			if err != nil {
				return domain.Edge{}, fmt.Errorf("llmSummarize: %w", err)
			}
			if len(resp.Choices) == 0 {
				return domain.Edge{}, fmt.Errorf("llmSummarize: model returned no choices")
			}

			outputPath, _ := cfg["outputPath"].(string)
			if outputPath == "" {
				outputPath = "$.summary"
			}
			content := strings.TrimSpace(resp.Choices[0].Message.Content)
			if err := call.State().Set(outputPath, content); err != nil {
				return domain.Edge{}, err
			}
			return domain.NewEdge(domain.EdgeNext), nil
		},
	}
}
