package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"agent-scheduler/internal/model"
)

const defaultModel = "gpt-4o-mini"

// OpenAIRunner executes tasks through the OpenAI chat completion API,
// exposing resolved tools as function tools.
type OpenAIRunner struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIRunner builds a runner for the given API token. baseURL may be
// empty; fallbackModel is used for agents that do not pin a model.
func NewOpenAIRunner(token, baseURL, fallbackModel string) *OpenAIRunner {
	config := openai.DefaultConfig(token)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if fallbackModel == "" {
		fallbackModel = defaultModel
	}
	return &OpenAIRunner{
		client:       openai.NewClientWithConfig(config),
		defaultModel: fallbackModel,
	}
}

func (r *OpenAIRunner) Run(ctx context.Context, ag model.Agent, input Input) (Output, error) {
	modelName := ag.Model
	if modelName == "" {
		modelName = r.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:       modelName,
		Temperature: ag.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: ag.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: input.Description,
			},
		},
	}
	for _, tool := range input.Tools {
		req.Tools = append(req.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  toolParameterSchema(tool.Parameters),
			},
		})
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Output{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{}, fmt.Errorf("chat completion: empty response")
	}

	msg := resp.Choices[0].Message
	out := Output{Text: strings.TrimSpace(msg.Content)}
	for _, call := range msg.ToolCalls {
		out.ToolsUsed = append(out.ToolsUsed, call.Function.Name)
	}
	return out, nil
}

// toolParameterSchema wraps the per-task parameter overrides into a minimal
// JSON schema. The overrides become fixed default values visible to the
// model; free-form arguments stay open.
func toolParameterSchema(params map[string]any) map[string]any {
	properties := map[string]any{}
	for name, value := range params {
		properties[name] = map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("preset value: %v", value),
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}
