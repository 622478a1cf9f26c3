// Package agent drives model generation with gated payment tools.
package agent

import (
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
	"github.com/spachava753/gai"

	"github.com/yellowpay/payagent/internal/config"
)

// NewGenerator creates the provider generator for the configured
// model. The provider is inferred from the model name; API keys come
// from the environment (ANTHROPIC_API_KEY, OPENAI_API_KEY).
func NewGenerator(cfg *config.Config, systemPrompt string) (gai.ToolCapableGenerator, error) {
	switch {
	case isAnthropicModel(cfg.Model):
		return newAnthropicGenerator(cfg.Model, cfg.BaseURL, systemPrompt)
	case isOpenAIModel(cfg.Model):
		return newOpenAIGenerator(cfg.Model, cfg.BaseURL, systemPrompt)
	}
	return nil, fmt.Errorf("unsupported model: %s", cfg.Model)
}

// isAnthropicModel checks if the model is an Anthropic model
func isAnthropicModel(model string) bool {
	return strings.Contains(model, "claude")
}

// isOpenAIModel checks if the model is an OpenAI model
func isOpenAIModel(model string) bool {
	openAIModels := []string{"gpt", "o3", "o4"}
	for _, m := range openAIModels {
		if strings.HasPrefix(model, m) {
			return true
		}
	}
	return false
}

func newAnthropicGenerator(model, baseURL, systemPrompt string) (gai.ToolCapableGenerator, error) {
	var opts []option.RequestOption
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	svc := gai.NewAnthropicServiceWrapper(&client.Messages)
	return gai.NewAnthropicGenerator(svc, model, systemPrompt), nil
}

func newOpenAIGenerator(model, baseURL, systemPrompt string) (gai.ToolCapableGenerator, error) {
	var opts []openaioption.RequestOption
	if baseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	generator := gai.NewOpenAiGenerator(&client.Chat.Completions, model, systemPrompt)
	return &generator, nil
}
