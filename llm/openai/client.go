// Package openai talks to OpenAI-compatible chat completion APIs. DeBot uses
// it for Hack Club AI, DeepSeek and OpenAI itself.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/debot/llm"
	openai "github.com/sashabaranov/go-openai"
	"github.com/samber/lo"
)

// OpenAI-compatible errors don't expose retry-after headers.
const defaultRetryAfter = 60 * time.Second

// OpenAIClient implements llm.Client for one OpenAI-compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	name   string
	model  string // Default model to use if not specified in request
}

// NewOpenAIClient creates a client for the endpoint called name.
// An empty apiKey is allowed for endpoints that need none. An empty baseURL
// uses the OpenAI API. An empty model is sent as-is, which some hosted
// proxies accept and route to their own default.
func NewOpenAIClient(name, apiKey, baseURL, model, organization string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if organization != "" {
		config.OrgID = organization
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		name:   name,
		model:  model,
	}
}

// Synchronous implements llm.Client.Synchronous.
func (c *OpenAIClient) Synchronous(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toOpenAIMessages(req.System, req.Messages),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = int(req.MaxTokens)
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}

	chatResp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, c.convertError(err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, llm.NewMalformedResponseError(c.name + ": no choices in response")
	}

	choice := chatResp.Choices[0]
	stopReason := "stop"
	if choice.FinishReason == openai.FinishReasonLength {
		stopReason = "max_tokens"
	}

	return &llm.Response{
		Text: llm.JoinText(choice.Message.Content),
		Usage: &llm.Usage{
			InputTokens:  int64(chatResp.Usage.PromptTokens),
			OutputTokens: int64(chatResp.Usage.CompletionTokens),
		},
		StopReason: stopReason,
	}, nil
}

func toOpenAIMessages(system string, msgs []llm.Message) []openai.ChatCompletionMessage {
	out := lo.Map(msgs, func(m llm.Message, _ int) openai.ChatCompletionMessage {
		return openai.ChatCompletionMessage{Role: toOpenAIRole(m.Role), Content: m.Content}
	})
	if system != "" {
		out = append([]openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		}}, out...)
	}
	return out
}

func toOpenAIRole(role llm.MessageRole) string {
	switch role {
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

// convertError converts go-openai errors to llm.Error types.
func (c *OpenAIClient) convertError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NewStatusError(c.name, reqErr.HTTPStatusCode, err)
	}

	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.HTTPStatusCode {
	case http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		return llm.NewRateLimitError(
			fmt.Sprintf("%s rate limit: %s", c.name, apiErr.Message),
			&retryAfter,
			err,
		)
	case http.StatusRequestEntityTooLarge:
		return llm.NewRequestTooLargeError(
			fmt.Sprintf("%s request too large: %s", c.name, apiErr.Message),
			err,
		)
	case http.StatusBadRequest:
		return &llm.Error{
			Type:        llm.ErrorTypeInvalidRequest,
			Message:     fmt.Sprintf("%s invalid request: %s", c.name, apiErr.Message),
			StatusCode:  apiErr.HTTPStatusCode,
			ProviderErr: err,
		}
	default:
		return llm.NewStatusError(c.name, apiErr.HTTPStatusCode, err)
	}
}

var _ llm.Client = (*OpenAIClient)(nil)
