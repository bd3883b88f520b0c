package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/koscakluka/pixel-core/core/llms"
	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultModel = goopenai.GPT4oMini
	// GroqEndpoint serves the same chat completions API as OpenAI.
	GroqEndpoint = "https://api.groq.com/openai/v1"
	GroqModel    = "llama-3.3-70b-versatile"
)

// Backend chats through an OpenAI compatible /chat/completions endpoint,
// OpenAI itself or Groq.
type Backend struct {
	*llms.Conversation

	client  *goopenai.Client
	options llms.BackendOptions
}

func NewBackend(apiKey string, opts ...llms.BackendOption) *Backend {
	options := llms.ApplyOptions(llms.BackendOptions{Model: defaultModel}, opts...)

	config := goopenai.DefaultConfig(apiKey)
	if options.Endpoint != "" {
		config.BaseURL = options.Endpoint
	}
	config.HTTPClient = options.HTTPClient
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	return &Backend{
		Conversation: llms.NewConversation(options),
		client:       goopenai.NewClientWithConfig(config),
		options:      options,
	}
}

func (b *Backend) Send(ctx context.Context, text string) (string, error) {
	return b.Exchange(ctx, text, b.generate)
}

func (b *Backend) generate(ctx context.Context, instructions string, history []llms.Message, text string) (reply string, err error) {
	ctx, span := tracer.Start(ctx, "chat completion")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "chat completion failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("model", b.options.Model), attribute.Int("history.length", len(history)))

	resp, err := b.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:    b.options.Model,
		Messages: toChatMessages(instructions, history, text),
	})
	if err != nil {
		return "", classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", llms.ErrServiceUnavailable)
	}
	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}

func toChatMessages(instructions string, history []llms.Message, text string) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+2)
	if instructions != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: instructions,
		})
	}

	for _, message := range history {
		role := goopenai.ChatMessageRoleUser
		if message.Role == llms.RoleModel {
			role = goopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, goopenai.ChatCompletionMessage{Role: role, Content: message.Text()})
	}

	return append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: text,
	})
}

func classifyError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai api error (status %d): %s", llms.ErrServiceUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("%w: openai request failed (status %d): %w", llms.ErrServiceUnavailable, reqErr.HTTPStatusCode, reqErr.Err)
	}
	return fmt.Errorf("%w: %w", llms.ErrServiceUnavailable, err)
}
