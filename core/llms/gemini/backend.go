package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/koscakluka/pixel-core/core/llms"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

var tracer = otel.Tracer("github.com/koscakluka/pixel-core/core/llms/gemini")

// Backend chats with Gemini through the Gemini API.
type Backend struct {
	*llms.Conversation

	client  *genai.Client
	options llms.BackendOptions
}

func NewBackend(ctx context.Context, apiKey string, opts ...llms.BackendOption) (*Backend, error) {
	options := llms.ApplyOptions(llms.BackendOptions{Model: defaultModel}, opts...)

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	config := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if options.Endpoint != "" {
		config.HTTPOptions.BaseURL = options.Endpoint
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Backend{
		Conversation: llms.NewConversation(options),
		client:       client,
		options:      options,
	}, nil
}

func (b *Backend) Send(ctx context.Context, text string) (string, error) {
	return b.Exchange(ctx, text, b.generate)
}

func (b *Backend) generate(ctx context.Context, instructions string, history []llms.Message, text string) (reply string, err error) {
	ctx, span := tracer.Start(ctx, "generate content")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "content generation failed")
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("model", b.options.Model), attribute.Int("history.length", len(history)))

	var config *genai.GenerateContentConfig
	if instructions != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(instructions, genai.RoleUser),
		}
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.options.Model, toContents(history, text), config)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", llms.ErrServiceUnavailable, err)
	}
	return resp.Text(), nil
}

func toContents(history []llms.Message, text string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, message := range history {
		var role genai.Role = genai.RoleUser
		if message.Role == llms.RoleModel {
			role = genai.RoleModel
		}

		parts := make([]*genai.Part, 0, len(message.Parts))
		for _, part := range message.Parts {
			parts = append(parts, genai.NewPartFromText(part))
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return append(contents, genai.NewContentFromText(text, genai.RoleUser))
}
