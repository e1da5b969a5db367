// Owner: august@eternis.ai
package ai

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAITransport sends the conversation as a chat completion request.
type OpenAITransport struct {
	client *openai.Client
	model  string
	apiKey string
}

// NewOpenAITransport disables the SDK's own retries; Client owns the retry policy.
func NewOpenAITransport(apiKey, baseURL, model string) *OpenAITransport {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAITransport{
		client: &client,
		model:  model,
		apiKey: apiKey,
	}
}

func (t *OpenAITransport) Name() string { return "openai" }

func (t *OpenAITransport) Configured() bool {
	return t.apiKey != "" && t.model != ""
}

func (t *OpenAITransport) Send(ctx context.Context, req Request) (string, error) {
	completion, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.Messages),
		Model:    t.model,
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyReply
	}
	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyReply
	}
	return content, nil
}
