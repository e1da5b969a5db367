// Owner: august@eternis.ai
package ai

import (
	"github.com/openai/openai-go"
)

// MessageRole represents the role of a message.
type MessageRole string

const (
	MessageRoleSystem    MessageRole = "system"
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Meta is forwarded to the gateway untouched.
type Meta struct {
	ProjectID string `json:"projectId,omitempty"`
	Platform  string `json:"platform,omitempty"`
}

// Request is one chat call as seen by a Transport.
type Request struct {
	Messages []Message `json:"messages"`
	Meta     Meta      `json:"meta"`
}

// ToOpenAI converts the message into the openai-go param union.
func (m Message) ToOpenAI() openai.ChatCompletionMessageParamUnion {
	switch m.Role {
	case MessageRoleSystem:
		return openai.SystemMessage(m.Content)
	case MessageRoleAssistant:
		return openai.AssistantMessage(m.Content)
	default:
		return openai.UserMessage(m.Content)
	}
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		out = append(out, m.ToOpenAI())
	}
	return out
}
