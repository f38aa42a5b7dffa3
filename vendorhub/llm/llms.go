package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is the text-completion boundary. The assistant surface treats the
// provider as opaque, a failed completion never mutates domain state.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

type Config struct {
	APIKey string
	Model  string
}

type OpenAIClient struct {
	client *openai.Client
	model  string
}

func NewOpenAIClient(config Config) *OpenAIClient {
	model := config.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{client: openai.NewClient(config.APIKey), model: model}
}

func (l *OpenAIClient) Complete(ctx context.Context, systemPrompt string, history []Message) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    l.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("error creating chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
