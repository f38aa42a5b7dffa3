package tests

import (
	"context"
	"vendorhub/vendorhub/llm"
)

type llmStub struct {
	response string

	systemPrompts []string
	histories     [][]llm.Message
}

func newLlmStub() *llmStub {
	return &llmStub{response: "stub response"}
}

func (s *llmStub) Complete(ctx context.Context, systemPrompt string, history []llm.Message) (string, error) {
	s.systemPrompts = append(s.systemPrompts, systemPrompt)
	s.histories = append(s.histories, history)
	return s.response, nil
}
