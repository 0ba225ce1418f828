package llm

import (
	"context"
	"fmt"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

type MockLLM struct{}

func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

func (m *MockLLM) GenerateReply(_ context.Context, prompt string, _ domain.ConversationContext) (string, error) {
	return fmt.Sprintf("I'm your task assistant. You said %q. I can add, list, complete, update or delete tasks, just ask.", prompt), nil
}
