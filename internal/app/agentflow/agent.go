package agentflow

import (
	"context"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// Agent handles a user message or passes it on to the next agent.
type Agent interface {
	Name() string
	Run(ctx context.Context, in AgentInput) (AgentOutput, error)
}

type AgentInput struct {
	UserMessage string
	ConvCtx     domain.ConversationContext
}

// AgentOutput with Handled=false lets the orchestrator try the next agent.
type AgentOutput struct {
	Handled   bool
	Reply     string
	ToolCalls []ToolCall
}

// ToolCall records one tool invocation made while answering.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}
