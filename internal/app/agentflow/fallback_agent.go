package agentflow

import (
	"context"

	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

const fallbackApology = "Sorry, I couldn't process that right now. You can still manage tasks with commands like 'add task', 'list tasks' or 'complete task 1'."

// FallbackAgent answers small talk with the LLM. It never sees task data, so
// it cannot invent any.
type FallbackAgent struct {
	llm domain.LLMClient
}

func NewFallbackAgent(llm domain.LLMClient) *FallbackAgent {
	return &FallbackAgent{llm: llm}
}

func (a *FallbackAgent) Name() string {
	return "fallback"
}

func (a *FallbackAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	log := observability.LoggerFromContext(ctx).With("agent", a.Name())

	reply, err := a.llm.GenerateReply(ctx, in.UserMessage, in.ConvCtx)
	if err != nil {
		log.Error("fallback agent error", "error", err)
		return AgentOutput{Handled: true, Reply: fallbackApology}, nil
	}

	return AgentOutput{Handled: true, Reply: reply}, nil
}
