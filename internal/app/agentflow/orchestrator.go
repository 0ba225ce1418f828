package agentflow

import (
	"context"
	"fmt"
	"time"

	"github.com/PabloGalante/todo-agent/internal/app/intent"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

// Orchestrator offers the message to each agent in order; the first agent
// that handles it produces the reply.
type Orchestrator struct {
	agents []Agent
}

func NewOrchestrator(agents ...Agent) *Orchestrator {
	return &Orchestrator{agents: agents}
}

// NewDefaultOrchestrator constructs a flow with Intent -> Fallback.
func NewDefaultOrchestrator(llm domain.LLMClient, extractor *intent.Extractor, registry *tools.Registry) *Orchestrator {
	return NewOrchestrator(
		NewIntentAgent(extractor, registry),
		NewFallbackAgent(llm),
	)
}

// Result is the reply plus the tool calls that backed it.
type Result struct {
	Agent     string
	Reply     string
	ToolCalls []ToolCall
}

func (o *Orchestrator) Run(
	ctx context.Context,
	userMessage string,
	convCtx domain.ConversationContext,
) (Result, error) {
	if len(o.agents) == 0 {
		return Result{}, fmt.Errorf("no agents configured in orchestrator")
	}

	log := observability.LoggerFromContext(ctx).With(
		"session_id", convCtx.SessionID,
		"user_id", convCtx.UserID,
	)
	log.Info("orchestrator started", "agents_count", len(o.agents))

	in := AgentInput{
		UserMessage: userMessage,
		ConvCtx:     convCtx,
	}

	for _, ag := range o.agents {
		start := time.Now()

		out, err := ag.Run(ctx, in)
		if err != nil {
			log.Error("agent failed",
				"agent", ag.Name(),
				"error", err)
			return Result{}, fmt.Errorf("agent %s failed: %w", ag.Name(), err)
		}

		log.Info("agent run end",
			"agent", ag.Name(),
			"handled", out.Handled,
			"elapsed_ms", time.Since(start).Milliseconds())

		if out.Handled {
			return Result{Agent: ag.Name(), Reply: out.Reply, ToolCalls: out.ToolCalls}, nil
		}
	}

	return Result{}, fmt.Errorf("no agent handled the message")
}
