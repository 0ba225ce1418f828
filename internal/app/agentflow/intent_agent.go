package agentflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/PabloGalante/todo-agent/internal/app/intent"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/domain"
	"github.com/PabloGalante/todo-agent/internal/observability"
)

// IntentAgent answers task commands from real tool results, never from the
// LLM. Messages with no recognizable command are passed on.
type IntentAgent struct {
	extractor *intent.Extractor
	registry  *tools.Registry
}

func NewIntentAgent(extractor *intent.Extractor, registry *tools.Registry) *IntentAgent {
	if extractor == nil {
		extractor = intent.NewExtractor()
	}
	return &IntentAgent{extractor: extractor, registry: registry}
}

func (a *IntentAgent) Name() string {
	return "intent"
}

func (a *IntentAgent) Run(ctx context.Context, in AgentInput) (AgentOutput, error) {
	log := observability.LoggerFromContext(ctx).With("agent", a.Name())

	got := a.extractor.Extract(in.UserMessage)
	log.Info("intent extracted", "kind", got.Kind, "matched", got.Matched, "failure", got.Failure)

	switch got.Failure {
	case intent.FailureAmbiguous:
		return AgentOutput{Handled: false}, nil
	case intent.FailureNeedsClarification:
		args := map[string]any{"user_id": string(in.ConvCtx.UserID), "task_id": got.TaskRef}
		return AgentOutput{
			Handled:   true,
			Reply:     "❌ Error: " + got.Clarification,
			ToolCalls: []ToolCall{{Name: tools.UpdateTaskName, Arguments: args, Error: got.Clarification}},
		}, nil
	case intent.FailureIncomplete:
		return AgentOutput{Handled: true, Reply: clarificationFor(got.Matched)}, nil
	}

	name, args := toolCallFor(got)
	tool, ok := a.registry.Get(name)
	if !ok {
		return AgentOutput{}, fmt.Errorf("tool %s not registered", name)
	}

	tctx := tools.ToolContext{
		UserID:    string(in.ConvCtx.UserID),
		SessionID: string(in.ConvCtx.SessionID),
	}
	result, err := tool.Call(ctx, tctx, args)
	call := ToolCall{Name: name, Arguments: args, Result: result}
	if err != nil {
		log.Warn("tool call failed", "tool", name, "error", err)
		call.Error = tools.UserMessage(err)
		return AgentOutput{
			Handled:   true,
			Reply:     "❌ Error: " + call.Error,
			ToolCalls: []ToolCall{call},
		}, nil
	}

	return AgentOutput{
		Handled:   true,
		Reply:     formatReply(name, result),
		ToolCalls: []ToolCall{call},
	}, nil
}

func toolCallFor(in intent.Intent) (string, map[string]any) {
	switch in.Kind {
	case intent.KindAddTask:
		return tools.AddTaskName, map[string]any{"title": in.Title}
	case intent.KindList:
		return tools.ListTasksName, map[string]any{"status": string(in.Status)}
	case intent.KindComplete:
		return tools.CompleteTaskName, map[string]any{"task_id": in.TaskRef}
	case intent.KindDelete:
		return tools.DeleteTaskName, map[string]any{"task_id": in.TaskRef}
	default:
		args := map[string]any{"task_id": in.TaskRef}
		if in.NewTitle != "" {
			args["title"] = in.NewTitle
		}
		if in.NewDescription != "" {
			args["description"] = in.NewDescription
		}
		return tools.UpdateTaskName, args
	}
}

func clarificationFor(kind intent.Kind) string {
	switch kind {
	case intent.KindAddTask:
		return "What should the task say? Try something like 'add task buy milk'."
	case intent.KindComplete:
		return "Which task should I mark as complete? Use its number from your list, e.g. 'complete task 3'."
	case intent.KindDelete:
		return "Which task should I delete? Use its number from your list, e.g. 'delete task 3'."
	case intent.KindUpdate:
		return "Tell me which task and what to change, e.g. 'update task 2 to buy oat milk'."
	default:
		return "Sorry, I didn't get that. Try 'add task', 'list tasks', 'complete task 1'."
	}
}

func formatReply(name string, result map[string]any) string {
	title, _ := result["title"].(string)
	switch name {
	case tools.AddTaskName:
		return "✅ Added task: " + title
	case tools.CompleteTaskName:
		return "✅ Completed task: " + title
	case tools.DeleteTaskName:
		return "🗑️ Deleted task: " + title
	case tools.UpdateTaskName:
		return "✏️ Updated task: " + title
	case tools.ListTasksName:
		return formatList(result)
	}
	return ""
}

func formatList(result map[string]any) string {
	status := domain.ParseStatusFilter(fmt.Sprint(result["status"]))
	items, _ := result["tasks"].([]map[string]any)

	if len(items) == 0 {
		switch status {
		case domain.StatusCompleted:
			return "You don't have any completed tasks yet. Keep going! 😊"
		case domain.StatusPending:
			return "You don't have any pending tasks. Great job! 🎉"
		default:
			return "You don't have any tasks yet. Want to add one?"
		}
	}

	var b strings.Builder
	switch status {
	case domain.StatusCompleted:
		fmt.Fprintf(&b, "Here are your completed tasks (%d total):", len(items))
	case domain.StatusPending:
		fmt.Fprintf(&b, "Here are your pending tasks (%d total):", len(items))
	default:
		fmt.Fprintf(&b, "Here are your tasks (%d total):", len(items))
	}
	for i, item := range items {
		mark := "○"
		if done, _ := item["completed"].(bool); done {
			mark = "✓"
		}
		shortID, ok := item["short_id"].(int)
		if !ok || shortID == 0 {
			shortID = i + 1
		}
		fmt.Fprintf(&b, "\n%d. [%s] %s", shortID, mark, item["title"])
	}
	return b.String()
}
