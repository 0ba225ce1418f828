package agentflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/todo-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/todo-agent/internal/app/intent"
	"github.com/PabloGalante/todo-agent/internal/app/tasks"
	"github.com/PabloGalante/todo-agent/internal/app/tools"
	"github.com/PabloGalante/todo-agent/internal/domain"
)

type stubLLM struct {
	reply  string
	err    error
	prompt string
}

func (s *stubLLM) GenerateReply(_ context.Context, prompt string, _ domain.ConversationContext) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func newFlow(llm domain.LLMClient) *Orchestrator {
	svc := tasks.NewService(memory.NewTaskStore(), nil)
	return NewDefaultOrchestrator(llm, intent.NewExtractor(), tools.NewRegistry(tools.NewTaskTools(svc)...))
}

func run(t *testing.T, o *Orchestrator, msg string) Result {
	t.Helper()
	res, err := o.Run(context.Background(), msg, domain.ConversationContext{UserID: "u1", SessionID: "s1"})
	require.NoError(t, err)
	return res
}

func TestChatTaskCommands(t *testing.T) {
	llm := &stubLLM{reply: "hi!"}
	o := newFlow(llm)

	res := run(t, o, "list my tasks")
	assert.Equal(t, "You don't have any tasks yet. Want to add one?", res.Reply)

	res = run(t, o, "add a task to buy milk")
	assert.Equal(t, "✅ Added task: Buy milk", res.Reply)
	assert.Equal(t, "intent", res.Agent)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, tools.AddTaskName, res.ToolCalls[0].Name)

	run(t, o, "remember to call mom")

	res = run(t, o, "complete task 1")
	assert.Equal(t, "✅ Completed task: Buy milk", res.Reply)

	res = run(t, o, "show me my tasks")
	assert.Equal(t, "Here are your tasks (2 total):\n1. [✓] Buy milk\n2. [○] Call mom", res.Reply)

	res = run(t, o, "show me my completed tasks")
	assert.Equal(t, "Here are your completed tasks (1 total):\n1. [✓] Buy milk", res.Reply)

	res = run(t, o, "update task 2 to call dad")
	assert.Equal(t, "✏️ Updated task: Call dad", res.Reply)

	res = run(t, o, "delete task 1")
	assert.Equal(t, "🗑️ Deleted task: Buy milk", res.Reply)

	res = run(t, o, "what's pending?")
	assert.Equal(t, "Here are your pending tasks (1 total):\n1. [○] Call dad", res.Reply)

	assert.Empty(t, llm.prompt, "task commands must not reach the LLM")
}

func TestChatEmptyFilters(t *testing.T) {
	o := newFlow(&stubLLM{})

	assert.Equal(t, "You don't have any completed tasks yet. Keep going! 😊", run(t, o, "list completed tasks").Reply)
	assert.Equal(t, "You don't have any pending tasks. Great job! 🎉", run(t, o, "list pending tasks").Reply)
}

func TestChatErrorsAndClarifications(t *testing.T) {
	o := newFlow(&stubLLM{})

	res := run(t, o, "complete task 9")
	assert.True(t, strings.HasPrefix(res.Reply, "❌ Error: Task 9 not found"), res.Reply)
	require.Len(t, res.ToolCalls, 1)
	assert.NotEmpty(t, res.ToolCalls[0].Error)

	res = run(t, o, "update task 1 description")
	assert.Equal(t, "❌ Error: "+intent.DescriptionClarification, res.Reply)

	res = run(t, o, "update task 1")
	assert.Contains(t, res.Reply, "which task and what to change")
	assert.Empty(t, res.ToolCalls)
}

func TestChatFallsBackToLLM(t *testing.T) {
	llm := &stubLLM{reply: "Hello! How can I help?"}
	o := newFlow(llm)

	res := run(t, o, "hello there")
	assert.Equal(t, "fallback", res.Agent)
	assert.Equal(t, "Hello! How can I help?", res.Reply)
	assert.Equal(t, "hello there", llm.prompt)
}

func TestChatLLMFailureApologizes(t *testing.T) {
	o := newFlow(&stubLLM{err: errors.New("quota")})

	res := run(t, o, "good morning")
	assert.Equal(t, fallbackApology, res.Reply)
}

func TestOrchestratorWithoutAgents(t *testing.T) {
	_, err := NewOrchestrator().Run(context.Background(), "x", domain.ConversationContext{})
	assert.Error(t, err)
}
