package llm

import (
	"strings"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// systemPrompt is deliberately neutral: this model only sees messages that
// were not task commands and never sees task data.
const systemPrompt = `
You are a helpful assistant inside a todo list app.

Rules:
- If the user asks about tasks, respond naturally without inventing or hallucinating task data.
- If they want to manage tasks, guide them to use commands like 'add task buy milk', 'list tasks', 'complete task 2', 'delete task 3' or 'update task 1 to new title'.
- Only provide information about tasks if it comes from actual tool results, which you never receive.
- Answer in the same language as the user and keep it short: 1 to 3 sentences.
`

// Prompt represents the system prompt + the content to send as "user".
type Prompt struct {
	System string
	User   string
}

// BuildPrompt builds the system prompt and the user content
// (history + new message) from the conversation context.
func BuildPrompt(userMessage string, ctx domain.ConversationContext) Prompt {
	var historyParts []string
	for _, m := range ctx.History {
		historyParts = append(historyParts, roleName(m.Author)+": "+m.Text)
	}

	historyText := strings.Join(historyParts, "\n")

	var userContent strings.Builder
	if historyText != "" {
		userContent.WriteString("Conversation so far:\n")
		userContent.WriteString(historyText)
		userContent.WriteString("\n\n")
	}
	userContent.WriteString("New user message:\n")
	userContent.WriteString(userMessage)

	return Prompt{
		System: systemPrompt,
		User:   userContent.String(),
	}
}

func roleName(r domain.Role) string {
	if r == domain.RoleAgent {
		return "assistant"
	}
	return "user"
}
