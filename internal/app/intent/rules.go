package intent

import (
	"strings"

	"github.com/PabloGalante/todo-agent/internal/domain"
)

// Keyword sets, checked as substrings of the lower-cased message.
var (
	AddKeywords = []string{
		"add a task", "create a task", "add task", "create task",
		"add to my list", "remember to", "need to", "have to",
		"make a note to", "remind me to", "don't forget to", "add task:",
	}

	ListKeywords = []string{
		"show me", "list", "view", "display", "my tasks", "what do i have",
		"what's pending", "show tasks", "what's on my list", "all tasks",
		"list all", "what are my", "tasks list", "see my tasks", "list my tasks",
		"show my tasks", "what tasks do i have", "my task list",
	}

	CompletedPhrases = []string{
		"completed", "done", "finished", "completed tasks", "done tasks",
		"what's done", "finished tasks", "show completed", "my completed tasks",
		"what's completed", "all completed tasks", "completed task list",
	}

	PendingPhrases = []string{
		"pending", "not done", "to do", "todo", "unfinished", "incomplete",
		"what's left", "what remains", "remaining tasks",
	}

	CompleteKeywords = []string{
		"complete", "finish", "done", "mark as complete", "check off",
		"tick off", "complete task", "finish task", "mark done",
		"mark as done", "check task", "cross off",
		"finish up", "mark complete",
	}

	DeleteKeywords = []string{
		"delete", "remove", "cancel", "get rid of", "eliminate", "erase",
		"remove task", "delete task", "trash", "dispose", "clear task",
		"get rid of task", "delete the task", "remove the task", "cancel task",
	}

	UpdateKeywords = []string{
		"update", "change", "modify", "edit", "rename", "alter",
		"update task", "change task", "modify task", "edit task",
		"rename task", "update title", "change title", "modify title",
		"edit title", "rename title", "update the task", "change the task",
		"update description", "change description", "modify description", "update desc", "change desc",
	}

	// commandWords disqualify the whole-message fallback for add.
	commandWords = []string{"list", "show", "delete", "complete", "update", "change", "rename", "modify"}

	descriptionWords = []string{"description", "desc"}
)

// DescriptionClarification is returned when an update mentions a
// description but none could be extracted.
const DescriptionClarification = "Please provide the new description after 'description :', e.g., 'update task 5 description : new details here'"

// DefaultRules returns the rule table in precedence order: add, list,
// complete, delete, update.
func DefaultRules() []Rule {
	return []Rule{
		{Kind: KindAddTask, Match: containsAny(AddKeywords...), Extract: extractAdd},
		{Kind: KindList, Match: containsAny(ListKeywords...), Extract: extractList},
		{Kind: KindComplete, Match: containsAny(CompleteKeywords...), Extract: refExtractor(KindComplete)},
		{Kind: KindDelete, Match: containsAny(DeleteKeywords...), Extract: refExtractor(KindDelete)},
		{Kind: KindUpdate, Match: containsAny(UpdateKeywords...), Extract: extractUpdate},
	}
}

func extractAdd(original, lower string) Intent {
	title, ok := addTitle(original)
	if !ok {
		return none(FailureIncomplete)
	}
	return Intent{Kind: KindAddTask, Title: title}
}

func extractList(_, lower string) Intent {
	status := domain.StatusAll
	switch {
	case containsAny(CompletedPhrases...)(lower):
		status = domain.StatusCompleted
	case containsAny(PendingPhrases...)(lower):
		status = domain.StatusPending
	}
	return Intent{Kind: KindList, Status: status}
}

func refExtractor(kind Kind) func(string, string) Intent {
	return func(original, _ string) Intent {
		ref, ok := TaskRef(original)
		if !ok {
			return none(FailureIncomplete)
		}
		return Intent{Kind: kind, TaskRef: ref}
	}
}

func extractUpdate(original, lower string) Intent {
	ref, hasRef := TaskRef(original)

	if containsAny(descriptionWords...)(lower) {
		desc, ok := updateDescription(original)
		if !ok {
			in := none(FailureNeedsClarification)
			in.TaskRef = ref
			in.Clarification = DescriptionClarification
			return in
		}
		if !hasRef {
			return none(FailureIncomplete)
		}
		return Intent{Kind: KindUpdate, TaskRef: ref, NewDescription: desc}
	}

	title, ok := updateTitle(original)
	if !hasRef || !ok {
		in := none(FailureIncomplete)
		in.TaskRef = ref
		return in
	}
	return Intent{Kind: KindUpdate, TaskRef: ref, NewTitle: title}
}

func wordCount(s string) int { return len(strings.Fields(s)) }
