// Package intent maps a free-text chat message to at most one task
// management intent using an ordered keyword rule table.
package intent

import "github.com/PabloGalante/todo-agent/internal/domain"

type Kind string

const (
	KindNone     Kind = "none"
	KindAddTask  Kind = "add_task"
	KindList     Kind = "list_tasks"
	KindComplete Kind = "complete_task"
	KindDelete   Kind = "delete_task"
	KindUpdate   Kind = "update_task"
)

// Failure explains why no intent was produced.
type Failure string

const (
	FailureNone Failure = ""
	// FailureAmbiguous: no rule matched the message.
	FailureAmbiguous Failure = "ambiguous"
	// FailureIncomplete: a rule matched but a required field was missing.
	FailureIncomplete Failure = "incomplete"
	// FailureNeedsClarification: the caller should ask the user to rephrase.
	FailureNeedsClarification Failure = "needs_clarification"
)

// Intent is the result of extraction. Only the fields relevant to Kind are
// set. When Kind is KindNone, Failure says why and Matched names the rule
// that fired, if any.
type Intent struct {
	Kind    Kind
	Matched Kind

	Title          string              // add_task
	Status         domain.StatusFilter // list_tasks
	TaskRef        string              // complete_task, delete_task, update_task
	NewTitle       string              // update_task
	NewDescription string              // update_task

	Failure       Failure
	Clarification string
}

// OK reports whether an actionable intent was extracted.
func (i Intent) OK() bool { return i.Kind != KindNone }

func none(f Failure) Intent {
	return Intent{Kind: KindNone, Failure: f}
}
