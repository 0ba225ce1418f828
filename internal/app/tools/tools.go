package tools

import (
	"context"
	"errors"
	"sort"
)

// ToolContext brings metadata of the call to the tool
type ToolContext struct {
	UserID    string
	SessionID string
	RequestID string
}

// Tool represents a tool agents can invoke
// input/output is a generic map to maintain flexibility.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, tctx ToolContext, input map[string]any) (map[string]any, error)
}

// Error carries a message that is safe to show to the user.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage extracts the user-facing text of err.
func UserMessage(err error) string {
	var te *Error
	if errors.As(err, &te) {
		return te.Message
	}
	return "something went wrong, please try again"
}

// Registry looks tools up by name.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.tools[t.Name()] = t
	}
	return r
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the tools sorted by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// --- internal helpers --- //

func getString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getOptString(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return &s
		}
	}
	return nil
}
