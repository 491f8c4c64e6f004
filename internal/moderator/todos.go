package moderator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// TodoFilePath returns the well-known per-user path for a session's todo
// list (spec §6.3): ~/.claude/todos/<session_id>-agent-<session_id>.json.
func TodoFilePath(sessionID string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	name := fmt.Sprintf("%s-agent-%s.json", sessionID, sessionID)
	return filepath.Join(home, ".claude", "todos", name), nil
}

// LoadTodos reads and parses the session todo list. A missing file or
// malformed JSON both yield an empty list (spec §6.3 is silent on errors;
// the completion moderator treats "no todos" as "nothing incomplete").
func LoadTodos(sessionID string) []model.Todo {
	path, err := TodoFilePath(sessionID)
	if err != nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var todos []model.Todo
	if err := json.Unmarshal(data, &todos); err != nil {
		return nil
	}
	return todos
}

// IncompleteTodos returns the subset of todos whose status is pending or
// in_progress, in original order (spec §4.10 precondition #2).
func IncompleteTodos(todos []model.Todo) []model.Todo {
	var out []model.Todo
	for _, t := range todos {
		if t.Status == model.TodoPending || t.Status == model.TodoInProgress {
			out = append(out, t)
		}
	}
	return out
}

// FormatTodoSection renders a human-readable todo-list section appended to
// the moderator context (spec §4.10 "Append a human-readable todo-list
// section").
func FormatTodoSection(todos []model.Todo) string {
	if len(todos) == 0 {
		return ""
	}
	out := "\n\n--- Current Todo List ---\n"
	for _, t := range todos {
		mark := " "
		switch t.Status {
		case model.TodoCompleted:
			mark = "x"
		case model.TodoInProgress:
			mark = "~"
		}
		out += fmt.Sprintf("[%s] %s\n", mark, t.Content)
	}
	return out
}
