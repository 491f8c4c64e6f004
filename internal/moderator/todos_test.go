package moderator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func TestIncompleteTodosFiltersCompleted(t *testing.T) {
	todos := []model.Todo{
		{Content: "a", Status: model.TodoCompleted},
		{Content: "b", Status: model.TodoPending},
		{Content: "c", Status: model.TodoInProgress},
	}
	incomplete := IncompleteTodos(todos)
	assert.Len(t, incomplete, 2)
	assert.Equal(t, "b", incomplete[0].Content)
	assert.Equal(t, "c", incomplete[1].Content)
}

func TestIncompleteTodosEmpty(t *testing.T) {
	assert.Empty(t, IncompleteTodos(nil))
}

func TestFormatTodoSectionMarksStatus(t *testing.T) {
	section := FormatTodoSection([]model.Todo{
		{Content: "done thing", Status: model.TodoCompleted},
		{Content: "doing thing", Status: model.TodoInProgress},
		{Content: "todo thing", Status: model.TodoPending},
	})
	assert.Contains(t, section, "[x] done thing")
	assert.Contains(t, section, "[~] doing thing")
	assert.Contains(t, section, "[ ] todo thing")
}

func TestFormatTodoSectionEmptyReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatTodoSection(nil))
}

func TestTodoFilePathFormat(t *testing.T) {
	path, err := TodoFilePath("01890a5d-ac96-774b-bcce-b302099a8057")
	assert.NoError(t, err)
	assert.Contains(t, path, "01890a5d-ac96-774b-bcce-b302099a8057-agent-01890a5d-ac96-774b-bcce-b302099a8057.json")
}

func TestLoadTodosMissingFileReturnsEmpty(t *testing.T) {
	todos := LoadTodos("nonexistent-session-id-for-test")
	assert.Empty(t, todos)
}
