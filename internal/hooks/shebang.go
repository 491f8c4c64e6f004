package hooks

import (
	"bytes"
	"os"
	"strings"

	"github.com/agentops-sh/orchestrator/internal/model"
)

var shebangSecurityIssues = []struct {
	pattern     []byte
	description string
}{
	{[]byte("sudo"), "Contains sudo (security risk)"},
	{[]byte("/usr/bin/python"), "System python path (out-of-sandbox)"},
	{[]byte("/usr/local/bin/python"), "System python path (out-of-sandbox)"},
}

var shebangIncorrectPatterns = []struct {
	pattern     []byte
	description string
}{
	{[]byte("#!/usr/bin/env python3"), "Direct python3 shebang"},
	{[]byte("#!/usr/bin/env python"), "Direct python shebang"},
	{[]byte("#!/usr/bin/python"), "Direct python shebang"},
	{[]byte(`.venv/bin/python"`), "Direct .venv python"},
}

const runWrapperMarker = "ami-run"

// ShebangValidator is the PreToolUse Python-shebang validator (spec §4.8
// "Shebang validator"): only examines the first 200 bytes of the proposed
// new content of a Python file Write/Edit.
func ShebangValidator(ctx Context) model.HookResult {
	event := ctx.Event
	if event.ToolName != "Edit" && event.ToolName != "Write" {
		return model.Allow()
	}
	if event.ToolInput == nil {
		return model.Allow()
	}

	filePath, _ := event.ToolInput["file_path"].(string)
	if !strings.HasSuffix(filePath, ".py") {
		return model.Allow()
	}

	var newContent string
	if event.ToolName == "Write" {
		newContent, _ = event.ToolInput["content"].(string)
	} else {
		oldString, _ := event.ToolInput["old_string"].(string)
		newString, _ := event.ToolInput["new_string"].(string)
		if !strings.HasPrefix(oldString, "#!") && !strings.HasPrefix(newString, "#!") {
			return model.Allow()
		}
		if data, err := os.ReadFile(filePath); err == nil {
			newContent = strings.Replace(string(data), oldString, newString, 1)
		} else {
			newContent = newString
		}
	}

	head := []byte(newContent)
	if len(head) > 200 {
		head = head[:200]
	}

	for _, issue := range shebangSecurityIssues {
		if bytes.Contains(head, issue.pattern) {
			return model.Deny("SECURITY: " + issue.description + " in " + filePath)
		}
	}
	for _, issue := range shebangIncorrectPatterns {
		if bytes.Contains(head, issue.pattern) && !bytes.Contains(head, []byte(runWrapperMarker)) {
			return model.Deny("Shebang issue: " + issue.description + " in " + filePath + ". Use the project run wrapper instead.")
		}
	}
	return model.Allow()
}
