// Package transcript reads the JSONL transcript file a hook event points
// at (spec §6.3). It never writes one.
package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Message is one parsed transcript line of interest to the hooks and
// completion moderator (spec §6.3: "assistant" lines carry text content,
// "user" lines are read for the moderator's benefit).
type Message struct {
	Type string // "assistant" | "user" | other (ignored)
	Text string
	Raw  string // the original JSON line, used when re-formatting context
}

type rawLine struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// ReadMessages parses every line of the transcript at path, skipping
// malformed lines silently (spec §6.3 "Malformed lines are skipped
// silently with a warning").
func ReadMessages(log *zap.Logger, path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var raw rawLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			if log != nil {
				log.Warn("skipping malformed transcript line", zap.Error(err))
			}
			continue
		}
		if raw.Type != "assistant" && raw.Type != "user" {
			continue
		}
		var text strings.Builder
		for _, c := range raw.Message.Content {
			if c.Type == "text" {
				text.WriteString(c.Text)
			}
		}
		messages = append(messages, Message{Type: raw.Type, Text: text.String(), Raw: line})
	}
	if err := scanner.Err(); err != nil {
		return messages, err
	}
	return messages, nil
}

// LastNMessages returns at most the last n messages, in original order.
func LastNMessages(messages []Message, n int) []Message {
	if n <= 0 || len(messages) == 0 {
		return nil
	}
	if n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}

// LastAssistantText returns the text of the final "assistant"-typed message
// (spec §6.3, §4.9 step 2); empty if none.
func LastAssistantText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Type == "assistant" {
			return messages[i].Text
		}
	}
	return ""
}

// FormatForPrompt renders messages as a moderator-readable conversation
// transcript (spec §4.10 "Build the conversation context for the
// moderator").
func FormatForPrompt(messages []Message) string {
	var b strings.Builder
	for _, m := range messages {
		role := "User"
		if m.Type == "assistant" {
			role = "Assistant"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}
