// Package provider models the three supported agent CLIs (CLAUDE, QWEN,
// GEMINI) as a small capability table rather than an inheritance hierarchy
// (spec §9 "Provider polymorphism"): BuildCommand, ParseStreamLine, and
// DefaultConfig. Neither the agent driver nor the moderator-retry
// controller know which provider is behind the handle.
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// ParsedLine is the uniform (text, metadata) pair the stream parser exposes
// per line (spec §4.2).
type ParsedLine struct {
	Text     string
	Metadata *model.AgentMetadata // non-nil only for system/result events
}

// Capability is the per-provider method table (spec §9).
type Capability struct {
	Provider model.Provider

	// FullToolSet lists every tool name this provider knows about, used to
	// derive deny-lists from allow-lists (spec §3.5, §4.2).
	FullToolSet map[string]struct{}

	// BuildCommand turns an (instruction, cwd, config) tuple into an argv
	// vector (spec §4.2).
	BuildCommand func(instructionOrFile string, isFile bool, cwd string, cfg model.AgentConfig) ([]string, error)

	// ParseStreamLine classifies one stdout line (spec §4.2).
	ParseStreamLine func(line string) ParsedLine

	// DefaultConfig returns this provider's baseline AgentConfig.
	DefaultConfig func() model.AgentConfig
}

// Table maps every supported provider to its capability set.
var Table = map[model.Provider]Capability{
	model.ProviderClaude: claudeCapability(),
	model.ProviderQwen:   qwenCapability(),
	model.ProviderGemini: geminiCapability(),
}

// Get returns the capability set for a provider, or an error for unknown
// tags (spec §4.2 "Implementations raise on unknown tool names" extends to
// unknown providers).
func Get(p model.Provider) (Capability, error) {
	capa, ok := Table[p]
	if !ok {
		return Capability{}, fmt.Errorf("unknown provider: %s", p)
	}
	return capa, nil
}

// DeriveDenyList computes the complement of an allow-list against a
// provider's full tool set (spec §3.5). An unknown tool name in the
// allow-list is an error (spec §4.2).
func DeriveDenyList(capa Capability, allowed []string) ([]string, error) {
	if allowed == nil {
		return nil, nil
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		if _, ok := capa.FullToolSet[t]; !ok {
			return nil, fmt.Errorf("unknown tool name: %s", t)
		}
		allowSet[t] = struct{}{}
	}
	var deny []string
	for t := range capa.FullToolSet {
		if _, ok := allowSet[t]; !ok {
			deny = append(deny, t)
		}
	}
	return deny, nil
}

func commonFullToolSet() map[string]struct{} {
	tools := []string{"Read", "Write", "Edit", "Bash", "Grep", "Glob", "TodoWrite", "WebFetch", "WebSearch", "Task"}
	set := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		set[t] = struct{}{}
	}
	return set
}

// appendCommonFlags implements the shared argv tail from spec §6.5:
// model flag, session id (only if well-formed), deny-list flag, settings
// file, streaming flags, add-dir, and the non-interactive print flag.
func appendCommonFlags(argv []string, instructionOrFile string, isFile bool, cfg model.AgentConfig, denyFlag string, deny []string) []string {
	if cfg.Model != "" {
		argv = append(argv, "--model", cfg.Model)
	}
	if isWellFormedUUID(cfg.SessionID) {
		argv = append(argv, "--session-id", cfg.SessionID)
	}
	if len(deny) > 0 && denyFlag != "" {
		argv = append(argv, denyFlag)
		argv = append(argv, deny...)
	}
	if cfg.SettingsFile != "" {
		argv = append(argv, "--settings", cfg.SettingsFile)
	}
	if cfg.EnableStreaming {
		argv = append(argv, "--verbose", "--output-format", "stream-json")
	}
	if cfg.AddDir != "" {
		argv = append(argv, "--add-dir", cfg.AddDir)
	}
	if isFile {
		argv = append(argv, "--print", instructionOrFile)
	} else {
		argv = append(argv, "--prompt", instructionOrFile)
	}
	return argv
}

func isWellFormedUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		if i == 8 || i == 13 || i == 18 || i == 23 {
			if c != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// parseCommonLine implements the classification shared by all providers
// (spec §4.2): assistant text chunk, system/result metadata,
// content_block_delta chunk, unrecognised JSON, or raw non-JSON text. It
// never raises; a malformed line degrades to "text = raw line".
func parseCommonLine(line string) ParsedLine {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParsedLine{}
	}
	ev, err := ParseStreamEvent([]byte(trimmed))
	if err != nil {
		return ParsedLine{Text: line}
	}

	switch ev.Type {
	case EventTypeAssistant:
		var mc messageContent
		if len(ev.Message) > 0 {
			if err := json.Unmarshal(ev.Message, &mc); err == nil {
				var b strings.Builder
				for _, part := range mc.Content {
					if part.Type == "text" {
						b.WriteString(part.Text)
					}
				}
				return ParsedLine{Text: b.String()}
			}
		}
		return ParsedLine{Text: ""}
	case EventTypeContentDelta:
		if ev.Delta != nil {
			return ParsedLine{Text: ev.Delta.Text}
		}
		return ParsedLine{Text: ""}
	case EventTypeSystem, EventTypeResult:
		return ParsedLine{
			Text: "",
			Metadata: &model.AgentMetadata{
				CostUSD:       ev.CostUSD,
				DurationMS:    ev.DurationMS,
				DurationAPIMS: ev.DurationAPIMS,
				NumTurns:      ev.NumTurns,
			},
		}
	default:
		// Unrecognised but valid JSON: emit its serialised form as text.
		reserialized, _ := json.Marshal(ev)
		return ParsedLine{Text: string(reserialized)}
	}
}
