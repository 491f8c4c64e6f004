package provider

import (
	"time"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// qwenCapability is intentionally conservative: the original source's
// QwenAgentCLI command builder has a placeholder (no-op) branch for
// disallowed-tools flag construction, and spec §9 Open Question #1 says its
// real flag semantics "must be re-specified by the provider owner before
// emitting commands." This adapter therefore derives the deny-list (so the
// allow/deny bookkeeping stays provider-agnostic) but does not attach it to
// argv — emitting an unsupported flag would be worse than omitting it.
func qwenCapability() Capability {
	tools := commonFullToolSet()
	return Capability{
		Provider:    model.ProviderQwen,
		FullToolSet: tools,
		BuildCommand: func(instructionOrFile string, isFile bool, cwd string, cfg model.AgentConfig) ([]string, error) {
			capa := Table[model.ProviderQwen]
			if _, err := DeriveDenyList(capa, cfg.AllowedTools); err != nil {
				return nil, err
			}
			argv := []string{"qwen"}
			// denyFlag deliberately empty: see doc comment above.
			argv = appendCommonFlags(argv, instructionOrFile, isFile, cfg, "", nil)
			return argv, nil
		},
		ParseStreamLine: parseCommonLine,
		DefaultConfig: func() model.AgentConfig {
			timeout := 600 * time.Second
			return model.AgentConfig{
				Provider:        model.ProviderQwen,
				Model:           "qwen-max",
				HooksEnabled:    false,
				EnableStreaming: true,
				Timeout:         &timeout,
			}
		},
	}
}
