package provider

import (
	"time"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func geminiCapability() Capability {
	tools := commonFullToolSet()
	return Capability{
		Provider:    model.ProviderGemini,
		FullToolSet: tools,
		BuildCommand: func(instructionOrFile string, isFile bool, cwd string, cfg model.AgentConfig) ([]string, error) {
			capa := Table[model.ProviderGemini]
			deny, err := DeriveDenyList(capa, cfg.AllowedTools)
			if err != nil {
				return nil, err
			}
			argv := []string{"gemini"}
			argv = appendCommonFlags(argv, instructionOrFile, isFile, cfg, "--disallowed-tools", deny)
			return argv, nil
		},
		ParseStreamLine: parseCommonLine,
		DefaultConfig: func() model.AgentConfig {
			timeout := 600 * time.Second
			return model.AgentConfig{
				Provider:        model.ProviderGemini,
				Model:           "gemini-2.5-pro",
				HooksEnabled:    false,
				EnableStreaming: true,
				Timeout:         &timeout,
			}
		},
	}
}
