package provider

import (
	"time"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func claudeCapability() Capability {
	tools := commonFullToolSet()
	return Capability{
		Provider:    model.ProviderClaude,
		FullToolSet: tools,
		BuildCommand: func(instructionOrFile string, isFile bool, cwd string, cfg model.AgentConfig) ([]string, error) {
			capa := Table[model.ProviderClaude]
			deny, err := DeriveDenyList(capa, cfg.AllowedTools)
			if err != nil {
				return nil, err
			}
			argv := []string{"claude"}
			argv = appendCommonFlags(argv, instructionOrFile, isFile, cfg, "--disallowed-tools", deny)
			return argv, nil
		},
		ParseStreamLine: parseCommonLine,
		DefaultConfig: func() model.AgentConfig {
			timeout := 600 * time.Second
			return model.AgentConfig{
				Provider:        model.ProviderClaude,
				Model:           "claude-sonnet-4-5",
				HooksEnabled:    true,
				EnableStreaming: true,
				Timeout:         &timeout,
			}
		},
	}
}
