package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/agentcli"
	"github.com/agentops-sh/orchestrator/internal/config"
	"github.com/agentops-sh/orchestrator/internal/hooks"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/moderator"
	"github.com/agentops-sh/orchestrator/internal/provider"
)

// app bundles every shared dependency built once at process startup and
// threaded down to each dispatch handler (spec §9 "process-wide config and
// a single logger instance").
type app struct {
	log        *zap.Logger
	cfg        *config.Config
	driver     *agentcli.Driver
	controller *moderator.Controller
	completion *moderator.CompletionModerator
	hookReg    hooks.Registry
}

func newSessionID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// spawnAgent runs one non-interactive agent invocation through the given
// provider, streaming each line to onLine if non-nil (spec §4.1, §4.2).
func (a *app) spawnAgent(ctx context.Context, providerTag model.Provider, instruction, cwd string, timeout time.Duration, onLine agentcli.LineHandler) (string, *model.AgentMetadata, error) {
	capa, err := provider.Get(providerTag)
	if err != nil {
		return "", nil, err
	}
	cfg := capa.DefaultConfig()
	cfg.SessionID = newSessionID()
	cfg.Timeout = &timeout

	argv, err := capa.BuildCommand(instruction, false, cwd, cfg)
	if err != nil {
		return "", nil, err
	}

	rawOutput, meta, err := a.driver.Run(ctx, argv, nil, cwd, cfg, func(line string) {
		if onLine == nil {
			return
		}
		parsed := capa.ParseStreamLine(line)
		if parsed.Text != "" {
			onLine(parsed.Text)
		}
	})
	return rawOutput, meta, err
}

// moderatorInvoke adapts spawnAgent to the moderator.Controller's RunFunc
// shape, running the moderator through Claude by convention — it is the
// only provider config with hooks_enabled turned on by default and is
// configured as the orchestrator's own trusted validation model.
func (a *app) moderatorInvoke(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
	if err := moderator.WriteAuditLogHeader(auditLogPath, prompt); err != nil {
		return "", err
	}
	wroteFirstOutput := false
	output, _, err := a.spawnAgent(ctx, model.ProviderClaude, prompt, "", timeout, func(line string) {
		f, openErr := os.OpenFile(auditLogPath, os.O_APPEND|os.O_WRONLY, 0o644)
		if openErr != nil {
			return
		}
		defer f.Close()
		if !wroteFirstOutput {
			fmt.Fprintf(f, "=== FIRST OUTPUT: %s ===\n", time.Now().Format(time.RFC3339))
			wroteFirstOutput = true
		}
		fmt.Fprintln(f, line)
	})
	return output, err
}

func buildApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	driver := agentcli.New(log)
	controller := moderator.New(log, driver, cfg.Moderator.FirstOutputTimeout(), cfg.Moderator.MaxAttempts)

	a := &app{log: log, cfg: cfg, driver: driver, controller: controller}
	a.completion = moderator.NewCompletionModerator(log, controller, cfg.Moderator.CompletionEnabled, a.moderatorInvoke)
	a.hookReg = a.buildHookRegistry()
	return a, nil
}

func auditLogDir(baseDir string) string {
	return filepath.Join(baseDir, "logs", "agent-cli")
}
