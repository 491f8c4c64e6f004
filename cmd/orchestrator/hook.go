package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentops-sh/orchestrator/internal/hooks"
)

// hookDeps bundles the moderator-backed PreToolUse validator dependencies
// built once per process (spec §4.8.1).
func (a *app) hookDeps() hooks.ModeratedDeps {
	return hooks.ModeratedDeps{
		Controller:         a.controller,
		Invoke:             a.moderatorInvoke,
		AuditLogDir:        auditLogDir(a.cfg.BaseDir),
		FirstOutputTimeout: a.cfg.Moderator.FirstOutputTimeout(),
	}
}

func execIDFn() func() string {
	return func() string { return fmt.Sprintf("%d", time.Now().UnixNano()) }
}

// buildHookRegistry wires every named validator (spec §4.8, §4.9) behind
// the names the hook-installer settings file (§6.5) dispatches by.
func (a *app) buildHookRegistry() hooks.Registry {
	cfgHooks := a.cfg.Hooks
	deps := a.hookDeps()

	commandDeny, _ := hooks.LoadPatterns(cfgHooks.CommandDenyPatterns)
	greeting, _ := hooks.LoadPatterns(cfgHooks.GreetingPatterns)
	prohibited, _ := hooks.LoadPatterns(cfgHooks.ProhibitedPhrases)
	apiLimit, _ := hooks.LoadPatterns(cfgHooks.APILimitPatterns)

	reg := hooks.Registry{
		"command": hooks.NewCommandValidator(commandDeny),
		"shebang": hooks.ShebangValidator,
		"malicious-behavior": hooks.NewMaliciousBehaviorValidator(deps, execIDFn()),
		"research": hooks.NewResearchValidator(deps, a.cfg.Hooks.ResearchLineThreshold, execIDFn()),
		"todo": hooks.NewTodoValidator(deps, execIDFn()),
		"response-scanner": hooks.NewResponseScanner(hooks.ResponseScannerPatterns{
			Greeting:   greeting,
			APILimit:   apiLimit,
			Prohibited: prohibited,
		}, a.completion, a.cfg.Timeouts.Framework(), execIDFn()),
	}

	if corePatterns, err := os.ReadFile(filepath.Join(a.cfg.PromptsDir, "core-audit-patterns.txt")); err == nil {
		template := auditDiffTemplate()
		reg["core-quality"] = hooks.NewDiffAuditValidator(deps, "core-quality", template, string(corePatterns), ".go", execIDFn())
	}
	if pyPatterns, err := os.ReadFile(filepath.Join(a.cfg.PromptsDir, "python-audit-patterns.txt")); err == nil {
		template := auditDiffTemplate()
		reg["python-quality"] = hooks.NewDiffAuditValidator(deps, "python-quality", template, string(pyPatterns), ".py", execIDFn())
	}

	return reg
}

func auditDiffTemplate() string {
	return "Review this proposed change against the following patterns:\n\n{PATTERNS}\n\n" +
		"Respond with ALLOW if the change is acceptable, or BLOCK: <reason> otherwise."
}

// runHook implements the `--hook NAME` dispatch (spec §6.1, C4).
func (a *app) runHook(name string) error {
	return a.hookReg.Run(name, os.Stdin, os.Stdout, a.log)
}
