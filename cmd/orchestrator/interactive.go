package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/provider"
)

// runQueryAndExit implements `--query STRING` (spec §6.1): send a string to
// the agent and print its reply.
func (a *app) runQueryAndExit(query, rootDir string) {
	ctx := context.Background()
	output, _, err := a.spawnAgent(ctx, model.ProviderClaude, query, rootDir, a.cfg.Timeouts.Framework(), nil)
	if err != nil {
		fatalf("query failed: %v", err)
	}
	fmt.Println(output)
	exitProcess(0)
}

// runPrintAndExit implements `--print FILE` (spec §6.1): read STDIN, send a
// file-backed instruction plus STDIN, print the reply.
func (a *app) runPrintAndExit(instructionFile, rootDir string) {
	if _, err := os.Stat(instructionFile); err != nil {
		fatalf("instruction file missing: %v", err)
	}

	stdin, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		fatalf("reading stdin: %v", err)
	}

	ctx := context.Background()
	capa, err := provider.Get(model.ProviderClaude)
	if err != nil {
		fatalf("%v", err)
	}
	cfg := capa.DefaultConfig()
	cfg.SessionID = newSessionID()
	framework := a.cfg.Timeouts.Framework()
	cfg.Timeout = &framework

	argv, err := capa.BuildCommand(instructionFile, true, rootDir, cfg)
	if err != nil {
		fatalf("building command: %v", err)
	}

	stdinStr := string(stdin)
	output, _, err := a.driver.Run(ctx, argv, &stdinStr, rootDir, cfg, nil)
	if err != nil {
		fatalf("agent invocation failed: %v", err)
	}
	fmt.Println(output)
	exitProcess(0)
}

// runInteractiveEditorAndExit implements `--interactive-editor` (spec
// §6.1), the default mode: launch the user's editor against a scratch
// instruction file, then hand its content to the agent in streaming mode.
func (a *app) runInteractiveEditorAndExit(rootDir string) {
	tmp, err := os.CreateTemp("", "orchestrator-instruction-*.md")
	if err != nil {
		fatalf("creating scratch instruction file: %v", err)
	}
	defer os.Remove(tmp.Name())
	tmp.Close()

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	if err := launchEditor(editor, tmp.Name()); err != nil {
		fatalf("launching editor: %v", err)
	}

	content, err := os.ReadFile(tmp.Name())
	if err != nil {
		fatalf("reading edited instruction: %v", err)
	}
	if len(content) == 0 {
		exitProcess(0)
	}

	ctx := context.Background()
	_, _, err = a.spawnAgent(ctx, model.ProviderClaude, string(content), rootDir, a.cfg.Timeouts.Framework(), func(line string) {
		fmt.Println(line)
	})
	if err != nil {
		fatalf("agent invocation failed: %v", err)
	}
	exitProcess(0)
}

func launchEditor(editor, path string) error {
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
