package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentops-sh/orchestrator/internal/config"
	"github.com/agentops-sh/orchestrator/internal/logging"
)

var (
	flagInteractiveEditor bool
	flagQuery             string
	flagPrint             string
	flagHook              string
	flagAudit             string
	flagRetryErrors       bool
	flagTasks             string
	flagSync              string
	flagDocs              string
	flagParallel          bool
	flagUserInstruction   string
	flagRootDir           string
	flagVerbose           bool
	flagBaseDir           string
)

// rootCmd is the orchestrator's single entry-point dispatcher (spec §6.1):
// a set of mutually-exclusive mode flags, first match wins, defaulting to
// --interactive-editor when none is given.
var rootCmd = &cobra.Command{
	Use:          "orchestrator",
	Short:        "LLM-agent orchestrator: audits, tasks, docs, and hook validation",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := config.Load(flagOverrides())
		if err != nil {
			return err
		}

		log, err := logging.New(logging.Config{Verbose: cfg.Verbose})
		if err != nil {
			return err
		}
		defer log.Sync()

		a, err := buildApp(cfg, log)
		if err != nil {
			return err
		}

		return dispatch(a)
	},
}

func flagOverrides() *config.Config {
	overrides := &config.Config{}
	if flagVerbose {
		overrides.Verbose = true
	}
	if flagBaseDir != "" {
		overrides.BaseDir = flagBaseDir
	}
	return overrides
}

// dispatch implements the mutually-exclusive flag table from spec §6.1,
// first match wins.
func dispatch(a *app) error {
	rootDir := flagRootDir
	if rootDir == "" {
		rootDir = "."
	}

	switch {
	case flagQuery != "":
		a.runQueryAndExit(flagQuery, rootDir)
	case flagPrint != "":
		a.runPrintAndExit(flagPrint, rootDir)
	case flagHook != "":
		if err := a.runHook(flagHook); err != nil {
			return err
		}
		return nil
	case flagAudit != "":
		a.runAuditAndExit(flagAudit, flagParallel, flagRetryErrors, flagUserInstruction)
	case flagTasks != "":
		a.runTasksAndExit(flagTasks, flagParallel, flagUserInstruction)
	case flagSync != "":
		a.runSyncAndExit(flagSync, flagUserInstruction)
	case flagDocs != "":
		a.runDocsAndExit(flagDocs, flagParallel, flagUserInstruction)
	default:
		a.runInteractiveEditorAndExit(rootDir)
	}
	return nil
}

func init() {
	rootCmd.Flags().BoolVar(&flagInteractiveEditor, "interactive-editor", false, "Launch TTY editor, send content to agent")
	rootCmd.Flags().StringVar(&flagQuery, "query", "", "Send string to agent, print reply")
	rootCmd.Flags().StringVar(&flagPrint, "print", "", "Read STDIN, send file-backed instruction + STDIN, print reply")
	rootCmd.Flags().StringVar(&flagHook, "hook", "", "Run named validator against JSON on STDIN")
	rootCmd.Flags().StringVar(&flagAudit, "audit", "", "Parallel audit of DIR")
	rootCmd.Flags().BoolVar(&flagRetryErrors, "retry-errors", false, "Re-audit only last-run ERROR files")
	rootCmd.Flags().StringVar(&flagTasks, "tasks", "", "Run task retry loop on each task file")
	rootCmd.Flags().StringVar(&flagSync, "sync", "", "Run git-sync retry loop on a module")
	rootCmd.Flags().StringVar(&flagDocs, "docs", "", "Run doc-maintenance retry loop on each doc file")
	rootCmd.Flags().BoolVar(&flagParallel, "parallel", false, "Enable parallel execution where applicable")
	rootCmd.Flags().StringVar(&flagUserInstruction, "user-instruction", "", "Prepend to every worker's stdin")
	rootCmd.Flags().StringVar(&flagRootDir, "root-dir", "", "Set working directory for children")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&flagBaseDir, "base-dir", "", "Override the orchestrator's base data directory")
}

// Execute runs the root command, exiting non-zero on framework-level
// errors (config validation, unknown hook name, discovery failure).
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
