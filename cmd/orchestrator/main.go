// Command orchestrator is the LLM-agent orchestrator's single entry point
// (spec §6.1): interactive editor, one-shot query/print, named hook
// validator, and the audit/task/doc/sync executors all live behind one
// mutually-exclusive flag dispatch.
package main

func main() {
	Execute()
}
