// Package markers implements the small enumerated completion-marker grammar
// shared by the retry loop, the moderator-retry controller, and the
// completion moderator (spec §4.4, §4.5, §4.10, §9 "Completion markers and
// parsing").
package markers

import (
	"regexp"
	"strings"

	"github.com/agentops-sh/orchestrator/internal/model"
)

var (
	feedbackRe = regexp.MustCompile(`(?s)FEEDBACK:\s*(.+)`)
	failRe     = regexp.MustCompile(`(?s)FAIL:\s*(.+)`)
	allowRe    = regexp.MustCompile(`(?is)ALLOW:\s*(.+)`)
	bareAllowRe = regexp.MustCompile(`(?m)^\s*ALLOW\s*$|^\s*ALLOW\s+(?:[^:]|$)`)
	blockRe    = regexp.MustCompile(`(?is)BLOCK:\s*(.*)`)
	decisionRe = regexp.MustCompile(`(?i)\b(ALLOW|BLOCK)\b`)
	codeFenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\n(.*)\\n```\\s*$")
)

// ParseCompletionMarker scans worker output for the two-symbol grammar.
//
// Spec §4.4 states explicitly that "FEEDBACK: wins over WORK DONE when both
// appear — feedback is a user-visible halt." This is a deliberate departure
// from the literal check-order of the original Python implementation (which
// checked WORK DONE first); see SPEC_FULL.md / DESIGN.md for the recorded
// decision.
func ParseCompletionMarker(output string) model.CompletionMarker {
	if m := feedbackRe.FindStringSubmatch(output); m != nil {
		content := strings.TrimSpace(m[1])
		if content != "" {
			return model.CompletionMarker{Type: model.MarkerFeedback, Content: content}
		}
	}
	if strings.Contains(output, "WORK DONE") {
		return model.CompletionMarker{Type: model.MarkerWorkDone}
	}
	return model.CompletionMarker{Type: model.MarkerNone}
}

// ParseModeratorResult scans moderator output for PASS / FAIL: (spec §4.4).
func ParseModeratorResult(output string) model.ModeratorResult {
	if strings.Contains(output, "PASS") {
		return model.ModeratorResult{Status: model.ModeratorPass}
	}
	if m := failRe.FindStringSubmatch(output); m != nil {
		reason := strings.TrimSpace(m[1])
		if reason == "" {
			reason = "Moderator validation unclear - no explicit PASS or FAIL in output"
		}
		return model.ModeratorResult{Status: model.ModeratorFail, Reason: reason}
	}
	return model.ModeratorResult{Status: model.ModeratorFail, Reason: "Moderator validation unclear - no explicit PASS or FAIL in output"}
}

// StripOuterCodeFence removes at most one outer ```...``` fence (with an
// optional language tag on the opening line), per the "strip one layer of
// code fences" rule shared by §4.5 and §4.10 (SUPPLEMENTED FEATURES #3).
func StripOuterCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// HasDecisionToken reports whether cleaned output contains an ALLOW or
// BLOCK decision token — the same check the moderator-retry controller's
// analysis-hang detection applies with its own copy of the regex
// (spec §4.5).
func HasDecisionToken(output string) bool {
	if output == "" {
		return false
	}
	return decisionRe.MatchString(StripOuterCodeFence(output))
}

// ValidatorDecision is the result of the §4.8.1 LLM diff-audit grammar:
// ALLOW or BLOCK: <reason>, earliest match wins.
type ValidatorDecision struct {
	Allowed bool
	Reason  string
}

// ParseValidatorDecision implements §4.8.1: strip one outer code fence, then
// find the first of ALLOW or BLOCK: (earliest match in the string wins).
func ParseValidatorDecision(output string) ValidatorDecision {
	cleaned := StripOuterCodeFence(output)

	allowIdx := strings.Index(cleaned, "ALLOW")
	blockIdx := strings.Index(cleaned, "BLOCK:")

	switch {
	case allowIdx == -1 && blockIdx == -1:
		return ValidatorDecision{Allowed: false, Reason: "no explicit ALLOW or BLOCK in validator output"}
	case blockIdx == -1 || (allowIdx != -1 && allowIdx < blockIdx):
		return ValidatorDecision{Allowed: true}
	default:
		reason := strings.TrimSpace(cleaned[blockIdx+len("BLOCK:"):])
		return ValidatorDecision{Allowed: false, Reason: reason}
	}
}

// CompletionDecision is the result of the §4.10 completion-moderator
// decision grammar.
type CompletionDecision struct {
	Allowed bool
	Reason  string // set when Allowed; the ALLOW explanation, or when !Allowed, the block reason
}

// conversationalPhraseRegexes are the eight "prompt-following failure"
// phrases reproduced verbatim from the original implementation
// (SPEC_FULL.md SUPPLEMENTED FEATURES #6).
var conversationalPhraseRegexes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)I see\s+(?:the|that)`),
	regexp.MustCompile(`(?i)Let me\s+(?:check|now|run|see|verify)`),
	regexp.MustCompile(`(?i)I need to\s+`),
	regexp.MustCompile(`(?i)I was\s+`),
	regexp.MustCompile(`(?i)I'm\s+(?:confused|going)`),
	regexp.MustCompile(`(?i)I've\s+(?:successfully|completed)`),
	regexp.MustCompile(`(?i)Could you\s+`),
	regexp.MustCompile(`(?i)Should I\s+`),
}

// ParseCompletionDecision implements §4.10's five-branch decision parser,
// applied after stripping one layer of code fences.
func ParseCompletionDecision(output string) CompletionDecision {
	cleaned := StripOuterCodeFence(output)

	for _, re := range conversationalPhraseRegexes {
		if re.MatchString(cleaned) {
			return CompletionDecision{Allowed: false, Reason: "conversational — prompt-following failure"}
		}
	}

	if m := allowRe.FindStringSubmatch(cleaned); m != nil {
		explanation := m[1]
		if idx := strings.Index(explanation, "BLOCK"); idx != -1 {
			explanation = explanation[:idx]
		}
		explanation = strings.TrimSpace(explanation)
		return CompletionDecision{Allowed: true, Reason: explanation}
	}

	if bareAllowRe.MatchString(cleaned) {
		return CompletionDecision{
			Allowed: false,
			Reason:  "BLOCKED: ALLOW without explanation — required format is 'ALLOW: <explanation>'",
		}
	}

	if m := blockRe.FindStringSubmatch(cleaned); m != nil {
		reason := strings.TrimSpace(m[1])
		if reason == "" {
			reason = "Work incomplete or validation failed"
		}
		return CompletionDecision{Allowed: false, Reason: reason}
	}

	preview := cleaned
	if len(preview) > 500 {
		preview = preview[:500]
	}
	return CompletionDecision{Allowed: false, Reason: "UNCLEAR: " + preview}
}
