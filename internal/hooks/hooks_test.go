package hooks

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func TestReadEventParsesValidJSON(t *testing.T) {
	event, err := ReadEvent(strings.NewReader(`{"session_id":"s1","hook_event_name":"PreToolUse","tool_name":"Bash"}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", event.SessionID)
	assert.Equal(t, model.HookPreToolUse, event.HookEventName)
}

func TestReadEventRejectsOversize(t *testing.T) {
	big := strings.Repeat("a", MaxHookInputSize+10)
	_, err := ReadEvent(strings.NewReader(`{"session_id":"` + big + `"}`))
	assert.Error(t, err)
}

func TestWriteDecisionPreToolUseAllow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecision(&buf, model.HookPreToolUse, model.Allow()))
	assert.Contains(t, buf.String(), `"permissionDecision":"allow"`)
}

func TestWriteDecisionPreToolUseDeny(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecision(&buf, model.HookPreToolUse, model.Deny("nope")))
	assert.Contains(t, buf.String(), `"permissionDecision":"deny"`)
	assert.Contains(t, buf.String(), `"permissionDecisionReason":"nope"`)
}

func TestWriteDecisionStopBlockMapsToBlock(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecision(&buf, model.HookStop, model.Block("incomplete")))
	assert.Contains(t, buf.String(), `"decision":"block"`)
}

func TestWriteDecisionStopAllowMapsToApprove(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDecision(&buf, model.HookStop, model.Allow()))
	assert.Contains(t, buf.String(), `"decision":"approve"`)
}

func TestRegistryRunUnknownValidatorErrors(t *testing.T) {
	reg := Registry{}
	err := reg.Run("not-registered", strings.NewReader(`{}`), &bytes.Buffer{}, zap.NewNop())
	assert.Error(t, err)
}

func TestRegistryRunMalformedInputFailsClosed(t *testing.T) {
	reg := Registry{"x": func(ctx Context) model.HookResult { return model.Allow() }}
	var out bytes.Buffer
	err := reg.Run("x", strings.NewReader(`not json`), &out, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"permissionDecision":"deny"`)
}

func TestRegistryRunValidatorPanicFailsClosed(t *testing.T) {
	reg := Registry{"panics": func(ctx Context) model.HookResult { panic("boom") }}
	var out bytes.Buffer
	err := reg.Run("panics", strings.NewReader(`{"session_id":"s","hook_event_name":"Stop"}`), &out, zap.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"decision":"block"`)
}
