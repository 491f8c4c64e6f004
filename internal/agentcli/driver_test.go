package agentcli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculateReadTimeoutFirstLines(t *testing.T) {
	// First 5 lines: min(10s, overall/2).
	assert.Equal(t, 10*time.Second, calculateReadTimeout(60*time.Second, 0))
	assert.Equal(t, 5*time.Second, calculateReadTimeout(10*time.Second, 4))
	assert.Equal(t, 10*time.Second, calculateReadTimeout(0, 2))
}

func TestCalculateReadTimeoutAfterFirstLines(t *testing.T) {
	// From the 6th line on: the full overall timeout.
	assert.Equal(t, 60*time.Second, calculateReadTimeout(60*time.Second, 5))
	assert.Equal(t, 30*time.Second, calculateReadTimeout(0, 10))
}

func TestValidateCommandRejectsUnsafePaths(t *testing.T) {
	assert.NoError(t, validateCommand([]string{"claude", "--print"}))
	assert.NoError(t, validateCommand([]string{"/usr/bin/claude"}))
	assert.Error(t, validateCommand([]string{"../escape"}))
	assert.Error(t, validateCommand([]string{"~/evil"}))
	assert.Error(t, validateCommand(nil))
}
