package retryloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func TestRunCompletesWithoutModerator(t *testing.T) {
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  time.Second,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			return "all done\nWORK DONE", nil, nil
		},
	})

	assert.Equal(t, model.StatusCompleted, res.Status)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, 1, res.Attempts[0].AttemptNumber)
}

func TestRunFeedbackHaltsImmediately(t *testing.T) {
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  time.Second,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			return "... FEEDBACK: Need clarification on X", nil, nil
		},
	})

	assert.Equal(t, model.StatusFeedback, res.Status)
	assert.Equal(t, "Need clarification on X", res.Feedback)
	require.Len(t, res.Attempts, 1)
}

func TestRunNoneRetriesWithExtraContext(t *testing.T) {
	var seenExtras []string
	calls := 0
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  time.Second,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			seenExtras = append(seenExtras, extra)
			calls++
			if calls < 2 {
				return "still working", nil, nil
			}
			return "WORK DONE", nil, nil
		},
	})

	assert.Equal(t, model.StatusCompleted, res.Status)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, "", seenExtras[0])
	assert.Equal(t, noneExtra, seenExtras[1])
}

func TestRunModeratorPassCompletes(t *testing.T) {
	res := Run(context.Background(), Options{
		ItemPath:         "m.py",
		Timeout:          time.Second,
		ModeratorEnabled: true,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			return "WORK DONE", nil, nil
		},
		ValidateWithModerator: func(ctx context.Context, name, out string, n int) (model.ModeratorResult, string, *model.AgentMetadata, error) {
			return model.ModeratorResult{Status: model.ModeratorPass}, "PASS", nil, nil
		},
	})

	assert.Equal(t, model.StatusCompleted, res.Status)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, "PASS", res.Attempts[0].ModeratorOutput)
}

func TestRunModeratorFailRetriesWithReason(t *testing.T) {
	attempts := 0
	res := Run(context.Background(), Options{
		ItemPath:         "m.py",
		Timeout:          time.Second,
		ModeratorEnabled: true,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			attempts++
			return "WORK DONE", nil, nil
		},
		ValidateWithModerator: func(ctx context.Context, name, out string, n int) (model.ModeratorResult, string, *model.AgentMetadata, error) {
			if n == 1 {
				return model.ModeratorResult{Status: model.ModeratorFail, Reason: "Use of eval"}, "FAIL: Use of eval", nil, nil
			}
			return model.ModeratorResult{Status: model.ModeratorPass}, "PASS", nil, nil
		},
	})

	assert.Equal(t, model.StatusCompleted, res.Status)
	assert.Equal(t, 2, attempts)
	require.Len(t, res.Attempts, 2)
}

func TestRunExecuteErrorFails(t *testing.T) {
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  time.Second,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			return "", nil, errors.New("boom")
		},
	})

	assert.Equal(t, model.StatusFailed, res.Status)
	assert.Equal(t, "boom", res.Error)
}

func TestRunDeadlineExceededReturnsTimeout(t *testing.T) {
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  10 * time.Millisecond,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			time.Sleep(15 * time.Millisecond)
			return "still working", nil, nil
		},
	})

	assert.Equal(t, model.StatusTimeout, res.Status)
	assert.GreaterOrEqual(t, res.TotalDuration, 10*time.Millisecond)
}

func TestRunAttemptNumbersMatchPositionPlusOne(t *testing.T) {
	calls := 0
	res := Run(context.Background(), Options{
		ItemPath: "m.py",
		Timeout:  time.Second,
		Execute: func(ctx context.Context, n int, extra string) (string, *model.AgentMetadata, error) {
			calls++
			if calls < 3 {
				return "nothing yet", nil, nil
			}
			return "WORK DONE", nil, nil
		},
	})

	for i, a := range res.Attempts {
		assert.Equal(t, i+1, a.AttemptNumber)
	}
}
