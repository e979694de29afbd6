package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsUnknownSubcommand(t *testing.T) {
	assert.Error(t, run(nil))
	assert.ErrorContains(t, run([]string{"play"}), `unknown subcommand "play"`)
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("BJ_TEST_INT", "42")
	t.Setenv("BJ_TEST_FLOAT", "0.25")
	t.Setenv("BJ_TEST_BOOL", "true")
	t.Setenv("BJ_TEST_BAD", "nope")

	assert.Equal(t, 42, envInt("BJ_TEST_INT", 1))
	assert.Equal(t, int64(42), envInt64("BJ_TEST_INT", 1))
	assert.Equal(t, 0.25, envFloat("BJ_TEST_FLOAT", 1))
	assert.True(t, envBool("BJ_TEST_BOOL", false))

	assert.Equal(t, 7, envInt("BJ_TEST_BAD", 7))
	assert.Equal(t, 0.5, envFloat("BJ_TEST_UNSET", 0.5))
	assert.Equal(t, "fallback", getenv("BJ_TEST_UNSET", "fallback"))
}

func TestSolveWritesChart(t *testing.T) {
	chart := filepath.Join(t.TempDir(), "vi.html")
	require.NoError(t, run([]string{"solve", "-color=false", "-log-level", "error", "-chart", chart}))

	info, err := os.Stat(chart)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestSolveFlagErrors(t *testing.T) {
	assert.ErrorContains(t, run([]string{"solve", "-method", "mc", "-log-level", "error"}), "unknown method")
	assert.Error(t, run([]string{"solve", "-log-level", "loud"}))
	assert.Error(t, run([]string{"solve", "-gamma", "1.5", "-log-level", "error"}))
}

func TestTrainValidates(t *testing.T) {
	assert.Error(t, run([]string{"train", "-episodes", "0", "-log-level", "error"}))
	assert.Error(t, run([]string{"train", "-alpha-decay-kind", "cubic", "-log-level", "error"}))
	assert.ErrorContains(t, run([]string{
		"train", "-alpha-decay", "1.5", "-alpha-decay-kind", "exponential", "-log-level", "error",
	}), "exponential alpha decay")
}

func TestTrainSmallRun(t *testing.T) {
	require.NoError(t, run([]string{
		"train", "-episodes", "2000", "-decks", "1", "-eval", "100",
		"-compare", "-min-visits", "50", "-color=false", "-log-level", "error",
	}))
}
