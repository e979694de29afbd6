package report

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/engine"
	"blackjack-mdp/internal/mdp"
)

func solve(t *testing.T) *mdp.Result {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	res, err := mdp.ValueIteration(mdp.Options{Theta: 1e-8, Logger: logger})
	require.NoError(t, err)
	return res
}

func TestStrategyGridHard(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StrategyGrid(&buf, solve(t).Policy, false, false))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "hard totals", lines[0])
	assert.Equal(t, "     A  2  3  4  5  6  7  8  9 10 ", lines[1])
	assert.Equal(t, " 17  S  S  S  S  S  S  S  S  S  S ", lines[6])
	assert.Equal(t, " 16  H  S  S  S  S  S  H  H  H  H ", lines[7])
	assert.Equal(t, " 12  H  H  H  S  S  S  H  H  H  H ", lines[11])
}

func TestStrategyGridSoft(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StrategyGrid(&buf, solve(t).Policy, true, false))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "soft totals\n"))
	assert.Contains(t, out, " 18  H  S  S  S  S  S  S  S  H  H \n")
	assert.Contains(t, out, " 17  H  H  H  H  H  H  H  H  H  H \n")
}

func TestStrategyGridMissingStates(t *testing.T) {
	policy := map[mdp.State]blackjack.Action{{Player: 21, Dealer: 1}: blackjack.Stand}
	var buf bytes.Buffer
	require.NoError(t, StrategyGrid(&buf, policy, false, false))
	assert.Contains(t, buf.String(), " 21  S  .  .  .  .  .  .  .  .  . \n")
}

func TestStrategyGridColor(t *testing.T) {
	policy := map[mdp.State]blackjack.Action{{Player: 16, Dealer: 10}: blackjack.Hit}
	var plain, colored bytes.Buffer
	require.NoError(t, StrategyGrid(&plain, policy, false, false))
	require.NoError(t, StrategyGrid(&colored, policy, false, true))
	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
}

func TestConvergenceChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ConvergenceChart(&buf, solve(t).Stats))
	out := buf.String()
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "value iteration")
	assert.Contains(t, out, "mean state value")

	assert.ErrorIs(t, ConvergenceChart(&buf, mdp.Stats{}), ErrNoData)
}

func TestTrainingChart(t *testing.T) {
	snaps := []engine.Snapshot{
		{RunID: "run-1", Episode: 100, AverageReward: -0.3, Epsilon: 0.9, Alpha: 0.1},
		{RunID: "run-1", Episode: 200, AverageReward: -0.1, Epsilon: 0.8, Alpha: 0.1},
	}
	var buf bytes.Buffer
	require.NoError(t, TrainingChart(&buf, snaps))
	out := buf.String()
	assert.Contains(t, out, "average reward")
	assert.Contains(t, out, "epsilon")

	assert.ErrorIs(t, TrainingChart(&buf, nil), ErrNoData)
}
