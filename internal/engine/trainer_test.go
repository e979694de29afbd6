package engine

import (
	"bytes"
	"context"
	"errors"
	"math"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackjack-mdp/internal/agent"
	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/mdp"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func drain(t *testing.T, ch <-chan Snapshot) []Snapshot {
	t.Helper()
	var snaps []Snapshot
	for snap := range ch {
		snaps = append(snaps, snap)
	}
	return snaps
}

func TestTrainerSmoke(t *testing.T) {
	cfg := Config{
		Episodes:     500,
		Seed:         7,
		Alpha:        0.2,
		Epsilon:      0.5,
		EpsilonMin:   0.05,
		EpsilonDecay: 0.001,
		Decks:        2,
		ReportEvery:  100,
		Logger:       quietLogger(),
	}
	trainer := NewTrainer(cfg)
	snaps := drain(t, trainer.Run(context.Background()))

	require.Len(t, snaps, 5)
	for i, snap := range snaps[:4] {
		assert.Equal(t, StatusRunning, snap.Status)
		assert.Equal(t, (i+1)*100, snap.Episode)
	}
	final := snaps[4]
	assert.Equal(t, StatusDone, final.Status)
	assert.Equal(t, cfg.Episodes, final.Episode)
	assert.Equal(t, cfg.Episodes, final.Wins+final.Losses+final.Pushes)
	assert.GreaterOrEqual(t, final.TotalSteps, cfg.Episodes)
	assert.Greater(t, final.StatesSeen, 0)
	assert.Equal(t, trainer.RunID().String(), final.RunID)
	assert.InDelta(t, 0.05, final.Epsilon, 1e-9)
	// alpha was given no decay rate
	assert.Equal(t, 0.2, final.Alpha)
}

func TestTrainerVisitsMatchSteps(t *testing.T) {
	trainer := NewTrainer(Config{Episodes: 200, Seed: 3, Logger: quietLogger()})
	snaps := drain(t, trainer.Run(context.Background()))
	final := snaps[len(snaps)-1]

	total := 0
	for _, n := range trainer.Visits() {
		total += n
	}
	assert.Equal(t, final.TotalSteps, total)
}

func TestTrainerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	trainer := NewTrainer(Config{Episodes: 1_000_000, ReportEvery: 10, Logger: quietLogger()})
	ch := trainer.Run(ctx)

	first := <-ch
	require.Equal(t, StatusRunning, first.Status)
	cancel()

	var last Snapshot
	for snap := range ch {
		last = snap
	}
	assert.Equal(t, StatusCancelled, last.Status)
	assert.Less(t, last.Episode, 1_000_000)
}

func TestTrainerCancelWithoutReading(t *testing.T) {
	before := runtime.NumGoroutine()
	ctx, cancel := context.WithCancel(context.Background())
	ch := NewTrainer(Config{Episodes: 1_000_000, ReportEvery: 1, Logger: quietLogger()}).Run(ctx)

	// let progress snapshots back up behind a reader that has walked away
	<-ch
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "training goroutine still running")

	var last Snapshot
	for snap := range ch {
		last = snap
	}
	assert.Equal(t, StatusCancelled, last.Status)
}

func TestTrainerDeterministic(t *testing.T) {
	run := func() Snapshot {
		snaps := drain(t, NewTrainer(Config{Episodes: 300, Seed: 11, Decks: 1, Logger: quietLogger()}).Run(context.Background()))
		return snaps[len(snaps)-1]
	}
	a, b := run(), run()
	assert.Equal(t, a.TotalReward, b.TotalReward)
	assert.Equal(t, a.TotalSteps, b.TotalSteps)
	assert.Equal(t, a.StatesSeen, b.StatesSeen)
}

func TestNewTrainerSanitizes(t *testing.T) {
	trainer := NewTrainer(Config{
		Episodes:         -4,
		Gamma:            2,
		Alpha:            -1,
		AlphaMin:         5,
		Epsilon:          3,
		EpsilonMin:       -1,
		EpsilonDecay:     -2,
		EpsilonDecayKind: agent.Exponential,
		Decks:            -1,
	})
	cfg := trainer.Config()
	assert.Equal(t, 0, cfg.Episodes)
	assert.Equal(t, 1.0, cfg.Gamma)
	assert.Equal(t, 0.1, cfg.Alpha)
	assert.Equal(t, 0.0, cfg.AlphaMin)
	assert.Equal(t, agent.Linear, cfg.AlphaDecayKind)
	assert.Equal(t, 1.0, cfg.Epsilon)
	assert.Equal(t, 0.0, cfg.EpsilonMin)
	assert.Equal(t, 1.0, cfg.EpsilonDecay)
	assert.Equal(t, 0, cfg.Decks)
	assert.Equal(t, int64(1), cfg.Seed)
	assert.Equal(t, defaultReportEvery, cfg.ReportEvery)
	assert.Equal(t, defaultAverageWindow, cfg.AverageWindow)
	assert.NotNil(t, cfg.Logger)

	snaps := drain(t, trainer.Run(context.Background()))
	require.Len(t, snaps, 1)
	assert.Equal(t, StatusDone, snaps[0].Status)
	assert.Equal(t, 0, snaps[0].Episode)

	grow := NewTrainer(Config{Alpha: 0.1, AlphaDecay: 1.5, AlphaDecayKind: agent.Exponential, Logger: quietLogger()}).Config()
	assert.Equal(t, 1.0, grow.AlphaDecay)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Episodes: 10, Alpha: 0.1, Epsilon: 1, Gamma: 1}.Validate())
	assert.NoError(t, Config{Episodes: 10, AlphaDecay: 0.999, AlphaDecayKind: agent.Exponential, EpsilonDecay: 1, EpsilonDecayKind: agent.Exponential}.Validate())

	bad := []Config{
		{Episodes: 0},
		{Episodes: 1, Alpha: 1.5},
		{Episodes: 1, Epsilon: -0.1},
		{Episodes: 1, Gamma: 1.1},
		{Episodes: 1, Decks: -2},
		{Episodes: 1, AlphaDecay: 1.5, AlphaDecayKind: agent.Exponential},
		{Episodes: 1, AlphaDecay: 0, AlphaDecayKind: agent.Exponential},
		{Episodes: 1, EpsilonDecay: 1.01, EpsilonDecayKind: agent.Exponential},
		{Episodes: 1, EpsilonDecay: -0.1},
		{Episodes: 1, AlphaDecay: -1, AlphaDecayKind: agent.Linear},
	}
	for _, cfg := range bad {
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig), err.Error())
	}
}

func TestMovingAverageWindow(t *testing.T) {
	trainer := NewTrainer(Config{Episodes: 1, AverageWindow: 3, Logger: quietLogger()})
	for _, r := range []float64{1, -1, 1, 1, 1} {
		trainer.record(r)
	}
	snap := trainer.snapshot(StatusDone, 0)
	assert.InDelta(t, 1.0, snap.AverageReward, 1e-12)
	assert.Equal(t, 4, snap.Wins)
	assert.Equal(t, 1, snap.Losses)
	assert.Equal(t, 3.0, snap.TotalReward)

	trainer.record(0)
	snap = trainer.snapshot(StatusDone, 0)
	assert.InDelta(t, 2.0/3, snap.AverageReward, 1e-12)
	assert.Equal(t, 1, snap.Pushes)
}

func TestEvaluateDoesNotLearn(t *testing.T) {
	trainer := NewTrainer(Config{Episodes: 100, Seed: 5, Logger: quietLogger()})
	drain(t, trainer.Run(context.Background()))
	before := trainer.Agent().QValues()

	mean := trainer.Evaluate(200)
	assert.GreaterOrEqual(t, mean, -1.0)
	assert.LessOrEqual(t, mean, 1.0)
	after := trainer.Agent().QValues()
	for s, row := range before {
		assert.Equal(t, row, after[s], s.String())
	}
	assert.Equal(t, 0.0, trainer.Evaluate(0))
}

func solved(t *testing.T) *mdp.Result {
	t.Helper()
	res, err := mdp.ValueIteration(mdp.Options{Theta: 1e-8, Logger: quietLogger()})
	require.NoError(t, err)
	return res
}

func TestAgreementFilters(t *testing.T) {
	res := solved(t)
	hard16 := blackjack.Observation{Player: 16, Dealer: 10}
	hard20 := blackjack.Observation{Player: 20, Dealer: 10}
	hard12 := blackjack.Observation{Player: 12, Dealer: 4}
	low := blackjack.Observation{Player: 8, Dealer: 5}

	learned := map[blackjack.Observation]blackjack.Action{
		hard16: blackjack.Stand,
		hard20: blackjack.Stand,
		hard12: blackjack.Hit,
		low:    blackjack.Stand,
	}
	visits := map[blackjack.Observation]int{hard16: 50, hard20: 50, hard12: 50, low: 50}

	report := Agreement(learned, visits, res, AgreementOptions{})
	assert.Equal(t, 3, report.Compared, "totals below twelve are outside the solved states")
	assert.Equal(t, 2, report.Disagreements)
	assert.Equal(t, []blackjack.Observation{hard12, hard16}, report.Mismatches)
	assert.InDelta(t, 2.0/3, report.Rate, 1e-12)

	// hard 16 and hard 12 are close calls for the exact solver
	report = Agreement(learned, visits, res, AgreementOptions{MinGap: 0.1})
	assert.Equal(t, 1, report.Compared)
	assert.Zero(t, report.Disagreements)

	report = Agreement(learned, visits, res, AgreementOptions{MinVisits: 51})
	assert.Zero(t, report.Compared)
	assert.Zero(t, report.Rate)
}

func TestQLearningMatchesExactPolicy(t *testing.T) {
	if testing.Short() {
		t.Skip("long training run")
	}
	const episodes = 300_000
	trainer := NewTrainer(Config{
		Episodes:         episodes,
		Seed:             2024,
		Gamma:            1,
		Alpha:            0.1,
		AlphaMin:         0.005,
		AlphaDecay:       math.Exp(math.Log(0.05) / (0.6 * episodes)),
		AlphaDecayKind:   agent.Exponential,
		Epsilon:          1,
		EpsilonMin:       0.05,
		EpsilonDecay:     0.95 / (0.5 * episodes),
		EpsilonDecayKind: agent.Linear,
		ReportEvery:      episodes,
		Logger:           quietLogger(),
	})
	snaps := drain(t, trainer.Run(context.Background()))
	require.Equal(t, StatusDone, snaps[len(snaps)-1].Status)

	report := Agreement(trainer.Agent().Policy(), trainer.Visits(), solved(t), AgreementOptions{
		MinVisits: 1000,
		MinGap:    0.1,
	})
	t.Logf("compared %d states, %d disagreements: %v", report.Compared, report.Disagreements, report.Mismatches)
	assert.GreaterOrEqual(t, report.Compared, 40)
	assert.Less(t, report.Rate, 0.05)
}

func TestProjectPolicy(t *testing.T) {
	learned := map[blackjack.Observation]blackjack.Action{
		{Player: 16, Dealer: 10}:                        blackjack.Hit,
		{Player: 16, Dealer: 10, Count: blackjack.High}: blackjack.Stand,
		{Player: 18, Dealer: 9, UsableAce: true}:        blackjack.Hit,
		{Player: 9, Dealer: 9}:                          blackjack.Hit,
	}
	neutral := ProjectPolicy(learned, blackjack.Neutral)
	assert.Equal(t, map[mdp.State]blackjack.Action{
		{Player: 16, Dealer: 10}:                 blackjack.Hit,
		{Player: 18, Dealer: 9, UsableAce: true}: blackjack.Hit,
	}, neutral)

	high := ProjectPolicy(learned, blackjack.High)
	assert.Equal(t, map[mdp.State]blackjack.Action{{Player: 16, Dealer: 10}: blackjack.Stand}, high)
}
