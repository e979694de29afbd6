package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/agent"
	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/env"
)

const (
	StatusRunning   = "running"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

const (
	defaultAverageWindow = 1000
	defaultReportEvery   = 10000
)

// ErrInvalidConfig reports a trainer configuration that cannot be sanitized.
var ErrInvalidConfig = errors.New("engine: invalid config")

// Config drives one training run. Rates use the agent's schedule semantics:
// linear decays subtract the rate once per episode, exponential ones
// multiply by it.
type Config struct {
	Episodes         int             `json:"episodes"`
	Seed             int64           `json:"seed"`
	Gamma            float64         `json:"gamma"`
	Alpha            float64         `json:"alpha"`
	AlphaMin         float64         `json:"alpha_min"`
	AlphaDecay       float64         `json:"alpha_decay"`
	AlphaDecayKind   agent.DecayKind `json:"alpha_decay_kind"`
	Epsilon          float64         `json:"epsilon"`
	EpsilonMin       float64         `json:"epsilon_min"`
	EpsilonDecay     float64         `json:"epsilon_decay"`
	EpsilonDecayKind agent.DecayKind `json:"epsilon_decay_kind"`
	Decks            int             `json:"decks"`
	ReshuffleAt      int             `json:"reshuffle_at"`
	NaturalBonus     bool            `json:"natural_bonus"`
	LowCount         int             `json:"low_count"`
	HighCount        int             `json:"high_count"`
	ReportEvery      int             `json:"report_every"`
	AverageWindow    int             `json:"average_window"`

	Logger logrus.FieldLogger `json:"-"`
}

// Validate rejects settings that sanitizing would silently rewrite into
// something the caller did not ask for.
func (c Config) Validate() error {
	if c.Episodes <= 0 {
		return fmt.Errorf("%w: episodes must be positive (got %d)", ErrInvalidConfig, c.Episodes)
	}
	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: alpha must be between 0 and 1 (got %.3f)", ErrInvalidConfig, c.Alpha)
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		return fmt.Errorf("%w: epsilon must be between 0 and 1 (got %.3f)", ErrInvalidConfig, c.Epsilon)
	}
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("%w: gamma must be between 0 and 1 (got %.3f)", ErrInvalidConfig, c.Gamma)
	}
	if err := validateDecay("alpha", c.AlphaDecay, c.AlphaDecayKind); err != nil {
		return err
	}
	if err := validateDecay("epsilon", c.EpsilonDecay, c.EpsilonDecayKind); err != nil {
		return err
	}
	if c.Decks < 0 {
		return fmt.Errorf("%w: decks must not be negative (got %d)", ErrInvalidConfig, c.Decks)
	}
	return nil
}

// validateDecay requires a rate that moves the parameter toward its floor.
func validateDecay(name string, rate float64, kind agent.DecayKind) error {
	if kind == agent.Exponential {
		if rate <= 0 || rate > 1 {
			return fmt.Errorf("%w: exponential %s decay must be in (0, 1] (got %g)", ErrInvalidConfig, name, rate)
		}
		return nil
	}
	if rate < 0 {
		return fmt.Errorf("%w: %s decay must not be negative (got %g)", ErrInvalidConfig, name, rate)
	}
	return nil
}

// Snapshot reports training progress.
type Snapshot struct {
	RunID         string  `json:"run_id"`
	Status        string  `json:"status"`
	Episode       int     `json:"episode"`
	EpisodeReward float64 `json:"episode_reward"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Pushes        int     `json:"pushes"`
	TotalReward   float64 `json:"total_reward"`
	TotalSteps    int     `json:"total_steps"`
	// AverageReward is the mean reward over the last AverageWindow episodes.
	AverageReward float64 `json:"average_reward"`
	Epsilon       float64 `json:"epsilon"`
	Alpha         float64 `json:"alpha"`
	StatesSeen    int     `json:"states_seen"`
	Config        Config  `json:"config"`
}

// Trainer runs Q-learning episodes against the shoe environment.
type Trainer struct {
	cfg    Config
	runID  uuid.UUID
	log    *logrus.Entry
	env    *env.Env
	agent  *agent.QLearner
	visits map[blackjack.Observation]int

	episodesCompleted int
	wins              int
	losses            int
	pushes            int
	totalReward       float64
	totalSteps        int
	window            []float64
	windowSum         float64
	windowNext        int
}

func NewTrainer(cfg Config) *Trainer {
	if cfg.Episodes < 0 {
		cfg.Episodes = 0
	}
	if cfg.Gamma <= 0 || cfg.Gamma > 1 {
		cfg.Gamma = 1
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.1
	}
	if cfg.AlphaMin < 0 || cfg.AlphaMin > cfg.Alpha {
		cfg.AlphaMin = 0
	}
	if cfg.AlphaDecay < 0 {
		cfg.AlphaDecay = 0
	}
	if cfg.Epsilon <= 0 || cfg.Epsilon > 1 {
		cfg.Epsilon = 1
	}
	if cfg.EpsilonMin < 0 || cfg.EpsilonMin > cfg.Epsilon {
		cfg.EpsilonMin = 0
	}
	if cfg.EpsilonDecay < 0 {
		cfg.EpsilonDecay = 0
	}
	if cfg.AlphaDecayKind == "" {
		cfg.AlphaDecayKind = agent.Linear
	}
	if cfg.EpsilonDecayKind == "" {
		cfg.EpsilonDecayKind = agent.Linear
	}
	// exponential factors outside (0, 1] would jump to the floor or grow
	if cfg.AlphaDecayKind == agent.Exponential && (cfg.AlphaDecay == 0 || cfg.AlphaDecay > 1) {
		cfg.AlphaDecay = 1
	}
	if cfg.EpsilonDecayKind == agent.Exponential && (cfg.EpsilonDecay == 0 || cfg.EpsilonDecay > 1) {
		cfg.EpsilonDecay = 1
	}
	if cfg.Decks < 0 {
		cfg.Decks = 0
	}
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = defaultReportEvery
	}
	if cfg.AverageWindow <= 0 {
		cfg.AverageWindow = defaultAverageWindow
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	cfg.Seed = seed

	learner := agent.New(agent.Config{
		Actions: blackjack.NumActions,
		Gamma:   cfg.Gamma,
		Alpha: agent.Schedule{
			Initial: cfg.Alpha, Final: cfg.AlphaMin, Rate: cfg.AlphaDecay, Kind: cfg.AlphaDecayKind,
		},
		Epsilon: agent.Schedule{
			Initial: cfg.Epsilon, Final: cfg.EpsilonMin, Rate: cfg.EpsilonDecay, Kind: cfg.EpsilonDecayKind,
		},
		Seed: seed,
	})
	shoe := env.New(env.Config{
		Decks:        cfg.Decks,
		ReshuffleAt:  cfg.ReshuffleAt,
		NaturalBonus: cfg.NaturalBonus,
		LowCount:     cfg.LowCount,
		HighCount:    cfg.HighCount,
		Seed:         seed + 1,
	})
	runID := uuid.New()
	return &Trainer{
		cfg:    cfg,
		runID:  runID,
		log:    cfg.Logger.WithField("run_id", runID.String()),
		env:    shoe,
		agent:  learner,
		visits: make(map[blackjack.Observation]int),
		window: make([]float64, 0, cfg.AverageWindow),
	}
}

func (t *Trainer) Config() Config { return t.cfg }

func (t *Trainer) RunID() uuid.UUID { return t.runID }

func (t *Trainer) Agent() *agent.QLearner { return t.agent }

// Visits returns how often each observation was acted on.
func (t *Trainer) Visits() map[blackjack.Observation]int {
	out := make(map[blackjack.Observation]int, len(t.visits))
	for s, n := range t.visits {
		out[s] = n
	}
	return out
}

// Run trains for cfg.Episodes episodes on its own goroutine. It emits a
// StatusRunning snapshot every ReportEvery episodes, then one StatusDone or
// StatusCancelled snapshot, and closes the channel. A consumer that stops
// reading must cancel ctx; the goroutine then exits without blocking.
func (t *Trainer) Run(ctx context.Context) <-chan Snapshot {
	// one slot so the final snapshot can always be left for the consumer
	out := make(chan Snapshot, 1)
	go func() {
		defer close(out)
		t.log.WithFields(logrus.Fields{
			"episodes": t.cfg.Episodes,
			"decks":    t.cfg.Decks,
			"alpha":    t.cfg.Alpha,
			"epsilon":  t.cfg.Epsilon,
			"gamma":    t.cfg.Gamma,
		}).Info("training started")
		for episode := 1; episode <= t.cfg.Episodes; episode++ {
			if ctx.Err() != nil {
				t.cancelled(out, episode)
				return
			}
			reward := t.runEpisode()
			t.agent.DecayEpsilon()
			t.agent.DecayAlpha()
			if episode%t.cfg.ReportEvery == 0 && episode < t.cfg.Episodes {
				snap := t.snapshot(StatusRunning, reward)
				t.log.WithFields(logrus.Fields{
					"episode":        episode,
					"average_reward": snap.AverageReward,
					"epsilon":        snap.Epsilon,
					"states":         snap.StatesSeen,
				}).Debug("training progress")
				select {
				case out <- snap:
				case <-ctx.Done():
					t.cancelled(out, episode+1)
					return
				}
			}
		}
		final := t.snapshot(StatusDone, 0)
		t.log.WithFields(logrus.Fields{
			"episodes":       t.episodesCompleted,
			"wins":           t.wins,
			"losses":         t.losses,
			"pushes":         t.pushes,
			"average_reward": final.AverageReward,
		}).Info("training finished")
		select {
		case out <- final:
		case <-ctx.Done():
			leave(out, final)
		}
	}()
	return out
}

func (t *Trainer) cancelled(out chan Snapshot, episode int) {
	t.log.WithField("episode", episode).Warn("training cancelled")
	leave(out, t.snapshot(StatusCancelled, 0))
}

// leave puts snap in out's buffer without blocking, replacing an unread
// progress snapshot. The caller must be the only sender.
func leave(out chan Snapshot, snap Snapshot) {
	select {
	case out <- snap:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	out <- snap
}

// runEpisode plays one hand, learning from every decision, and returns the
// hand's total reward. Steps that only settle a natural carry no decision
// and are not learned from.
func (t *Trainer) runEpisode() float64 {
	obs := t.env.Reset()
	episodeReward := 0.0
	for {
		action := t.agent.SelectAction(obs, false)
		t.visits[obs]++
		next, reward, done, info := t.env.Step(action)
		if !info.Natural {
			t.agent.Update(obs, action, reward, next, done)
		}
		episodeReward += reward
		t.totalSteps++
		if done {
			break
		}
		obs = next
	}
	t.record(episodeReward)
	return episodeReward
}

func (t *Trainer) record(reward float64) {
	t.episodesCompleted++
	t.totalReward += reward
	switch {
	case reward > 0:
		t.wins++
	case reward < 0:
		t.losses++
	default:
		t.pushes++
	}
	if len(t.window) < t.cfg.AverageWindow {
		t.window = append(t.window, reward)
	} else {
		t.windowSum -= t.window[t.windowNext]
		t.window[t.windowNext] = reward
		t.windowNext = (t.windowNext + 1) % t.cfg.AverageWindow
	}
	t.windowSum += reward
}

// Evaluate plays episodes greedily on a separate shoe without learning and
// returns the mean reward per hand.
func (t *Trainer) Evaluate(episodes int) float64 {
	if episodes <= 0 {
		return 0
	}
	cfg := t.env.Config()
	cfg.Seed = t.cfg.Seed + 2
	shoe := env.New(cfg)
	total := 0.0
	for i := 0; i < episodes; i++ {
		obs := shoe.Reset()
		for {
			next, reward, done, _ := shoe.Step(t.agent.SelectAction(obs, true))
			total += reward
			if done {
				break
			}
			obs = next
		}
	}
	return total / float64(episodes)
}

func (t *Trainer) snapshot(status string, episodeReward float64) Snapshot {
	avg := 0.0
	if len(t.window) > 0 {
		avg = t.windowSum / float64(len(t.window))
	}
	return Snapshot{
		RunID:         t.runID.String(),
		Status:        status,
		Episode:       t.episodesCompleted,
		EpisodeReward: episodeReward,
		Wins:          t.wins,
		Losses:        t.losses,
		Pushes:        t.pushes,
		TotalReward:   t.totalReward,
		TotalSteps:    t.totalSteps,
		AverageReward: avg,
		Epsilon:       t.agent.Epsilon(),
		Alpha:         t.agent.Alpha(),
		StatesSeen:    t.agent.StatesSeen(),
		Config:        t.cfg,
	}
}
