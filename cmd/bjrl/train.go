package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/agent"
	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/engine"
	"blackjack-mdp/internal/env"
	"blackjack-mdp/internal/mdp"
	"blackjack-mdp/internal/report"
)

// trainFlags are shared by train and serve.
type trainFlags struct {
	episodes     *int
	seed         *int64
	gamma        *float64
	alpha        *float64
	alphaMin     *float64
	alphaDecay   *float64
	alphaKind    *string
	epsilon      *float64
	epsilonMin   *float64
	epsilonDecay *float64
	epsilonKind  *string
	decks        *int
	reshuffleAt  *int
	naturalBonus *bool
	lowCount     *int
	highCount    *int
	reportEvery  *int
}

func addTrainFlags(fs *flag.FlagSet, episodesFlag string, episodes int) trainFlags {
	def := agent.DefaultConfig()
	return trainFlags{
		episodes:     fs.Int(episodesFlag, envInt("BJ_EPISODES", episodes), "number of training episodes"),
		seed:         fs.Int64("seed", envInt64("BJ_SEED", 0), "deterministic seed (0 for default)"),
		gamma:        fs.Float64("discount", envFloat("BJ_DISCOUNT", def.Gamma), "discount factor (0-1]"),
		alpha:        fs.Float64("alpha", envFloat("BJ_ALPHA", def.Alpha.Initial), "initial learning rate (0-1)"),
		alphaMin:     fs.Float64("alpha-min", envFloat("BJ_ALPHA_MIN", def.Alpha.Final), "learning rate floor"),
		alphaDecay:   fs.Float64("alpha-decay", envFloat("BJ_ALPHA_DECAY", def.Alpha.Rate), "learning rate decay per episode"),
		alphaKind:    fs.String("alpha-decay-kind", getenv("BJ_ALPHA_DECAY_KIND", string(def.Alpha.Kind)), "linear or exponential"),
		epsilon:      fs.Float64("epsilon", envFloat("BJ_EPSILON", def.Epsilon.Initial), "initial exploration rate (0-1)"),
		epsilonMin:   fs.Float64("epsilon-min", envFloat("BJ_EPSILON_MIN", def.Epsilon.Final), "exploration floor"),
		epsilonDecay: fs.Float64("epsilon-decay", envFloat("BJ_EPSILON_DECAY", def.Epsilon.Rate), "exploration decay per episode"),
		epsilonKind:  fs.String("epsilon-decay-kind", getenv("BJ_EPSILON_DECAY_KIND", string(def.Epsilon.Kind)), "linear or exponential"),
		decks:        fs.Int("decks", envInt("BJ_DECKS", 6), "decks in the shoe (0 for an infinite deck)"),
		reshuffleAt:  fs.Int("reshuffle-at", envInt("BJ_RESHUFFLE_AT", env.DefaultReshuffleAt), "reshuffle when this many cards remain"),
		naturalBonus: fs.Bool("natural-bonus", envBool("BJ_NATURAL_BONUS", false), "pay 1.5 for a player natural"),
		lowCount:     fs.Int("low-count", envInt("BJ_LOW_COUNT", env.DefaultLowCount), "running count at or below this is low"),
		highCount:    fs.Int("high-count", envInt("BJ_HIGH_COUNT", env.DefaultHighCount), "running count at or above this is high"),
		reportEvery:  fs.Int("report-every", envInt("BJ_REPORT_EVERY", 10000), "episodes between progress snapshots"),
	}
}

func (f trainFlags) config(logger logrus.FieldLogger) (engine.Config, error) {
	alphaKind, err := agent.ParseDecayKind(*f.alphaKind)
	if err != nil {
		return engine.Config{}, err
	}
	epsilonKind, err := agent.ParseDecayKind(*f.epsilonKind)
	if err != nil {
		return engine.Config{}, err
	}
	cfg := engine.Config{
		Episodes:         *f.episodes,
		Seed:             normalizeSeed(*f.seed),
		Gamma:            *f.gamma,
		Alpha:            *f.alpha,
		AlphaMin:         *f.alphaMin,
		AlphaDecay:       *f.alphaDecay,
		AlphaDecayKind:   alphaKind,
		Epsilon:          *f.epsilon,
		EpsilonMin:       *f.epsilonMin,
		EpsilonDecay:     *f.epsilonDecay,
		EpsilonDecayKind: epsilonKind,
		Decks:            *f.decks,
		ReshuffleAt:      *f.reshuffleAt,
		NaturalBonus:     *f.naturalBonus,
		LowCount:         *f.lowCount,
		HighCount:        *f.highCount,
		ReportEvery:      *f.reportEvery,
		Logger:           logger,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// train runs a trainer to completion and returns every snapshot it emitted.
func train(ctx context.Context, cfg engine.Config) (*engine.Trainer, []engine.Snapshot) {
	trainer := engine.NewTrainer(cfg)
	var snaps []engine.Snapshot
	for snap := range trainer.Run(ctx) {
		snaps = append(snaps, snap)
	}
	return trainer, snaps
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	tf := addTrainFlags(fs, "episodes", 500000)
	evalEpisodes := fs.Int("eval", envInt("BJ_EVAL_EPISODES", 0), "greedy evaluation hands after training")
	compare := fs.Bool("compare", false, "compare the learned policy with value iteration")
	minVisits := fs.Int("min-visits", 1000, "visits a state needs before it is compared")
	minGap := fs.Float64("min-gap", 0.1, "exact action-value gap a state needs before it is compared")
	chart := fs.String("chart", "", "write a training chart (HTML) to this file")
	color := fs.Bool("color", envBool("BJ_COLOR", true), "colour the strategy grid")
	logs := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := logs.logger()
	if err != nil {
		return err
	}
	cfg, err := tf.config(logger)
	if err != nil {
		return err
	}

	fmt.Printf("train config => episodes=%d seed=%d decks=%d alpha=%.3f epsilon=%.3f gamma=%.3f\n",
		cfg.Episodes, cfg.Seed, cfg.Decks, cfg.Alpha, cfg.Epsilon, cfg.Gamma)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	trainer, snaps := train(ctx, cfg)
	final := snaps[len(snaps)-1]

	fmt.Printf("summary: status=%s episodes=%d wins=%d losses=%d pushes=%d avg_reward=%.4f states=%d\n",
		final.Status, final.Episode, final.Wins, final.Losses, final.Pushes,
		final.TotalReward/float64(max(final.Episode, 1)), final.StatesSeen)

	if *evalEpisodes > 0 {
		fmt.Printf("evaluation: greedy avg_reward=%.4f over %d hands\n", trainer.Evaluate(*evalEpisodes), *evalEpisodes)
	}

	learned := trainer.Agent().Policy()
	if err := printStrategy(os.Stdout, engine.ProjectPolicy(learned, blackjack.Neutral), *color); err != nil {
		return err
	}

	if *compare {
		solved, err := mdp.ValueIteration(mdp.Options{Gamma: cfg.Gamma, Logger: logger})
		if err != nil {
			return err
		}
		rep := engine.Agreement(learned, trainer.Visits(), solved, engine.AgreementOptions{
			MinVisits: *minVisits,
			MinGap:    *minGap,
		})
		fmt.Printf("agreement: compared=%d disagreements=%d rate=%.4f\n", rep.Compared, rep.Disagreements, rep.Rate)
		for _, obs := range rep.Mismatches {
			fmt.Printf("  mismatch: %s\n", obs)
		}
	}

	if *chart != "" {
		f, err := createFile(*chart)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.TrainingChart(f, snaps); err != nil {
			return fmt.Errorf("training chart: %w", err)
		}
		logger.WithField("file", *chart).Info("chart written")
	}

	if final.Status == engine.StatusCancelled {
		return context.Canceled
	}
	return nil
}
