package engine

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/mdp"
)

func benchmarkEpisodes(b *testing.B, cfg Config) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg.Logger = logger
	for i := 0; i < b.N; i++ {
		trainer := NewTrainer(cfg)
		ctx := context.Background()
		for range trainer.Run(ctx) {
		}
	}
}

func BenchmarkEpisodesShoe(b *testing.B) {
	cfg := Config{
		Episodes:     1000,
		Seed:         99,
		Decks:        6,
		Epsilon:      0.2,
		EpsilonMin:   0.05,
		EpsilonDecay: 1e-4,
		Alpha:        0.1,
		Gamma:        1,
	}
	benchmarkEpisodes(b, cfg)
}

func BenchmarkEpisodesInfiniteDeck(b *testing.B) {
	cfg := Config{
		Episodes:     1000,
		Seed:         99,
		Epsilon:      0.2,
		EpsilonMin:   0.05,
		EpsilonDecay: 1e-4,
		Alpha:        0.1,
		Gamma:        1,
	}
	benchmarkEpisodes(b, cfg)
}

func BenchmarkValueIteration(b *testing.B) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	for i := 0; i < b.N; i++ {
		if _, err := mdp.ValueIteration(mdp.Options{Logger: logger}); err != nil {
			b.Fatal(err)
		}
	}
}
