package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/engine"
	"blackjack-mdp/internal/mdp"
	"blackjack-mdp/internal/server"
)

const shutdownTimeout = 5 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	addr := fs.String("addr", getenv("BJ_ADDR", ":8080"), "listen address")
	method := fs.String("method", getenv("BJ_METHOD", "vi"), "solver: vi or pi")
	tf := addTrainFlags(fs, "train-episodes", 0)
	logs := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := logs.logger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	solved, err := solve(*method, mdp.Options{Gamma: *tf.gamma, Logger: logger})
	if err != nil {
		return err
	}

	var learned map[blackjack.Observation][]float64
	if *tf.episodes > 0 {
		cfg, err := tf.config(logger)
		if err != nil {
			return err
		}
		trainer, snaps := train(ctx, cfg)
		if snaps[len(snaps)-1].Status == engine.StatusCancelled {
			return context.Canceled
		}
		learned = trainer.Agent().QValues()
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(solved, learned, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": *addr, "learned": learned != nil}).Info("serving policies")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
