package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"blackjack-mdp/internal/blackjack"
	"blackjack-mdp/internal/mdp"
	"blackjack-mdp/internal/report"
)

func runSolve(args []string) error {
	fs := flag.NewFlagSet("solve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	method := fs.String("method", getenv("BJ_METHOD", "vi"), "solver: vi (value iteration) or pi (policy iteration)")
	gamma := fs.Float64("gamma", envFloat("BJ_GAMMA", mdp.DefaultGamma), "discount factor (0-1]")
	theta := fs.Float64("theta", envFloat("BJ_THETA", mdp.DefaultTheta), "convergence threshold")
	maxSweeps := fs.Int("max-sweeps", envInt("BJ_MAX_SWEEPS", mdp.DefaultMaxSweeps), "sweep cap")
	chart := fs.String("chart", "", "write a convergence chart (HTML) to this file")
	values := fs.Bool("values", false, "print the state-value tables")
	color := fs.Bool("color", envBool("BJ_COLOR", true), "colour the strategy grid")
	logs := addLogFlags(fs)

	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := logs.logger()
	if err != nil {
		return err
	}

	res, err := solve(*method, mdp.Options{
		Gamma:     *gamma,
		Theta:     *theta,
		MaxSweeps: *maxSweeps,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("solve config => method=%s gamma=%.3f theta=%g sweeps=%d rounds=%d\n",
		*method, *gamma, *theta, res.Stats.Sweeps, res.Stats.PolicyRounds)
	if err := printStrategy(os.Stdout, res.Policy, *color); err != nil {
		return err
	}
	if *values {
		res.Values.Print(os.Stdout)
	}
	if *chart != "" {
		f, err := createFile(*chart)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := report.ConvergenceChart(f, res.Stats); err != nil {
			return fmt.Errorf("convergence chart: %w", err)
		}
		logger.WithField("file", *chart).Info("chart written")
	}
	return nil
}

func solve(method string, opts mdp.Options) (*mdp.Result, error) {
	switch method {
	case "vi":
		return mdp.ValueIteration(opts)
	case "pi":
		return mdp.PolicyIteration(opts)
	default:
		return nil, fmt.Errorf("unknown method %q; use vi or pi", method)
	}
}

func printStrategy(w io.Writer, policy map[mdp.State]blackjack.Action, color bool) error {
	for _, usable := range []bool{false, true} {
		if err := report.StrategyGrid(w, policy, usable, color); err != nil {
			return err
		}
	}
	return nil
}
