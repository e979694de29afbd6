package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bjrl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// a missing .env is fine; the environment and flags still apply
	_ = godotenv.Load()

	if len(args) < 1 {
		return errors.New("missing subcommand; try 'solve', 'train' or 'serve'")
	}

	subcommand := args[0]
	switch subcommand {
	case "solve":
		return runSolve(args[1:])
	case "train":
		return runTrain(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q", subcommand)
	}
}

type logFlags struct {
	level *string
	json  *bool
}

func addLogFlags(fs *flag.FlagSet) logFlags {
	return logFlags{
		level: fs.String("log-level", getenv("BJ_LOG_LEVEL", "info"), "log level (debug, info, warn, error)"),
		json:  fs.Bool("json", envBool("BJ_LOG_JSON", false), "log as JSON"),
	}
}

func (f logFlags) logger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(*f.level)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	if *f.json {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	n, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return n
}

func envInt64(k string, def int64) int64 {
	n, err := strconv.ParseInt(getenv(k, ""), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(getenv(k, ""), 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(k string, def bool) bool {
	b, err := strconv.ParseBool(getenv(k, ""))
	if err != nil {
		return def
	}
	return b
}

func normalizeSeed(seed int64) int64 {
	if seed == 0 {
		return 1
	}
	return seed
}

func createFile(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}
