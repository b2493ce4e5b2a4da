package main

import (
	"context"
	"flag"
	"os"
	"time"

	"budget/internal/auth"
	"budget/internal/cli"
	applog "budget/internal/log"
	"budget/internal/prefs"
	"budget/internal/repository"
)

func main() {
	opts := seedOptions{Now: time.Now()}
	flag.Int64Var(&opts.Seed, "seed", time.Now().UnixNano(), "random seed; reuse it to reproduce a data set")
	flag.IntVar(&opts.Categories, "categories", 8, "number of categories")
	flag.IntVar(&opts.Transactions, "count", 200, "number of transactions")
	flag.IntVar(&opts.Goals, "goals", 3, "number of savings goals")
	flag.IntVar(&opts.Months, "months", 6, "spread transactions over this many past months")
	username := flag.String("user", "", "also register this demo user")
	password := flag.String("password", "demo-password", "password for -user")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger.Info("Starting budget-seed", "db", cfg.SQLiteDBPath, "seed", opts.Seed)

	st := cli.OpenStore(logger, cfg.SQLiteDBPath)
	defer st.Close()

	ctx := context.Background()
	repo := repository.NewLocal(st, prefs.New(st, cfg.DefaultLanguage))

	if _, err := seed(ctx, repo, opts, applog.ForComponent(applog.ComponentSeed)); err != nil {
		logger.Error("Seeding failed", "error", err)
		st.Close()
		os.Exit(1)
	}

	if *username != "" {
		svc := auth.NewService(repo, auth.WithMinPasswordLength(cfg.MinPasswordLength))
		if _, err := svc.Register(ctx, *username, *password); err != nil {
			logger.Error("Demo user registration failed", "error", err, "username", *username)
			st.Close()
			os.Exit(1)
		}
		// Leave the app logged out; the user signs in through the API.
		if err := svc.Logout(ctx); err != nil {
			logger.Warn("Logout after registration failed", "error", err)
		}
		logger.Info("Demo user registered", "username", *username)
	}
}
