package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yungbote/machine-maintenance-backend/internal/app"
)

func main() {
	jobs := flag.String("jobs", "feature_build,shard_sample", "comma-separated jobs to run in order")
	envFile := flag.String("env", ".env", "dotenv file to load if present")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}

	var types []string
	for _, j := range strings.Split(*jobs, ",") {
		if j = strings.TrimSpace(j); j != "" {
			types = append(types, j)
		}
	}
	if err := a.Run(ctx, types); err != nil {
		a.Log.Error("Run failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Close()
}
