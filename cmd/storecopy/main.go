// Command storecopy copies the whole minyan document from one store backend
// to another, e.g. to move a deployment off the JSON file:
//
//	storecopy -from file:./data.json -to mongo
//
// A target is "<backend>[:<arg>]". The optional arg overrides the file path
// (file), the state key (redis), the object name (minio) or the database
// name (mongo); everything else comes from the usual environment settings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/minjen/minjen-counter/backend/go-services/internal/config"
	"github.com/minjen/minjen-counter/backend/go-services/internal/minyan/repository"
	"github.com/minjen/minjen-counter/backend/go-services/pkg/logger"
)

func main() {
	from := flag.String("from", "file:./data.json", "source store (<backend>[:<arg>])")
	to := flag.String("to", "", "destination store (<backend>[:<arg>])")
	force := flag.Bool("force", false, "overwrite a destination that already holds pages")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Parse()

	logger.Init(os.Getenv("LOG_LEVEL"))
	if *to == "" {
		fmt.Fprintln(os.Stderr, "storecopy: -to is required")
		flag.Usage()
		os.Exit(2)
	}

	// targets carry their own backend, so only each target is validated
	base := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	n, err := run(ctx, base, *from, *to, *force)
	if err != nil {
		logger.Fatalf("storecopy: %v", err)
	}
	logger.Infof("copied %d pages from %s to %s", n, *from, *to)
}

// run copies the document and returns the number of pages written.
func run(ctx context.Context, base *config.Config, from, to string, force bool) (int, error) {
	srcCfg, err := targetConfig(base, from)
	if err != nil {
		return 0, err
	}
	dstCfg, err := targetConfig(base, to)
	if err != nil {
		return 0, err
	}

	src, err := repository.Open(ctx, srcCfg)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = src.Close(ctx) }()
	dst, err := repository.Open(ctx, dstCfg)
	if err != nil {
		return 0, fmt.Errorf("open destination: %w", err)
	}
	defer func() { _ = dst.Close(ctx) }()

	state, err := src.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}
	if !force {
		existing, err := dst.Load(ctx)
		if err != nil {
			return 0, fmt.Errorf("load destination: %w", err)
		}
		if len(existing.Pages) > 0 {
			return 0, fmt.Errorf("destination already has %d pages; use -force to overwrite", len(existing.Pages))
		}
	}
	if err := dst.Save(ctx, state); err != nil {
		return 0, fmt.Errorf("save destination: %w", err)
	}
	return len(state.Pages), nil
}

// targetConfig applies a "<backend>[:<arg>]" target to a copy of base.
func targetConfig(base *config.Config, target string) (*config.Config, error) {
	backend, arg, _ := strings.Cut(target, ":")
	cfg := *base
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(backend))
	switch cfg.Store.Backend {
	case config.BackendFile:
		if arg != "" {
			cfg.Store.DataFile = arg
		}
	case config.BackendRedis:
		if arg != "" {
			cfg.Redis.StateKey = arg
		}
	case config.BackendMinIO:
		if arg != "" {
			cfg.MinIO.Object = arg
		}
	case config.BackendMongo:
		if arg != "" {
			cfg.MongoDB.Database = arg
		}
	case config.BackendMemory:
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("target %q: %w", target, err)
	}
	return &cfg, nil
}
