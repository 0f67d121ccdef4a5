package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"kestrel/internal/app/bootstrap"
	"kestrel/internal/config"
	"kestrel/internal/database"
	"kestrel/internal/domain"
	"kestrel/internal/jobs/runtime"
)

// Run is the CLI entry point: load configuration, assemble the engine, scan
// the requested targets and render the results.
func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	jsonFlag := flag.Bool("json", false, "Render results as JSON")
	kindFlag := flag.String("kind", "", "Force the target kind: url, email or hash (default: auto-detect)")
	productionFlag := flag.Bool("production", false, "Run in production mode")
	flag.Parse()

	config.SetProductionMode(*productionFlag)
	if config.InProductionMode {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}

	targets, err := parseTargets(flag.Args(), *kindFlag)
	if err != nil {
		return err
	}

	config.ReadSettings()

	components, err := bootstrap.Setup()
	if err != nil {
		return err
	}
	defer components.Close()

	ctx := context.Background()

	if err := components.Cache.Hydrate(ctx); err != nil {
		log.Warn("Cache hydration failed, starting cold", "error", err)
	}

	sweepCancel := runtime.LaunchCacheSweep(ctx, components.Cache)
	defer sweepCancel()

	historyEnabled := config.GetConfig().History.Enabled && components.DB != nil
	if historyEnabled {
		pruneCancel := runtime.LaunchHistoryPrune(ctx)
		defer pruneCancel()
	}

	for _, target := range targets {
		result := components.Engine.Scan(ctx, target)

		if *jsonFlag {
			renderJSON(os.Stdout, result)
		} else {
			renderText(os.Stdout, result)
		}

		if historyEnabled {
			if err := database.SaveScanResult(ctx, result); err != nil {
				log.Warn("Persisting scan result failed", "target", target.Value, "error", err)
			}
		}
	}

	metrics := components.Engine.Metrics()
	log.Debug("Engine metrics",
		"cache_hits", metrics.Cache.Hits,
		"cache_misses", metrics.Cache.Misses,
		"cache_evictions", metrics.Cache.Evictions,
		"limiter_rejections", metrics.LimiterRejections,
	)

	return nil
}

// parseTargets turns the positional arguments into typed targets, either by
// detection or forced through -kind.
func parseTargets(args []string, kind string) ([]domain.CheckTarget, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no targets given: pass one or more URLs, email addresses or SHA-256 hashes")
	}

	targets := make([]domain.CheckTarget, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}

		switch strings.ToLower(kind) {
		case "":
			targets = append(targets, domain.DetectTarget(arg))
		case "url":
			targets = append(targets, domain.URLTarget(arg))
		case "email":
			targets = append(targets, domain.EmailTarget(arg))
		case "hash", "file_hash":
			targets = append(targets, domain.FileHashTarget(arg))
		default:
			return nil, fmt.Errorf("unknown target kind %q", kind)
		}
	}

	if len(targets) == 0 {
		return nil, fmt.Errorf("no usable targets given")
	}
	return targets, nil
}
