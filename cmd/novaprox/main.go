package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/suprohub/novaprox/internal/config"
	"github.com/suprohub/novaprox/internal/coordinator"
	"github.com/suprohub/novaprox/internal/dnscache"
	"github.com/suprohub/novaprox/internal/filter"
	"github.com/suprohub/novaprox/internal/geoip"
	"github.com/suprohub/novaprox/internal/logger"
	"github.com/suprohub/novaprox/internal/model"
	"github.com/suprohub/novaprox/internal/pipeline"
	"github.com/suprohub/novaprox/internal/prober"
	"github.com/suprohub/novaprox/internal/source"
	"github.com/suprohub/novaprox/internal/subscription"
	"github.com/suprohub/novaprox/internal/telegram"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.LogLevel)

	input := flag.String("i", cfg.InputPath, "input feed: file path, http(s) URL, or '-' for stdin")
	outDir := flag.String("o", cfg.OutputDir, "directory for the published subscription files")
	workers := flag.Int("c", cfg.Workers, "max concurrent probes")
	timeout := flag.Duration("t", cfg.ProbeTimeout, "per-probe timeout")
	flag.Parse()

	os.Exit(run(cfg, *input, *outDir, *workers, *timeout))
}

// run exits 0 on any completed run, even with zero survivors; non-zero
// only on an unrecoverable input or environment failure.
func run(cfg *config.Config, input, outDir string, workers int, timeout time.Duration) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(outDir, 0755); err != nil {
		slog.Error("output directory unwritable", "dir", outDir, "error", err)
		return 1
	}

	lines, err := source.Load(input)
	if err != nil {
		slog.Error("input feed unreadable", "input", input, "error", err)
		return 1
	}

	// A missing runtime is not fatal: each probe records a spawn error
	// and the summary surfaces the systemic problem.
	if _, err := exec.LookPath(cfg.SingBoxPath); err != nil {
		slog.Warn("proxy runtime not found, probes will fail", "path", cfg.SingBoxPath)
	}

	writer := subscription.NewWriter(outDir)
	if db, err := geoip.Open(cfg.GeoIPPath); err == nil {
		defer db.Close()
		if cache, err := dnscache.Open(cfg.DNSCachePath); err == nil {
			writer.Geo = db
			writer.Resolver = cache
			defer func() {
				if err := cache.Save(); err != nil {
					slog.Warn("dns cache not saved", "error", err)
				}
			}()
		}
	} else {
		slog.Debug("geoip database unavailable, country tags disabled", "error", err)
	}

	runner := prober.NewRunner(cfg.SingBoxPath, cfg.TestURL, cfg.StartupTimeout)
	if cfg.PreCheck {
		runner.PreCheck = filter.NewPipeline(cfg.TcpTimeout)
	}

	var bar *progressbar.ProgressBar
	coord := coordinator.New(runner,
		coordinator.WithSpawnInterval(cfg.SpawnInterval),
		coordinator.WithObserver(func(model.ProbeResult) {
			if bar != nil {
				bar.Add(1)
			}
		}),
	)

	p := pipeline.New(coord, writer)
	p.OnProbing = func(total int) {
		if total > 0 {
			bar = progressbar.Default(int64(total), "probing")
		}
	}

	summary, err := p.Run(ctx, lines, workers, timeout)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		slog.Error("run aborted", "state", p.State(), "error", err)
		return 1
	}

	slog.Info("run published",
		"lines", summary.Lines,
		"parsed", summary.Parsed,
		"parse_errors", summary.ParseErrors,
		"deduplicated", summary.Deduplicated,
		"probed", summary.Probed,
		"spawn_errors", summary.SpawnErrors,
		"alive", summary.Total(),
	)

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err := notifier.SendMessage(summary.String()); err != nil {
			slog.Warn("telegram notification failed", "error", err)
		}
		if cfg.TelegramPushAll {
			allFile := filepath.Join(outDir, subscription.AllFile)
			if err := notifier.SendSubscriptionFile(allFile); err != nil {
				slog.Warn("telegram subscription push failed", "error", err)
			}
		}
	}

	return 0
}
