// Command malariasim runs the agent-based malaria transmission model.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/api"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/config"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/engine"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/entropy"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/export"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/influx"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/logging"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/persistence"
	"github.com/elkingelvez/agent-based-model-of-malaria-dynamics/internal/report"
)

func main() {
	fs := pflag.NewFlagSet("malariasim", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Parse(os.Args[1:])
	configPath, _ := fs.GetString("config")

	cfg, err := config.Load(configPath, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	var logFile *os.File
	if cfg.Logging.File != "" {
		logFile, err = openLogFile(cfg.Logging.File)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if logFile != nil {
		defer logFile.Close()
		logging.Setup(os.Stdout, logFile, cfg.Logging.Level)
	} else {
		logging.Setup(os.Stdout, nil, cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	epoch, _ := cfg.Epoch()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed := entropy.ResolveSeed(ctx, cfg.Run.Seed, entropy.NewClient(cfg.Run.RandomOrgKey))
	runID := uuid.NewString()
	slog.Info("malaria transmission model", "run", runID, "seed", seed, "horizon", humanize.Comma(int64(cfg.Run.Horizon)))

	// ── World ─────────────────────────────────────────────────────────
	sim, err := engine.Bootstrap(cfg, seed)
	if err != nil {
		slog.Error("world generation failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := sim.Close(); err != nil {
			slog.Warn("metrics unregister failed", "error", err)
		}
	}()

	// ── Outputs ───────────────────────────────────────────────────────
	out := &outputs{runID: runID}

	if cfg.Output.DBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Output.DBPath), 0o755); err != nil {
			slog.Error("failed to create database directory", "error", err)
			os.Exit(1)
		}
		db, err := persistence.Open(cfg.Output.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			slog.Error("failed to encode config", "error", err)
			os.Exit(1)
		}
		if err := db.SaveRun(runID, seed, cfg.Run.Horizon, string(cfgJSON), time.Now()); err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		out.db = db
		slog.Info("database opened", "path", cfg.Output.DBPath)
	}

	if cfg.Output.CSVPath != "" {
		csv, err := export.CreateCSV(cfg.Output.CSVPath, cfg.Output.CSVEvery)
		if err != nil {
			slog.Error("failed to create csv", "error", err)
			os.Exit(1)
		}
		out.csv = csv
		slog.Info("csv output", "path", cfg.Output.CSVPath, "every_hours", cfg.Output.CSVEvery)
	}

	if cfg.Influx.Enabled {
		sink, err := influx.Connect(ctx, cfg.Influx, runID, epoch)
		if err != nil {
			slog.Error("influxdb sink failed", "error", err)
			os.Exit(1)
		}
		out.influx = sink
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(cfg.Run.Horizon)
	eng.Interval = cfg.Run.Interval
	eng.SetSpeed(cfg.Run.Speed)

	progressEvery := cfg.Logging.ProgressEvery
	eng.OnTick = func(tick uint64) {
		c := sim.Step(tick)
		out.record(c)
		if progressEvery > 0 && (tick+1)%progressEvery == 0 {
			slog.Info("progress",
				"tick", humanize.Comma(int64(tick+1)),
				"pct", fmt.Sprintf("%.1f", 100*float64(tick+1)/float64(max(cfg.Run.Horizon, 1))),
				"sim_time", engine.SimTime(epoch, tick+1),
				"hS", c.HumanS, "hE", c.HumanE, "hI", c.HumanI, "hR", c.HumanR,
				"vS", c.MosquitoS, "vI", c.MosquitoI,
			)
		}
	}
	eng.OnDay = func(tick uint64) {
		out.flush()
		c := sim.Latest()
		slog.Info("daily report",
			"day", tick/engine.TicksPerSimDay,
			"humans_infectious", c.HumanI,
			"mosquitoes", humanize.Comma(int64(c.Mosquitoes())),
			"mosquitoes_infectious", c.MosquitoI,
		)
	}
	eng.OnWeek = func(tick uint64) {
		block := sim.SeriesCopy(tick-engine.TicksPerSimWeek, tick)
		if len(block) == 0 {
			return
		}
		w := report.Average(int(tick/engine.TicksPerSimWeek), block)
		st := sim.CurrentStats()
		slog.Info("weekly report",
			"week", tick/engine.TicksPerSimWeek,
			"mean_hI", fmt.Sprintf("%.1f", w.HumanI),
			"mean_vI", fmt.Sprintf("%.1f", w.MosquitoI),
			"mean_mosquitoes", fmt.Sprintf("%.0f", w.Mosquitoes()),
			"bites", humanize.Comma(int64(st.Contacts)),
			"births", humanize.Comma(int64(st.Births)),
			"deaths", humanize.Comma(int64(st.Deaths)),
		)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.API.Port > 0 {
		if cfg.API.AdminKey == "" {
			slog.Warn("api.adminKey not set, admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       out.db,
			RunID:    runID,
			Epoch:    epoch,
			Port:     cfg.API.Port,
			AdminKey: cfg.API.AdminKey,
		}
		apiServer.Start(ctx)
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}

	// ── Run ───────────────────────────────────────────────────────────
	started := time.Now()
	runErr := eng.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("simulation aborted", "error", runErr)
	}

	out.close()
	stats := sim.CurrentStats()
	if out.db != nil && sim.Completed() > 0 {
		if err := out.db.FinishRun(runID, sim.Completed()-1, stats, time.Now()); err != nil {
			slog.Error("failed to finish run", "error", err)
		}
	}

	series := sim.SeriesCopy(0, math.MaxUint64)
	summarize(series, stats, time.Since(started))
	if runErr != nil {
		fmt.Printf("Simulation interrupted after %s ticks.\n", humanize.Comma(int64(len(series))))
		return
	}
	fmt.Printf("Simulation finished: %s ticks, run %s.\n", humanize.Comma(int64(len(series))), runID)
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// summarize logs the end-of-run figures and the weekly means.
func summarize(series []engine.Counts, stats engine.SimStats, elapsed time.Duration) {
	for _, w := range report.Weekly(series) {
		slog.Debug("week",
			"week", w.Week,
			"hS", fmt.Sprintf("%.1f", w.HumanS), "hE", fmt.Sprintf("%.1f", w.HumanE),
			"hI", fmt.Sprintf("%.1f", w.HumanI), "hR", fmt.Sprintf("%.1f", w.HumanR),
			"vS", fmt.Sprintf("%.1f", w.MosquitoS), "vI", fmt.Sprintf("%.1f", w.MosquitoI),
		)
	}

	peak, ok := report.Peak(series)
	if !ok {
		slog.Info("no ticks executed")
		return
	}
	last := series[len(series)-1]
	slog.Info("run summary",
		"ticks", humanize.Comma(int64(len(series))),
		"elapsed", elapsed.Round(time.Millisecond).String(),
		"peak_hI", peak.HumanI,
		"peak_tick", peak.Tick,
		"final_hS", last.HumanS, "final_hE", last.HumanE,
		"final_hI", last.HumanI, "final_hR", last.HumanR,
		"final_mosquitoes", humanize.Comma(int64(last.Mosquitoes())),
		"host_infections", stats.HostInfections,
		"vector_infections", stats.VectorInfections,
	)
}
