package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/fluvialworks/rivernet-sim/core"
	"github.com/fluvialworks/rivernet-sim/internal/logging"
	"github.com/fluvialworks/rivernet-sim/internal/observability"
	"github.com/fluvialworks/rivernet-sim/timectrl"
)

// runConfig is the YAML run configuration. Flags override any field
// they are explicitly set for.
type runConfig struct {
	Scenario    string  `yaml:"scenario"`
	Dt          float64 `yaml:"dt"`       // simulated seconds per step
	Steps       int     `yaml:"steps"`    // 0 = run until the network empties
	Mode        string  `yaml:"mode"`     // accelerated | paced
	Interval    string  `yaml:"interval"` // wall-clock pacing, e.g. "1s"
	MetricsAddr string  `yaml:"metrics_addr"`
}

func defaultRunConfig() runConfig {
	return runConfig{
		Scenario: "configs/scenario.json",
		Dt:       60,
		Steps:    10,
		Mode:     "accelerated",
		Interval: "1s",
	}
}

func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read run config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse run config %q: %w", path, err)
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML run configuration")
	scenarioPath := flag.String("scenario", "", "path to JSON scenario (overrides config)")
	dt := flag.Float64("dt", 0, "simulated seconds per step (overrides config)")
	steps := flag.Int("steps", -1, "number of steps to run, 0 = until empty (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve /metrics on (overrides config)")
	paced := flag.Bool("paced", false, "pace steps against wall-clock time")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, log := logging.WithRunLogger(context.Background(), log)

	cfg, err := loadRunConfig(*configPath)
	if err != nil {
		fatal(ctx, log, err)
	}
	if *scenarioPath != "" {
		cfg.Scenario = *scenarioPath
	}
	if *dt > 0 {
		cfg.Dt = *dt
	}
	if *steps >= 0 {
		cfg.Steps = *steps
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *paced {
		cfg.Mode = "paced"
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		fatal(ctx, log, err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdown, log)

	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		fatal(ctx, log, err)
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				log.Warn(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
		log.Info(ctx, "serving metrics", logging.String("addr", cfg.MetricsAddr))
	}

	f, err := os.Open(cfg.Scenario)
	if err != nil {
		fatal(ctx, log, fmt.Errorf("open scenario %q: %w", cfg.Scenario, err))
	}
	scenario, err := core.LoadScenario(f)
	f.Close()
	if err != nil {
		fatal(ctx, log, err)
	}
	log.Info(ctx, "scenario loaded",
		logging.String("path", cfg.Scenario),
		logging.Int("nodes", scenario.Network.NumNodes()),
		logging.Int("reaches", scenario.Network.NumLinks()),
		logging.Int("parcels", scenario.Parcels.NumParcels()),
	)

	engineCfg := core.DefaultConfig()
	engineCfg.Logger = log
	engineCfg.Metrics = collector
	engine, err := core.NewTransporter(scenario.Network, scenario.Parcels, scenario.Flow, scenario.FlowDepth, engineCfg)
	if err != nil {
		fatal(ctx, log, err)
	}

	if cfg.Steps == 0 || cfg.Steps > scenario.Timesteps {
		cfg.Steps = scenario.Timesteps
	}
	mode := timectrl.Accelerated
	if cfg.Mode == "paced" {
		mode = timectrl.Paced
	}
	runner := timectrl.NewRunner(cfg.Dt, cfg.Steps, mode)
	if cfg.Interval != "" {
		interval, err := time.ParseDuration(cfg.Interval)
		if err != nil {
			fatal(ctx, log, fmt.Errorf("parse interval %q: %w", cfg.Interval, err))
		}
		runner.Interval = interval
	}
	runner.AddListener(func(step int, simTime float64) {
		log.Info(ctx, "step complete",
			logging.Int("step", step),
			logging.Float64("sim_time", simTime),
			logging.Int("parcels_in_network", engine.ParcelsInNetwork()),
		)
	})

	tracer := otel.Tracer("simulator")
	completed, err := runner.Run(ctx, func(dt float64) error {
		_, span := tracer.Start(ctx, "run_one_step",
			trace.WithAttributes(attribute.Int("time_index", engine.TimeIndex()+1)))
		defer span.End()
		if err := engine.RunOneStep(dt); err != nil {
			span.RecordError(err)
			return err
		}
		return nil
	})

	switch {
	case err == nil:
		log.Info(ctx, "run finished",
			logging.Int("steps", completed),
			logging.Float64("sim_time", engine.Time()),
		)
	case errors.Is(err, core.ErrNoParcels):
		// All sediment has left the network; that ends the run
		// cleanly rather than failing it.
		log.Info(ctx, "network empty, run finished early",
			logging.Int("steps", completed),
			logging.Float64("sim_time", engine.Time()),
		)
	default:
		fatal(ctx, log, err)
	}
}

func fatal(ctx context.Context, log logging.Logger, err error) {
	log.Error(ctx, "simulator failed", logging.String("error", err.Error()))
	os.Exit(1)
}
