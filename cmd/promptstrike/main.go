// Command promptstrike runs the AI red-team testing engine: `serve`
// starts the HTTP API, `local` runs the payload catalog against a target
// endpoint directly from the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promptstrike/promptstrike/pkg/api"
	"github.com/promptstrike/promptstrike/pkg/config"
	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/detect"
	"github.com/promptstrike/promptstrike/pkg/dispatcher"
	"github.com/promptstrike/promptstrike/pkg/hooks"
	"github.com/promptstrike/promptstrike/pkg/local"
	"github.com/promptstrike/promptstrike/pkg/payloads"
	"github.com/promptstrike/promptstrike/pkg/progress"
	"github.com/promptstrike/promptstrike/pkg/run"
	"github.com/promptstrike/promptstrike/pkg/store"
	"github.com/promptstrike/promptstrike/pkg/target"
	"github.com/promptstrike/promptstrike/pkg/ui"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serveCmd(os.Args[2:])
	case "local":
		err = localCmd(os.Args[2:])
	case "version":
		fmt.Printf("%s %s\n", defaults.ToolName, defaults.Version)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags]

commands:
  serve    start the testing engine API
  local    run the payload catalog against a target from the terminal
  version  print the version
`, defaults.ToolName)
}

func serveCmd(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file (YAML)")
	listen := fs.String("listen", "", "Listen address (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	catalog, err := loadCatalog(cfg.PayloadDir)
	if err != nil {
		return fmt.Errorf("load payloads: %w", err)
	}
	logger.Info("payload catalog loaded",
		slog.Int("payloads", catalog.Len()),
		slog.String("dir", cfg.PayloadDir))

	mem := store.NewMemory()
	if cfg.SnapshotPath != "" {
		if err := mem.Load(cfg.SnapshotPath); err == nil {
			logger.Info("store snapshot restored", slog.String("path", cfg.SnapshotPath))
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("load snapshot: %w", err)
		}
	}

	disp := dispatcher.New(dispatcher.Config{Async: true})
	disp.Register(hooks.NewLoggerHook(logger))

	var promHook *hooks.PrometheusHook
	if cfg.Telemetry.Metrics {
		promHook = hooks.NewPrometheusHook()
		disp.Register(promHook)
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		otelHook, err := hooks.NewOTelHook(hooks.OTelOptions{
			Endpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure: cfg.Telemetry.OTLPInsecure,
		})
		if err != nil {
			return fmt.Errorf("otel setup: %w", err)
		}
		defer otelHook.Close()
		disp.Register(otelHook)
	}

	registry := progress.NewRegistry(defaults.ProgressGrace)
	defer registry.Close()

	orch := run.New(run.Config{
		Store:    mem,
		Catalog:  catalog,
		Detector: detect.New(detect.Options{SuccessThreshold: cfg.Detection.SuccessThreshold}),
		Registry: registry,
		Events:   disp,
		Defaults: run.RunDefaults{
			RateLimit: cfg.Run.RateLimit,
			Timeout:   cfg.Run.Timeout.Std(),
			Retries:   cfg.Run.Retries,
		},
		FindingThreshold: cfg.Detection.FindingThreshold,
	}, run.WithLogger(logger))

	srvCfg := api.Config{Orchestrator: orch, Store: mem}
	if promHook != nil {
		srvCfg.Metrics = promHook.Handler()
	}
	server := api.New(srvCfg, api.WithLogger(logger))

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run(cfg.Listen) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	}

	orch.Wait()
	disp.Close()
	if cfg.SnapshotPath != "" {
		if err := mem.Save(cfg.SnapshotPath); err != nil {
			logger.Error("store snapshot save failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func localCmd(args []string) error {
	fs := flag.NewFlagSet("local", flag.ExitOnError)
	targetURL := fs.String("target", "", "Target endpoint URL (required)")
	apiKey := fs.String("api-key", "", "Bearer token for the target")
	responseField := fs.String("response-field", "", "JSON dot path to the response text")
	payloadDir := fs.String("payloads", "payloads", "Payload directory")
	category := fs.String("category", "", "Filter payloads by category")
	rateLimit := fs.Int("rate-limit", defaults.RateLimit, "Max requests per second")
	timeout := fs.Duration("timeout", defaults.Timeout, "Per-request timeout")
	noBanner := fs.Bool("no-banner", false, "Suppress the banner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *targetURL == "" {
		return fmt.Errorf("-target is required")
	}

	if !*noBanner {
		fmt.Print(ui.Banner())
	}

	catalog, err := loadCatalog(*payloadDir)
	if err != nil {
		return fmt.Errorf("load payloads: %w", err)
	}
	fmt.Printf("loaded %d payloads\n\n", catalog.Len())

	var sel payloads.Selection
	if *category != "" {
		sel = payloads.SelectionFromStrings(nil, []string{*category})
	}
	selected, err := catalog.Select(sel)
	if err != nil {
		return err
	}

	invoker := target.New(target.Config{
		BaseURL:       *targetURL,
		APIKey:        *apiKey,
		ResponseField: *responseField,
		Timeout:       *timeout,
	})
	fn := func(ctx context.Context, prompt string) (string, error) {
		res, err := invoker.Invoke(ctx, payloads.Payload{ID: "local", Name: "local", Content: prompt}, target.Options{Attempts: 1})
		if err != nil {
			return "", err
		}
		return res.ResponseBody, nil
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tester := local.New(detect.New(detect.Options{}))
	start := time.Now()
	summary, _, err := tester.RunBatch(ctx, fn, selected, local.BatchOptions{
		RateLimit: *rateLimit,
		OnResult:  func(r local.Result) { fmt.Println(ui.FormatResult(r)) },
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "batch interrupted:", err)
	}

	fmt.Println()
	fmt.Print(ui.FormatSummary(summary))
	fmt.Printf("\n%s\n", ui.SubtitleStyle.Render(fmt.Sprintf("finished in %s", time.Since(start).Round(time.Millisecond))))

	if summary.Successful > 0 {
		os.Exit(1)
	}
	return nil
}

// loadCatalog reads the payload directory, falling back to the builtin
// catalog when the directory is absent or empty.
func loadCatalog(dir string) (*payloads.Catalog, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return payloads.Builtin(), nil
	}
	catalog, _, err := payloads.NewLoader(dir).LoadAll()
	if err != nil {
		return nil, err
	}
	if catalog.Len() == 0 {
		return payloads.Builtin(), nil
	}
	return catalog, nil
}
