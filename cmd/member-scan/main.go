// Command member-scan checks a list of member identifiers against the
// screenshare lookup service and reports flagged members.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/screenshare-scanner/internal/config"
	"github.com/Sternrassler/screenshare-scanner/pkg/logging"
	"github.com/Sternrassler/screenshare-scanner/pkg/lookup"
	"github.com/Sternrassler/screenshare-scanner/pkg/metrics"
	"github.com/Sternrassler/screenshare-scanner/pkg/progress"
	"github.com/Sternrassler/screenshare-scanner/pkg/report"
	"github.com/Sternrassler/screenshare-scanner/pkg/results"
	"github.com/Sternrassler/screenshare-scanner/pkg/scanner"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

var version = "0.1.0"

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen, color.Bold)
	colorYellow = color.New(color.FgYellow, color.Bold)
)

func main() {
	_, _ = maxprocs.Set()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		colorRed.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath   string
	inputPath    string
	outPath      string
	displayLimit int
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "member-scan [flags] [id ...]",
		Short: "Check member identifiers against the screenshare lookup service",
		Long: `Checks every identifier against the screenshare search API in small
paced batches and reports flagged members.

Identifiers come from --input (one or more per line, "-" for stdin) and from
the command line. The scan stops early when the provider signals a rate limit.

Examples:
  member-scan --input members.txt
  cat members.txt | member-scan --input - --out flagged.json
  member-scan 123456789012345678 234567890123456789`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "scanner.yaml", "path to the YAML config file")
	flags.StringVarP(&opts.inputPath, "input", "i", "", "file with identifiers (- for stdin)")
	flags.StringVarP(&opts.outPath, "out", "o", report.ExportFileName, "JSON export of detections (empty to skip)")
	flags.IntVar(&opts.displayLimit, "limit", report.DefaultDisplayLimit, "detections listed in the text report")

	return cmd
}

func run(ctx context.Context, opts options, positional []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LoggerConfig())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ids, err := collectIdentifiers(opts.inputPath, positional, stdin)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("no identifiers to scan")
	}

	lookupCfg := cfg.LookupClientConfig()

	var redisClient *redis.Client
	if cfg.CacheEnabled() {
		redisOpts, err := cfg.RedisOptions()
		if err != nil {
			return err
		}
		redisClient = redis.NewClient(redisOpts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", redisOpts.Addr).Msg("Redis unavailable, lookup cache disabled")
		} else {
			log.Info().Str("addr", redisOpts.Addr).Msg("Connected to Redis")
			lookupCfg.Redis = redisClient
		}
	}

	client, err := lookup.New(lookupCfg)
	if err != nil {
		return fmt.Errorf("create lookup client: %w", err)
	}

	if cfg.Server.MetricsAddr != "" {
		srv := newServer(cfg.Server.MetricsAddr, redisClient)
		go func() {
			log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sink, err := progressSink(cfg)
	if err != nil {
		return err
	}

	sched := scanner.NewScheduler(client, cfg.SchedulerConfig())
	result := sched.Run(ctx, ids, sink)

	summary := report.Build(result.Results, len(ids))
	if err := report.WriteText(stdout, summary, result.Results.Detected, opts.displayLimit); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if opts.outPath != "" && len(result.Results.Detected) > 0 {
		if err := writeExport(opts.outPath, result.Results); err != nil {
			return err
		}
		log.Info().
			Str("path", opts.outPath).
			Int("detections", len(result.Results.Detected)).
			Msg("Detailed report written")
	}

	printOutcome(stderr, result)

	if result.State == scanner.StateCancelled {
		return fmt.Errorf("scan cancelled after %d of %d identifiers", result.Results.Checked, len(ids))
	}
	return nil
}

// collectIdentifiers merges identifiers from the input file and the
// command line, de-duplicated in first-seen order.
func collectIdentifiers(inputPath string, positional []string, stdin io.Reader) ([]string, error) {
	var ids []string

	switch inputPath {
	case "":
	case "-":
		read, err := readIdentifiers(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		ids = append(ids, read...)
	default:
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		read, err := readIdentifiers(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", inputPath, err)
		}
		ids = append(ids, read...)
	}

	ids = append(ids, positional...)
	return scanner.Dedupe(ids), nil
}

// readIdentifiers reads whitespace or comma separated identifiers. Lines
// starting with # are comments. Line length is unbounded.
func readIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		line := strings.TrimSpace(raw)
		if line != "" && !strings.HasPrefix(line, "#") {
			ids = append(ids, strings.FieldsFunc(line, func(r rune) bool {
				return r == ',' || r == ' ' || r == '\t'
			})...)
		}
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func progressSink(cfg *config.Config) (progress.Sink, error) {
	sinks := []progress.Sink{progress.NewLogSink(logging.NewLogger("progress"))}

	if cfg.Progress.WebhookURL != "" {
		webhook, err := progress.NewWebhookSink(cfg.Progress.WebhookURL, cfg.Progress.WebhookHeaders, cfg.Progress.WebhookTimeout)
		if err != nil {
			return nil, fmt.Errorf("progress webhook: %w", err)
		}
		sinks = append(sinks, webhook)
	}

	return progress.Multi(sinks...), nil
}

func writeExport(path string, snap results.ScanResults) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := report.WriteJSON(f, snap.Detected); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	return nil
}

// printOutcome writes a one-line colored verdict for interactive use.
func printOutcome(w io.Writer, result scanner.Result) {
	res := result.Results
	switch result.State {
	case scanner.StateHaltedOnRateLimit:
		colorYellow.Fprintf(w, "⚠️  Stopped early on rate limit: %d checked, %d detections\n", res.Checked, len(res.Detected))
	case scanner.StateCancelled:
		colorYellow.Fprintf(w, "⚠️  Cancelled: %d checked, %d detections\n", res.Checked, len(res.Detected))
	default:
		if len(res.Detected) > 0 {
			colorRed.Fprintf(w, "🚨 %d of %d members flagged\n", len(res.Detected), res.Checked)
			return
		}
		colorGreen.Fprintf(w, "✅ %d members checked, none flagged\n", res.Checked)
	}
}

func newServer(addr string, redisClient *redis.Client) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports 503 when the configured cache backend is unreachable.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}
