package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/adp/streams"
	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/connector/registry"
	jsonpkg "github.com/hcmdata/adp-connector/pkg/json"
	"github.com/hcmdata/adp-connector/pkg/logger"
	"github.com/hcmdata/adp-connector/pkg/pool"

	// Import all available sources to register them
	_ "github.com/hcmdata/adp-connector/pkg/connector/sources/adp"
)

var version = "1.0.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile string

	root := &cobra.Command{
		Use:   "adp-connector",
		Short: "ADP data extraction connector",
		Long: `adp-connector extracts HR, staffing and payroll data from the ADP API.
Records are written to stdout as JSON lines; logs go to stderr.`,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (environment variables override)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("adp-connector v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "streams",
		Short: "List the streams this connector extracts",
		Run: func(cmd *cobra.Command, args []string) {
			for _, def := range streams.Definitions() {
				if def.Parent != "" {
					fmt.Printf("  %s (child of %s)\n", def.Name, def.Parent)
					continue
				}
				fmt.Printf("  %s\n", def.Name)
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog with schemas as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(configFile)
		},
	})

	var timeout time.Duration
	extractCmd := &cobra.Command{
		Use:   "extract",
		Short: "Run a full extraction and write records to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(configFile, timeout)
		},
	}
	extractCmd.Flags().DurationVar(&timeout, "timeout", 6*time.Hour, "Extraction timeout")
	root.AddCommand(extractCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and initializes the global logger.
func setup(configFile string) (*config.BaseConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel}); err != nil {
		return nil, fmt.Errorf("logger error: %w", err)
	}

	return cfg, nil
}

func runDiscover(configFile string) error {
	cfg, err := setup(configFile)
	if err != nil {
		return err
	}

	source, err := registry.CreateSource("adp", cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	catalog, err := source.Discover(ctx)
	if err != nil {
		return err
	}

	out, err := jsonpkg.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runExtract(configFile string, timeout time.Duration) error {
	cfg, err := setup(configFile)
	if err != nil {
		return err
	}

	log := logger.Get().With(zap.String("component", "adp-connector-cli"))

	if cfg.Observability.EnableMetrics && cfg.Observability.MetricsAddr != "" {
		go serveMetrics(cfg.Observability.MetricsAddr, log)
	}

	source, err := registry.CreateSource("adp", cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := source.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize source: %w", err)
	}
	defer func() {
		if err := source.Close(ctx); err != nil {
			log.Warn("failed to close source", zap.Error(err))
		}
		_ = logger.Sync()
	}()

	stream, err := source.Read(ctx)
	if err != nil {
		return err
	}

	log.Info("extraction started")
	startTime := time.Now()

	written, err := writeRecords(stream.Records)
	if err != nil {
		return err
	}

	// A drained record channel means the run finished; any error is final
	if runErr := <-stream.Errors; runErr != nil {
		return fmt.Errorf("extraction failed: %w", runErr)
	}

	duration := time.Since(startTime)
	log.Info("extraction complete",
		zap.Int64("records", written),
		zap.Duration("duration", duration),
		zap.Float64("records_per_second", float64(written)/duration.Seconds()))

	return nil
}

// writeRecords drains the record channel to stdout as JSON lines.
func writeRecords(records <-chan *pool.Record) (int64, error) {
	enc := jsonpkg.GetEncoder(os.Stdout)
	defer jsonpkg.PutEncoder(enc)

	var written int64
	for rec := range records {
		err := enc.Encode(rec)
		rec.Release()
		if err != nil {
			return written, fmt.Errorf("failed to write record: %w", err)
		}
		written++
	}
	return written, nil
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	log.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
