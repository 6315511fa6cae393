// Package main provides the entry point for the Sweeper datum and work area service.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jobrunner/sweeper/internal/app"
	"github.com/jobrunner/sweeper/internal/config"
	"github.com/jobrunner/sweeper/internal/domain"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var (
	cfgFile string
	v       = config.New()
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "reading .env:", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sweeper",
	Short: "Sweeper - datum conversion and work area service",
	Long: `Sweeper converts coordinates between WGS-84, GCJ-02 and BD-09 and
computes polygon centroids for the work areas of a sweeper fleet.

Features:
  - Point and batch datum conversion
  - Polygon centroids from JSON, WKT or plain text coordinate sets
  - Work area storage (SQLite or PostgreSQL) with a Redis center cache
  - Map files from local disk, AWS S3, Azure or HTTP with hot-reload
  - TLS with automatic certificate management
  - Prometheus metrics`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServer,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE:  runServer,
}

var convertCmd = &cobra.Command{
	Use:   "convert LNG LAT",
	Short: "Convert a single point between datums",
	Args:  cobra.ExactArgs(2),
	RunE:  runConvert,
}

var centroidCmd = &cobra.Command{
	Use:   "centroid FILE|-",
	Short: "Compute the centroid of a coordinate set file",
	Args:  cobra.ExactArgs(1),
	RunE:  runCentroid,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("Sweeper %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Build Date: %s\n", buildDate)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")

	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))

	addServerFlags(rootCmd.Flags())
	addServerFlags(serveCmd.Flags())

	convertCmd.Flags().String("from", "wgs84", "source datum (wgs84, gcj02, bd09)")
	convertCmd.Flags().String("to", "", "target datum (wgs84, gcj02, bd09)")
	_ = convertCmd.MarkFlagRequired("to")

	centroidCmd.Flags().String("datum", "wgs84", "datum of the input coordinates")
	centroidCmd.Flags().String("output-datum", "", "datum of the reported centroid (default: input datum)")

	rootCmd.AddCommand(serveCmd, convertCmd, centroidCmd, versionCmd)
}

func addServerFlags(flags *pflag.FlagSet) {
	// Server flags
	flags.String("host", "0.0.0.0", "server host")
	flags.Int("port", 8080, "server port")
	flags.Bool("tls", false, "enable TLS")
	flags.StringSlice("tls-domains", nil, "TLS domains")
	flags.String("tls-email", "", "TLS email for Let's Encrypt")

	// Storage flags
	flags.String("storage-type", "local", "storage type (local, s3, azure, http)")
	flags.String("storage-path", "./maps", "local map directory")

	// Database flags
	flags.String("db-driver", "sqlite", "work area database driver (sqlite, postgres)")
	flags.String("db-dsn", "./sweeper.db", "work area database DSN")

	// CORS flags
	flags.StringSlice("cors", nil, "allowed CORS origins (e.g., https://example.com,*.sub.domain.tld)")
}

// bindServerFlags binds the flags of the command being run, so that the
// root command and serve share the same configuration keys.
func bindServerFlags(flags *pflag.FlagSet) {
	bindings := map[string]string{
		"server.host":                 "host",
		"server.port":                 "port",
		"tls.enabled":                 "tls",
		"tls.domains":                 "tls-domains",
		"tls.email":                   "tls-email",
		"storage.type":                "storage-type",
		"storage.local_path":          "storage-path",
		"database.driver":             "db-driver",
		"database.dsn":                "db-dsn",
		"server.cors.allowed_origins": "cors",
	}
	for key, name := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	bindServerFlags(cmd.Flags())

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting Sweeper",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"storage_type", cfg.Storage.Type,
		"database", cfg.Database.Driver,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize application
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", cfg.Server.Address())
		if err := application.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("server error", "error", err)
		cancel()
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	logger.Info("shutting down server")
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	from, err := datumFlag(cmd, "from")
	if err != nil {
		return err
	}
	to, err := datumFlag(cmd, "to")
	if err != nil {
		return err
	}

	lng, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return &domain.ValidationError{Field: "lng", Value: args[0], Message: "not a number"}
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return &domain.ValidationError{Field: "lat", Value: args[1], Message: "not a number"}
	}

	out, err := domain.Convert(domain.NewGeoPoint(lng, lat), from, to)
	if err != nil {
		return err
	}

	printPoint(cmd.OutOrStdout(), out)
	return nil
}

func runCentroid(cmd *cobra.Command, args []string) error {
	datum, err := datumFlag(cmd, "datum")
	if err != nil {
		return err
	}
	outDatum := datum
	if s, _ := cmd.Flags().GetString("output-datum"); s != "" {
		if outDatum, err = domain.ParseDatum(s); err != nil {
			return err
		}
	}

	data, err := readInput(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	poly, err := domain.ParseCoordinateSet(string(data))
	if err != nil {
		return err
	}
	center, err := domain.Centroid(poly)
	if err != nil {
		return err
	}
	if center, err = domain.Convert(center, datum, outDatum); err != nil {
		return err
	}

	printPoint(cmd.OutOrStdout(), center)
	return nil
}

func datumFlag(cmd *cobra.Command, name string) (domain.Datum, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return "", err
	}
	return domain.ParseDatum(s)
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(name) //#nosec G304 -- path given on the command line
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

func printPoint(w io.Writer, p domain.GeoPoint) {
	fmt.Fprintf(w, "%s,%s\n",
		strconv.FormatFloat(p.Lng, 'f', -1, 64),
		strconv.FormatFloat(p.Lat, 'f', -1, 64))
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(time.Now().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
