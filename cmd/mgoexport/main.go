// Main package for the mgoexport tool.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"
	report "github.com/kinfkong/modern-mgo-report"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/bson"
)

// Exit codes, following the mongo tools
const (
	exitSuccess    = 0
	exitError      = 1
	exitBadOptions = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	parser.Usage = usage

	rest, err := parser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return exitSuccess
		}
		fmt.Fprintln(os.Stderr, "try 'mgoexport --help' for more information")
		return exitBadOptions
	}
	if len(rest) != 0 {
		fmt.Fprintf(os.Stderr, "too many positional arguments: %v\n", rest)
		return exitBadOptions
	}

	cfg, err := loadConfig(&opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		return exitBadOptions
	}

	logger, err := newLogger(cfg.Log, opts.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logging: %v\n", err)
		return exitBadOptions
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := export(ctx, cfg, &opts, logger); err != nil {
		logger.Error("export failed", "collection", opts.Input.Collection, "error", err)
		return exitError
	}
	return exitSuccess
}

// loadConfig reads the configuration file, if any, and applies command line
// overrides on top of it.
func loadConfig(opts *Options) (*report.FileConfig, error) {
	cfg := report.DefaultFileConfig()
	if opts.Connection.Config != "" {
		loaded, err := report.LoadConfigWithEnvOverrides(opts.Connection.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.Connection.URI != "" {
		cfg.Mongo.URI = opts.Connection.URI
	}
	if opts.Connection.Database != "" {
		cfg.Mongo.Database = opts.Connection.Database
	}
	if opts.Input.ArrayPageSize != 0 {
		cfg.Traversal.ArrayPageSize = opts.Input.ArrayPageSize
	}
	if opts.Input.CursorThreshold != 0 {
		cfg.Traversal.CursorThreshold = opts.Input.CursorThreshold
	}
	if opts.Input.CursorPageSize != 0 {
		cfg.Traversal.CursorPageSize = opts.Input.CursorPageSize
	}
	if opts.Log.JSONLogs {
		cfg.Log.Format = "json"
	}

	if err := report.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg report.LogConfig, opts LogOptions) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
}

func export(ctx context.Context, cfg *report.FileConfig, opts *Options, logger *slog.Logger) error {
	gen, err := newCSVGenerator(splitFields(opts.Output.Fields), opts.Output.Delimiter, !opts.Output.NoHeader)
	if err != nil {
		return err
	}

	registryOpts := report.RegistryOptions{
		Generators:   map[string]report.Generator{opts.Input.Collection: gen},
		DefaultQuery: report.DateRangeQuery,
	}
	if opts.Input.Query != "" {
		var filter bson.M
		if err := bson.UnmarshalExtJSON([]byte(opts.Input.Query), false, &filter); err != nil {
			return fmt.Errorf("invalid --query: %v", err)
		}
		registryOpts.Queries = map[string]report.QueryBuilder{
			opts.Input.Collection: userQuery(filter),
		}
	}

	var metrics *report.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		metrics, err = report.NewMetrics(cfg.Metrics.Namespace, registry)
		if err != nil {
			return err
		}
	}

	session, err := report.DialWithTimeout(cfg.Mongo.URI, cfg.Mongo.ConnectTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to disconnect", "error", err)
		}
	}()
	if err := session.Ping(ctx); err != nil {
		return err
	}

	db := session.DB(cfg.Mongo.Database).WithTimeout(cfg.Mongo.OperationTimeout)
	exporter := &report.Exporter{
		Resolver: report.CollectionResolver(db, nil),
		Registry: report.NewRegistry(registryOpts),
		Config:   cfg.Traversal,
		Logger:   logger.With("database", db.Name()),
		Metrics:  metrics,
		NoBOM:    opts.Output.NoBOM,
	}

	out, closeOut, err := openOutput(opts.Output.OutFile)
	if err != nil {
		return err
	}

	requestOpts := report.Options{
		"from": opts.Input.From,
		"to":   opts.Input.To,
	}
	if opts.Input.Ascending {
		requestOpts["direction"] = "asc"
	}

	err = exporter.WriteToStream(ctx, out, opts.Input.Collection, requestOpts)
	if closeErr := closeOut(); err == nil {
		err = closeErr
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Textfile != "" {
		if writeErr := prometheus.WriteToTextfile(cfg.Metrics.Textfile, registry); writeErr != nil {
			logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", writeErr)
		}
	}
	return err
}

// userQuery narrows filter by the from/to/bot options the same way the
// default query does.
func userQuery(filter bson.M) report.QueryBuilder {
	return func(ctx context.Context, opts report.Options) (report.Query, error) {
		q, err := report.DateRangeQuery(ctx, opts)
		if err != nil {
			return report.Query{}, err
		}
		if len(q.Filter) > 0 && len(filter) > 0 {
			q.Filter = bson.M{"$and": bson.A{filter, q.Filter}}
		} else if len(filter) > 0 {
			q.Filter = filter
		}
		return q, nil
	}
}

func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	if strings.HasSuffix(path, "/") {
		return nil, nil, fmt.Errorf("output path %q is a directory", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}
