package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/featable/internal/adapters/catalog"
	"github.com/okian/featable/internal/adapters/csvio"
	"github.com/okian/featable/internal/adapters/rank"
	"github.com/okian/featable/internal/app"
	"github.com/okian/featable/internal/config"
	"github.com/okian/featable/internal/domain/frame"
	"github.com/okian/featable/internal/features/learning"
	"github.com/okian/featable/internal/features/telemetry"
	"github.com/okian/featable/pkg/logger"
	"github.com/okian/featable/pkg/metrics"
)

// Metrics listener timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
	topSubjects       = 5
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to flush logs: " + err.Error() + "\n")
		}
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Optional metrics listener for the duration of the run.
	if cfg.MetricsAddr != "" {
		defer startMetricsServer(ctx, cfg.MetricsAddr, log)()
	}

	pipe := app.New(append(app.FromConfig(cfg), app.WithLogger(log))...)

	var out *frame.Table
	switch cfg.Mode {
	case config.ModeLearning:
		out, err = runLearning(ctx, cfg, pipe)
	case config.ModeTelemetry:
		out, err = runTelemetry(ctx, cfg, pipe)
	}
	if err != nil {
		log.Error(ctx, "run failed", logger.String("mode", cfg.Mode), logger.Error(err))
		os.Exit(1)
	}

	if err := csvio.WriteFile(cfg.OutputPath, out); err != nil {
		log.Error(ctx, "writing feature table failed", logger.String("path", cfg.OutputPath), logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "feature table written",
		logger.String("path", cfg.OutputPath),
		logger.Int("subjects", out.NumRows()),
		logger.Int("columns", out.NumCols()),
	)

	logTopSubjects(ctx, cfg, pipe, out, log)
}

// eventSchema is the raw learning event log layout. Ingestion order is
// recorded as row_order, the authoritative chronology downstream.
func eventSchema() csvio.Schema {
	return csvio.Schema{
		{Name: learning.ColSubject, Kind: frame.KindInt},
		{Name: learning.ColContainer, Kind: frame.KindInt},
		{Name: learning.ColEventType, Kind: frame.KindString},
		{Name: learning.ColContent, Kind: frame.KindInt},
		{Name: learning.ColOutcome, Kind: frame.KindInt},
		{Name: learning.ColPriorElapsed, Kind: frame.KindFloat},
		{Name: learning.ColPriorExplained, Kind: frame.KindInt},
	}
}

func runLearning(ctx context.Context, cfg *config.Config, pipe *app.Pipeline) (*frame.Table, error) {
	events, err := csvio.ReadFile(cfg.EventLogPath, eventSchema(), csvio.WithRowOrder(learning.ColOrder))
	if err != nil {
		return nil, err
	}

	questions, lectures, closeCatalogs, err := loadCatalogs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeCatalogs()

	return pipe.RunLearning(ctx, events, questions, lectures)
}

// loadCatalogs resolves the content catalogs. A catalog database wins when
// configured; delimited files alongside it seed the database first, so a
// prebuilt db can be reused across runs.
func loadCatalogs(ctx context.Context, cfg *config.Config) (questions, lectures learning.Catalog, cleanup func(), err error) {
	questionSchema := csvio.Schema{
		{Name: catalog.ColID, Kind: frame.KindInt},
		{Name: catalog.ColPart, Kind: frame.KindInt},
		{Name: catalog.ColTags, Kind: frame.KindString},
	}
	lectureSchema := csvio.Schema{
		{Name: catalog.ColID, Kind: frame.KindInt},
		{Name: catalog.ColPart, Kind: frame.KindInt},
		{Name: catalog.ColKind, Kind: frame.KindString},
	}

	if cfg.CatalogDBPath == "" {
		q, err := memoryCatalog(cfg.QuestionCatalogPath, questionSchema)
		if err != nil {
			return nil, nil, nil, err
		}
		l, err := memoryCatalog(cfg.LectureCatalogPath, lectureSchema)
		if err != nil {
			return nil, nil, nil, err
		}
		return q, l, func() {}, nil
	}

	qdb, err := catalog.OpenSQLite(ctx, cfg.CatalogDBPath, catalog.WithTable("questions"))
	if err != nil {
		return nil, nil, nil, err
	}
	ldb, err := catalog.OpenSQLite(ctx, cfg.CatalogDBPath, catalog.WithTable("lectures"))
	if err != nil {
		qdb.Close()
		return nil, nil, nil, err
	}
	cleanup = func() {
		qdb.Close()
		ldb.Close()
	}

	if err := seedCatalog(ctx, qdb, cfg.QuestionCatalogPath, questionSchema); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	if err := seedCatalog(ctx, ldb, cfg.LectureCatalogPath, lectureSchema); err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return qdb, ldb, cleanup, nil
}

func memoryCatalog(path string, schema csvio.Schema) (*catalog.Memory, error) {
	tbl, err := csvio.ReadFile(path, schema)
	if err != nil {
		return nil, err
	}
	return catalog.FromTable(tbl)
}

func seedCatalog(ctx context.Context, store *catalog.SQLite, path string, schema csvio.Schema) error {
	if path == "" {
		return nil
	}
	tbl, err := csvio.ReadFile(path, schema)
	if err != nil {
		return err
	}
	entries, err := catalog.EntriesFromTable(tbl)
	if err != nil {
		return err
	}
	return store.Insert(ctx, entries...)
}

func runTelemetry(ctx context.Context, cfg *config.Config, pipe *app.Pipeline) (*frame.Table, error) {
	errorSchema := csvio.Schema{
		{Name: telemetry.ColSubject, Kind: frame.KindInt},
		{Name: "event_time", Kind: frame.KindString},
		{Name: telemetry.ColErrType, Kind: frame.KindInt},
	}
	qualitySchema := csvio.Schema{
		{Name: telemetry.ColSubject, Kind: frame.KindInt},
		{Name: "event_time", Kind: frame.KindString},
		{Name: telemetry.ColFirmware, Kind: frame.KindString},
	}
	for _, col := range telemetry.DefaultQualityColumns() {
		qualitySchema = append(qualitySchema, csvio.Column{Name: col, Kind: frame.KindFloat})
	}

	errorLog, err := csvio.ReadFile(cfg.ErrorLogPath, errorSchema)
	if err != nil {
		return nil, err
	}
	qualityLog, err := csvio.ReadFile(cfg.QualityLogPath, qualitySchema)
	if err != nil {
		return nil, err
	}
	return pipe.RunTelemetry(ctx, errorLog, qualityLog)
}

// logTopSubjects ranks subjects by the mode's headline rate and logs the
// leaders, a quick sanity read on an otherwise opaque batch run.
func logTopSubjects(ctx context.Context, cfg *config.Config, pipe *app.Pipeline, out *frame.Table, log logger.Logger) {
	col := "correct_rate"
	if cfg.Mode == config.ModeTelemetry {
		col = "quality_mean"
	}
	if !out.HasColumn(col) || !out.HasColumn(learning.ColSubject) {
		return
	}

	store := rank.New(rank.WithCapacityHint(out.NumRows()))
	if err := pipe.RankBy(ctx, out, learning.ColSubject, col, store); err != nil {
		log.Warn(ctx, "ranking failed", logger.Error(err))
		return
	}
	for i, e := range store.TopN(ctx, topSubjects) {
		log.Info(ctx, "top subject",
			logger.Int("rank", i+1),
			logger.String("subject", e.Subject),
			logger.String("by", col),
			logger.Float64("value", e.Value),
		)
	}
}

// startMetricsServer exposes /metrics on addr and returns its shutdown.
func startMetricsServer(ctx context.Context, addr string, log logger.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		log.Info(ctx, "starting metrics listener", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(ctx, "metrics listener failed", logger.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
