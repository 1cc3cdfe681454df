// Package app wires configuration, roster ingestion, the engine and the
// run outputs into a single scheduling pass.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"scheduler/internal/cache"
	"scheduler/internal/catalog"
	"scheduler/internal/config"
	"scheduler/internal/engine"
	"scheduler/internal/metrics"
	"scheduler/internal/notify"
	"scheduler/internal/report"
	"scheduler/internal/roster"
	"scheduler/internal/store"
)

// DryRunID is reported as the run id when nothing is persisted.
const DryRunID = "dry-run"

// ReportSender delivers a finished run.
type ReportSender interface {
	SendReport(ctx context.Context, summary, filename string, data []byte) error
}

// Options tune a single invocation.
type Options struct {
	// DryRun skips the store, cache, backups and notifications.
	DryRun bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Outcome summarizes a completed pass.
type Outcome struct {
	RunID     string
	Result    *engine.Result
	Workbook  string
	RowErrors error
}

// OK reports whether every row loaded and every entity was placed.
func (o *Outcome) OK() bool {
	return o.RowErrors == nil && o.Result.OK()
}

type App struct {
	cfg      *config.Config
	opts     Options
	base     zerolog.Logger
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	db       *store.DB
	rdb      *redis.Client
	cache    *cache.ResultCache
	notifier ReportSender
	source   roster.Source
}

// New opens the outputs named in cfg. In dry-run mode only the workbook
// and metrics are produced.
func New(ctx context.Context, cfg *config.Config, opts Options, logger zerolog.Logger) (*App, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	a := &App{
		cfg:     cfg,
		opts:    opts,
		base:    logger,
		logger:  logger.With().Str("component", "app").Logger(),
		metrics: metrics.New(cfg.Metrics.Namespace),
	}

	src, err := newSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.source = src

	if opts.DryRun {
		return a, nil
	}

	storeLogger := logger.With().Str("component", "store").Logger()
	a.db, err = store.NewDB(cfg.Database.Path, &storeLogger)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Address != "" {
		a.rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.cache = cache.NewResultCache(a.rdb, cfg.CacheTTL())
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			a.Close()
			return nil, err
		}
		bot.Debug = cfg.Telegram.Debug
		a.notifier = notify.NewTelegram(bot, cfg.Telegram.ChatIDs, notify.DefaultRetryConfig(), logger)
	}
	return a, nil
}

func newSource(ctx context.Context, cfg *config.Config) (roster.Source, error) {
	switch cfg.Input.Kind {
	case config.InputCSV:
		return roster.CSVSource{Path: cfg.Input.Path}, nil
	case config.InputXLSX:
		return roster.XLSXSource{Path: cfg.Input.Path, Sheet: cfg.Input.Sheet}, nil
	case config.InputSheets:
		return roster.NewSheetsSource(ctx, cfg.Input.CredentialsFile, cfg.Input.SpreadsheetID, cfg.Input.Ranges)
	default:
		return nil, fmt.Errorf("unknown input kind %q", cfg.Input.Kind)
	}
}

// SetNotifier replaces the Telegram notifier.
func (a *App) SetNotifier(n ReportSender) {
	a.notifier = n
}

// SetSource replaces the configured roster source.
func (a *App) SetSource(src roster.Source) {
	a.source = src
}

// Metrics exposes the collectors of this app.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Close releases the store and Redis connections.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("close database")
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// Run loads the roster, schedules it and publishes the outcome. A
// double-booking aborts the pass with an error; unplaced entities and bad
// rows are reported in the Outcome.
func (a *App) Run(ctx context.Context) (*Outcome, error) {
	now := a.opts.Now()

	cat, err := catalog.Load(a.cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	if err := checkSchools(cat, a.cfg.Schools); err != nil {
		return nil, err
	}

	builder := roster.NewBuilder(cat, a.cfg.GradeSchools())
	var rowErrs *roster.RowsError
	if err := roster.Load(ctx, a.source, builder, a.base.With().Str("component", "roster").Logger()); err != nil && !errors.As(err, &rowErrs) {
		return nil, err
	}

	start, end := a.cfg.WorkerHours()
	eng, err := engine.New(engine.Settings{
		Start:       start,
		End:         end,
		Buffer:      a.cfg.Buffer(),
		Granularity: a.cfg.Worker.GranularityMinutes,
	}, a.base)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	res, err := eng.ScheduleAll(builder.Students())
	if err != nil {
		a.logger.Error().Err(err).Str("week", res.Week).Msg("scheduling aborted")
		return nil, err
	}
	a.metrics.ObserveResult(res, eng.BookedMinutes(), time.Since(began), now)

	out := &Outcome{RunID: DryRunID, Result: res}
	if rowErrs != nil {
		out.RowErrors = rowErrs
	}

	data, err := report.Bytes(res)
	if err != nil {
		return nil, err
	}
	out.Workbook, err = a.writeWorkbook(report.Filename(now), data)
	if err != nil {
		return nil, err
	}

	if a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Error().Err(err).Msg("write metrics textfile")
		}
	}

	if a.opts.DryRun {
		return out, nil
	}

	run, err := a.db.SaveRun(ctx, res, now)
	if err != nil {
		return nil, err
	}
	out.RunID = run.ID

	a.housekeeping(ctx, now)

	if err := a.cache.Save(ctx, cache.NewSnapshot(run.ID, now, res)); err != nil {
		a.logger.Error().Err(err).Msg("cache snapshot")
	}

	if a.notifier != nil {
		filename := filepath.Base(out.Workbook)
		if err := a.notifier.SendReport(ctx, notify.Summary(run.ID, res), filename, data); err != nil {
			a.logger.Error().Err(err).Msg("send report")
		}
	}
	return out, nil
}

// checkSchools rejects configured schools the catalog has no table for.
func checkSchools(cat *catalog.Catalog, schools map[string][]int) error {
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(schools)) {
		if !cat.HasSchool(name) {
			errs = append(errs, fmt.Errorf("schools: %w: %q", catalog.ErrUnknownSchool, name))
		}
	}
	return errors.Join(errs...)
}

func (a *App) writeWorkbook(name string, data []byte) (string, error) {
	if err := os.MkdirAll(a.cfg.Output.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(a.cfg.Output.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	a.logger.Info().Str("path", path).Msg("workbook written")
	return path, nil
}

// housekeeping prunes old runs and takes a backup; failures are logged only.
func (a *App) housekeeping(ctx context.Context, now time.Time) {
	if days := a.cfg.Database.RetentionDays; days > 0 {
		n, err := a.db.DeleteRunsBefore(ctx, now.AddDate(0, 0, -days))
		if err != nil {
			a.logger.Error().Err(err).Msg("prune runs")
		} else if n > 0 {
			a.logger.Info().Int64("deleted", n).Msg("old runs pruned")
		}
	}

	if !a.cfg.Backup.Enabled {
		return
	}
	if _, err := a.db.Backup(ctx, a.cfg.Backup.Path, now); err != nil {
		a.logger.Error().Err(err).Msg("backup failed")
		return
	}
	if _, err := a.db.CleanupBackups(a.cfg.Backup.Path, a.cfg.Backup.RetentionDays, now); err != nil {
		a.logger.Error().Err(err).Msg("cleanup backups")
	}
}
