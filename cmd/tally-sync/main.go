// Command tally-sync runs the CDC sync engine: one process per
// deployment, polling a single Tally instance's HTTP/XML endpoint on
// a per-tenant schedule and writing into the warehouse database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/withobsrvr/tally-sync-engine/internal/config"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
	"github.com/withobsrvr/tally-sync-engine/internal/orchestrator"
	"github.com/withobsrvr/tally-sync-engine/internal/progress"
	"github.com/withobsrvr/tally-sync-engine/internal/scheduler"
	"github.com/withobsrvr/tally-sync-engine/internal/telemetry"
	"github.com/withobsrvr/tally-sync-engine/internal/upstream"
	"github.com/withobsrvr/tally-sync-engine/internal/warehouse"
	"github.com/withobsrvr/tally-sync-engine/internal/watermark"
)

func main() {
	configPath := flag.String("config", "", "path to config yaml file")
	healthPort := flag.String("health-port", "8089", "port for the /health and /metrics endpoints")
	triggerCompany := flag.String("trigger-company", "", "run a single tenant once and exit, instead of starting the scheduler")
	triggerFromDate := flag.String("from-date", "", "manual from-date override (YYYYMMDD) for -trigger-company")
	triggerToDate := flag.String("to-date", "", "to-date (YYYYMMDD) for -trigger-company; defaults to today")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := telemetry.NewLogger("tally-sync-engine", cfg.Logging.Environment)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	telemetry.LogStartup(logger, telemetry.StartupConfig{
		Component:      "tally-sync-engine",
		Environment:    cfg.Logging.Environment,
		VoucherWorkers: cfg.Sync.VoucherWorkers,
		ChunkMonths:    cfg.Sync.SnapshotChunkMonths,
	})

	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	db.SetMaxOpenConns(cfg.Database.PoolSize)
	defer db.Close()

	client := upstream.NewClient(
		cfg.UpstreamBaseURL(),
		cfg.Upstream.TemplateDir,
		time.Duration(cfg.Upstream.ConnectTimeout)*time.Second,
		time.Duration(cfg.Upstream.ReadTimeout)*time.Second,
		cfg.Database.PoolSize,
		logger,
	)

	watermarks := watermark.NewStore(db)
	writer := warehouse.NewWriter(db, watermarks)
	bus := progress.NewBus(256)
	orch := orchestrator.New(client, writer, watermarks, cfg.Sync, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch.Start(ctx)
	defer orch.Shutdown()

	go drainProgressEvents(ctx, bus, logger)

	if *triggerCompany != "" {
		runOnce(ctx, orch, db, *triggerCompany, *triggerFromDate, *triggerToDate, bus, logger)
		return
	}

	registry := scheduler.NewRegistry()
	if err := loadCompaniesIntoRegistry(ctx, db, registry); err != nil {
		logger.Fatal("failed to load companies into scheduler registry", zap.Error(err))
	}

	configStore := scheduler.NewConfigStore(db)
	sched := scheduler.New(configStore, registry, func(runCtx context.Context, companyName string) error {
		company, _ := registry.Get(companyName)
		toDate := time.Now().Format("20060102")
		return orch.Run(runCtx, company, toDate, "", bus)
	}, bus, logger, time.Duration(cfg.Scheduler.MisfireGraceSeconds)*time.Second)

	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	go serveHealth(*healthPort, logger)

	logger.Info("tally sync engine running")
	waitForShutdown(logger)
}

func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, db *sql.DB, companyName, fromDate, toDate string, bus progress.Sink, logger *zap.Logger) {
	if toDate == "" {
		toDate = time.Now().Format("20060102")
	}
	company, err := loadCompanyByName(ctx, db, companyName)
	if err != nil {
		logger.Fatal("failed to load company", zap.String("company", companyName), zap.Error(err))
	}
	if err := orch.Run(ctx, company, toDate, fromDate, bus); err != nil {
		logger.Fatal("sync run failed", zap.String("company", companyName), zap.Error(err))
	}
	logger.Info("sync run complete", zap.String("company", companyName))
}

func loadCompanyByName(ctx context.Context, db *sql.DB, name string) (model.Company, error) {
	row := db.QueryRowContext(ctx, `SELECT guid, name, formal_name, company_number, starting_from, books_from, audited_upto FROM companies WHERE name = $1`, name)
	return scanCompany(row.Scan)
}

func loadCompaniesIntoRegistry(ctx context.Context, db *sql.DB, registry *scheduler.Registry) error {
	rows, err := db.QueryContext(ctx, `SELECT guid, name, formal_name, company_number, starting_from, books_from, audited_upto FROM companies`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCompany(rows.Scan)
		if err != nil {
			return err
		}
		registry.Put(c)
	}
	return rows.Err()
}

// scanCompany scans one companies row via scan (either *sql.Row.Scan or
// *sql.Rows.Scan), routing the nullable date columns through
// sql.NullTime since database/sql cannot scan directly into **time.Time.
func scanCompany(scan func(dest ...any) error) (model.Company, error) {
	var c model.Company
	var startingFrom, booksFrom, auditedUpto sql.NullTime
	if err := scan(&c.GUID, &c.Name, &c.FormalName, &c.CompanyNumber, &startingFrom, &booksFrom, &auditedUpto); err != nil {
		return model.Company{}, err
	}
	if startingFrom.Valid {
		c.StartingFrom = &startingFrom.Time
	}
	if booksFrom.Valid {
		c.BooksFrom = &booksFrom.Time
	}
	if auditedUpto.Valid {
		c.AuditedUpto = &auditedUpto.Time
	}
	return c, nil
}

// drainProgressEvents is the Progress Bus's single consumer: it mirrors
// every event into the structured logger. A UI or external sink would
// replace this loop with its own consumer reading bus.Events().
func drainProgressEvents(ctx context.Context, bus *progress.Bus, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-bus.Events():
			switch evt.Kind {
			case progress.EventLog:
				logger.Info("progress", zap.String("company", evt.CompanyName), zap.String("level", string(evt.Level)), zap.String("text", evt.Text))
			case progress.EventStatus:
				logger.Info("status change", zap.String("company", evt.CompanyName), zap.String("status", string(evt.Status)))
			case progress.EventDone:
				logger.Info("run done", zap.String("company", evt.CompanyName), zap.Bool("success", evt.Success))
			case progress.EventProgress:
				logger.Debug("progress", zap.String("company", evt.CompanyName), zap.Float64("percent", evt.Percent), zap.String("label", evt.Label))
			}
		}
	}
}

func serveHealth(port string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info("starting health and metrics server", zap.String("address", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("health server stopped", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown signal received")
}
