package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/withobsrvr/tally-sync-engine/internal/config"
	"github.com/withobsrvr/tally-sync-engine/internal/model"
	"github.com/withobsrvr/tally-sync-engine/internal/progress"
	"github.com/withobsrvr/tally-sync-engine/internal/upstream"
	"github.com/withobsrvr/tally-sync-engine/internal/warehouse"
	"github.com/withobsrvr/tally-sync-engine/internal/watermark"
	"github.com/withobsrvr/tally-sync-engine/internal/xmlparse"
)

const dateLayout = "20060102"

// Orchestrator wires the upstream client, parsers, warehouse writer,
// and watermark store into one per-tenant run.
type Orchestrator struct {
	client     *upstream.Client
	writer     *warehouse.Writer
	watermarks *watermark.Store
	cfg        config.SyncConfig
	logger     *zap.Logger
	chargePats []regexp.Regexp
	pool       *Pool
}

// New builds an Orchestrator. The pool launches with cfg.VoucherWorkers
// workers (default 8) and is shut down by the caller via Shutdown.
func New(client *upstream.Client, writer *warehouse.Writer, watermarks *watermark.Store, cfg config.SyncConfig, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		client:     client,
		writer:     writer,
		watermarks: watermarks,
		cfg:        cfg,
		logger:     logger,
		chargePats: xmlparse.CompilePatterns(cfg.ChargeBucketPatterns),
	}
	o.pool = NewPool(PoolConfig{Workers: cfg.VoucherWorkers}, o.runTask, logger)
	return o
}

// Start launches the worker pool; call before Run.
func (o *Orchestrator) Start(ctx context.Context) {
	o.pool.Start(ctx)
}

// Shutdown drains the worker pool.
func (o *Orchestrator) Shutdown() {
	o.pool.Shutdown()
}

// Run executes a full sync pass for one tenant: ledgers, trial
// balance, then all eight voucher kinds fanned out across the pool.
// manualFromDate overrides the company's starting_from when non-empty.
func (o *Orchestrator) Run(ctx context.Context, company model.Company, toDate string, manualFromDate string, sink progress.Sink) error {
	fromDate := o.resolveFromDate(company, manualFromDate)
	companyName := strings.TrimSpace(company.Name)

	sink.Status(companyName, progress.StatusRunning)
	sink.Log(companyName, progress.LevelInfo, fmt.Sprintf("starting sync %s -> %s", fromDate, toDate))

	o.syncLedgers(ctx, companyName, sink)
	o.syncTrialBalance(ctx, companyName, fromDate, toDate, sink)

	o.logger.Info("launching voucher syncs",
		zap.String("company", companyName),
		zap.Int("workers", o.pool.WorkerCount()),
		zap.Int("voucher_kinds", len(voucherRegistry)))

	for _, vc := range voucherRegistry {
		task := SyncTask{CompanyName: companyName, VoucherKind: vc.VoucherType, FromDate: fromDate, ToDate: toDate}
		if err := o.pool.Submit(ctx, task); err != nil {
			return errors.Wrapf(err, "submitting voucher task %s", vc.VoucherType)
		}
	}

	remaining := len(voucherRegistry)
	var firstErr error
	for remaining > 0 {
		select {
		case res := <-o.pool.Results():
			remaining--
			if res.Err != nil {
				sink.Log(companyName, progress.LevelError, fmt.Sprintf("%s failed: %v", res.Task.VoucherKind, res.Err))
				if firstErr == nil {
					firstErr = res.Err
				}
				continue
			}
			if summary, ok := res.Summary.(model.SyncRunSummary); ok {
				sink.Progress(companyName, float64(len(voucherRegistry)-remaining)/float64(len(voucherRegistry))*100, res.Task.VoucherKind)
				sink.Log(companyName, progress.LevelInfo, fmt.Sprintf("%s done: %d records", res.Task.VoucherKind, summary.RecordsSynced))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	sink.Status(companyName, progress.StatusIdle)
	sink.Done(companyName, firstErr == nil)
	return firstErr
}

// runTask is the Pool's TaskFunc; it dispatches a single voucher kind
// through the CDC-or-snapshot state machine.
func (o *Orchestrator) runTask(ctx context.Context, task SyncTask) TaskResult {
	vc, ok := voucherKindByType(task.VoucherKind)
	if !ok {
		return TaskResult{Err: errors.Errorf("unknown voucher kind %q", task.VoucherKind)}
	}
	summary, err := o.syncVoucherKind(ctx, task.CompanyName, task.FromDate, task.ToDate, vc)
	return TaskResult{Summary: summary, Err: err}
}

func voucherKindByType(voucherType string) (voucherKindConfig, bool) {
	for _, vc := range voucherRegistry {
		if vc.VoucherType == voucherType {
			return vc, true
		}
	}
	return voucherKindConfig{}, false
}

// resolveFromDate mirrors _resolve_from_date: prefer the company's
// starting_from, fall back to the configured default and warn.
func (o *Orchestrator) resolveFromDate(company model.Company, manualFromDate string) string {
	if manualFromDate != "" {
		return manualFromDate
	}
	if company.StartingFrom != nil {
		return company.StartingFrom.Format(dateLayout)
	}
	o.logger.Warn("no valid starting_from for company, falling back to configured default",
		zap.String("company", company.Name),
		zap.String("fallback", o.cfg.DefaultSyncFrom))
	return o.cfg.DefaultSyncFrom
}

func (o *Orchestrator) syncLedgers(ctx context.Context, companyName string, sink progress.Sink) {
	xml, err := o.client.FetchSnapshot(ctx, upstream.KindLedgers, companyName, "", "")
	if err != nil {
		o.logger.Error("fetching ledgers failed", zap.String("company", companyName), zap.Error(err))
		sink.Log(companyName, progress.LevelError, fmt.Sprintf("ledger fetch failed: %v", err))
		return
	}
	if xml == "" {
		o.logger.Warn("no ledger data returned", zap.String("company", companyName))
		return
	}

	root, err := xmlparse.ParseDocument(xml)
	if err != nil {
		o.logger.Error("parsing ledgers failed", zap.String("company", companyName), zap.Error(err))
		return
	}

	rows := xmlparse.ParseLedgers(root, companyName)
	if len(rows) == 0 {
		o.logger.Warn("no ledger rows parsed", zap.String("company", companyName))
		return
	}

	if err := o.writer.UpsertLedgers(ctx, rows); err != nil {
		o.logger.Error("upserting ledgers failed", zap.String("company", companyName), zap.Error(err))
		return
	}

	maxAlterID := maxLedgerAlterID(rows)
	if err := o.watermarks.Update(ctx, companyName, "ledger", maxAlterID, nil); err != nil {
		o.logger.Error("advancing ledger watermark failed", zap.String("company", companyName), zap.Error(err))
		return
	}
	o.logger.Info("ledgers synced", zap.String("company", companyName), zap.Int("rows", len(rows)), zap.Int64("max_alter_id", maxAlterID))
}

func (o *Orchestrator) syncTrialBalance(ctx context.Context, companyName, fromDate, toDate string, sink progress.Sink) {
	xml, err := o.client.FetchSnapshot(ctx, upstream.KindTrialBalance, companyName, fromDate, toDate)
	if err != nil {
		o.logger.Error("fetching trial balance failed", zap.String("company", companyName), zap.Error(err))
		sink.Log(companyName, progress.LevelError, fmt.Sprintf("trial balance fetch failed: %v", err))
		return
	}
	if xml == "" {
		o.logger.Warn("no trial balance data returned", zap.String("company", companyName))
		return
	}

	root, err := xmlparse.ParseDocument(xml)
	if err != nil {
		o.logger.Error("parsing trial balance failed", zap.String("company", companyName), zap.Error(err))
		return
	}

	from, _ := time.Parse(dateLayout, fromDate)
	to, _ := time.Parse(dateLayout, toDate)
	rows := xmlparse.ParseTrialBalance(root, companyName, from, to)
	if len(rows) == 0 {
		o.logger.Warn("no trial balance rows parsed", zap.String("company", companyName))
		return
	}

	if err := o.writer.UpsertTrialBalance(ctx, rows); err != nil {
		o.logger.Error("upserting trial balance failed", zap.String("company", companyName), zap.Error(err))
		return
	}

	maxAlterID := int64(0)
	for _, r := range rows {
		if r.AlterID > maxAlterID {
			maxAlterID = r.AlterID
		}
	}
	if err := o.watermarks.Update(ctx, companyName, "trial_balance", maxAlterID, nil); err != nil {
		o.logger.Error("advancing trial balance watermark failed", zap.String("company", companyName), zap.Error(err))
		return
	}
	o.logger.Info("trial balance synced", zap.String("company", companyName), zap.Int("rows", len(rows)))
}

// syncVoucherKind runs the CDC-or-snapshot state machine for one
// voucher kind, mirroring _sync_voucher. fromDate/toDate are only
// consulted by the snapshot branch.
func (o *Orchestrator) syncVoucherKind(ctx context.Context, companyName, fromDate, toDate string, vc voucherKindConfig) (model.SyncRunSummary, error) {
	summary := model.SyncRunSummary{
		EntityType:   vc.VoucherType,
		CompanyName:  companyName,
		LastSyncTime: time.Now(),
		Status:       model.SyncStatusInProgress,
	}

	state, err := o.watermarks.Get(ctx, companyName, vc.VoucherType)
	if err != nil && !errors.Is(err, watermark.ErrNotFound) {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, errors.Wrapf(err, "reading watermark for %s", vc.VoucherType)
	}

	if state.IsInitialDone {
		summary.Mode = model.SyncModeIncremental
		return o.syncVoucherCDC(ctx, companyName, vc, state, summary)
	}

	summary.Mode = model.SyncModeFull
	return o.syncVoucherSnapshot(ctx, companyName, fromDate, toDate, vc, state, summary)
}

func (o *Orchestrator) syncVoucherCDC(ctx context.Context, companyName string, vc voucherKindConfig, state model.Watermark, summary model.SyncRunSummary) (model.SyncRunSummary, error) {
	xml, err := o.client.FetchCDC(ctx, vc.Kind, companyName, state.LastAlterID)
	if err != nil {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, errors.Wrapf(err, "fetching CDC for %s", vc.VoucherType)
	}
	if xml == "" {
		summary.Status = model.SyncStatusSuccess
		return summary, nil
	}

	root, err := xmlparse.ParseDocument(xml)
	if err != nil {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, errors.Wrapf(err, "parsing CDC response for %s", vc.VoucherType)
	}

	maxAlterID, recordsSynced, err := o.upsertVoucherRows(ctx, root, companyName, vc)
	if err != nil {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, err
	}
	if recordsSynced == 0 {
		summary.Status = model.SyncStatusSuccess
		return summary, nil
	}

	done := true
	if err := o.watermarks.Update(ctx, companyName, vc.VoucherType, maxAlterID, &done); err != nil {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, errors.Wrapf(err, "advancing watermark for %s", vc.VoucherType)
	}

	summary.Status = model.SyncStatusSuccess
	summary.RecordsSynced = recordsSynced
	summary.LastMaxAlterID = maxAlterID
	return summary, nil
}

func (o *Orchestrator) syncVoucherSnapshot(ctx context.Context, companyName, fromDate, toDate string, vc voucherKindConfig, state model.Watermark, summary model.SyncRunSummary) (model.SyncRunSummary, error) {
	if fromDate == "" {
		fromDate = o.cfg.DefaultSyncFrom
	}
	if toDate == "" {
		toDate = time.Now().Format(dateLayout)
	}

	from, err := time.Parse(dateLayout, fromDate)
	if err != nil {
		return summary, errors.Wrap(err, "parsing snapshot from date")
	}
	to, err := time.Parse(dateLayout, toDate)
	if err != nil {
		return summary, errors.Wrap(err, "parsing snapshot to date")
	}

	chunks := GenerateChunks(from, to, o.cfg.SnapshotChunkMonths)
	totalRows := 0
	chunksDone := 0
	var maxAlterID int64

	for _, chunk := range chunks {
		month := chunk.EndMonth
		if state.LastSyncedMonth != "" && month <= state.LastSyncedMonth {
			continue
		}

		chunkFrom := chunk.From.Format(dateLayout)
		chunkTo := chunk.To.Format(dateLayout)

		xml, err := o.client.FetchSnapshot(ctx, vc.Kind, companyName, chunkFrom, chunkTo)
		if err != nil {
			summary.Status = model.SyncStatusFailed
			summary.ErrorMessage = err.Error()
			return summary, errors.Wrapf(err, "fetching snapshot chunk %s for %s", month, vc.VoucherType)
		}
		if xml == "" {
			if err := o.watermarks.AdvanceMonth(ctx, companyName, vc.VoucherType, month); err != nil {
				return summary, errors.Wrapf(err, "advancing empty chunk %s for %s", month, vc.VoucherType)
			}
			chunksDone++
			continue
		}

		root, err := xmlparse.ParseDocument(xml)
		if err != nil {
			summary.Status = model.SyncStatusFailed
			summary.ErrorMessage = err.Error()
			return summary, errors.Wrapf(err, "parsing snapshot chunk %s for %s", month, vc.VoucherType)
		}

		rowAlterID, rowCount, rows, err := o.parseVoucherRows(root, companyName, vc)
		if err != nil {
			return summary, err
		}
		if rowCount == 0 {
			if err := o.watermarks.AdvanceMonth(ctx, companyName, vc.VoucherType, month); err != nil {
				return summary, errors.Wrapf(err, "advancing zero-row chunk %s for %s", month, vc.VoucherType)
			}
			chunksDone++
			continue
		}

		if err := o.writer.UpsertAndAdvanceMonth(ctx, companyName, vc.VoucherType, rows, month); err != nil {
			summary.Status = model.SyncStatusFailed
			summary.ErrorMessage = err.Error()
			return summary, errors.Wrapf(err, "committing chunk %s for %s", month, vc.VoucherType)
		}

		if rowAlterID > maxAlterID {
			maxAlterID = rowAlterID
		}
		totalRows += rowCount
		chunksDone++
	}

	if err := o.watermarks.MarkInitialDone(ctx, companyName, vc.VoucherType, maxAlterID, toDate[:6]); err != nil {
		summary.Status = model.SyncStatusFailed
		summary.ErrorMessage = err.Error()
		return summary, errors.Wrapf(err, "marking initial snapshot done for %s", vc.VoucherType)
	}

	summary.Status = model.SyncStatusSuccess
	summary.RecordsSynced = totalRows
	summary.LastMaxAlterID = maxAlterID
	return summary, nil
}

// upsertVoucherRows parses a CDC response and upserts it directly
// (no chunk watermark involved).
func (o *Orchestrator) upsertVoucherRows(ctx context.Context, root *xmlparse.Node, companyName string, vc voucherKindConfig) (maxAlterID int64, count int, err error) {
	maxAlterID, count, rows, err := o.parseVoucherRows(root, companyName, vc)
	if err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	switch typed := rows.(type) {
	case []model.InventoryVoucher:
		err = o.writer.UpsertInventoryVouchers(ctx, typed)
	case []model.LedgerVoucher:
		err = o.writer.UpsertLedgerVouchers(ctx, typed)
	}
	if err != nil {
		return 0, 0, errors.Wrapf(err, "upserting %s rows", vc.VoucherType)
	}
	return maxAlterID, count, nil
}

// parseVoucherRows dispatches to the inventory or ledger parser
// depending on the kind's row shape, applying the voucher-level
// currency propagation and charge-bucket classification either parser
// performs internally.
func (o *Orchestrator) parseVoucherRows(root *xmlparse.Node, companyName string, vc voucherKindConfig) (maxAlterID int64, count int, rows any, err error) {
	switch vc.RowKind {
	case rowKindInventory:
		parsed := xmlparse.ParseInventoryVouchers(root, companyName, vc.VoucherType, xmlparse.ParseInventoryVoucherOptions{
			ChargeBucketPatterns: o.chargePats,
		})
		return maxInventoryAlterID(parsed), len(parsed), parsed, nil
	case rowKindLedger:
		parsed := xmlparse.ParseLedgerVouchers(root, companyName, vc.VoucherType)
		return maxLedgerVoucherAlterID(parsed), len(parsed), parsed, nil
	default:
		return 0, 0, nil, errors.Errorf("unknown row kind %q", vc.RowKind)
	}
}

func maxLedgerAlterID(rows []model.Ledger) int64 {
	var max int64
	for _, r := range rows {
		if r.AlterID > max {
			max = r.AlterID
		}
	}
	return max
}

func maxInventoryAlterID(rows []model.InventoryVoucher) int64 {
	var max int64
	for _, r := range rows {
		if r.AlterID > max {
			max = r.AlterID
		}
	}
	return max
}

func maxLedgerVoucherAlterID(rows []model.LedgerVoucher) int64 {
	var max int64
	for _, r := range rows {
		if r.AlterID > max {
			max = r.AlterID
		}
	}
	return max
}
