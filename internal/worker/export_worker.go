package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/events"
	"tally/internal/export"
	"tally/internal/storage"
)

// ExportWorker mirrors expense mutations from SQLite to the export target.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	target    export.Target
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, target export.Target, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		target:    target,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single expense event from AMQP.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *events.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"id", ev.ID,
		"action", ev.Action)

	if ev.Action == events.ActionDeleted {
		// The row is already gone from storage. Record the deletion as a
		// tombstone row so the export target keeps a full audit trail.
		_, err := w.target.AppendExpense(ctx, export.Row{
			Title:  fmt.Sprintf("expense #%d", ev.ID),
			Action: string(events.ActionDeleted),
		})
		if err != nil {
			return fmt.Errorf("append deletion record: %w", err)
		}
		return nil
	}

	pending, err := w.storage.GetExpenseWithOwner(ctx, ev.ID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted between the event and now. Nothing left to export.
		slog.WarnContext(ctx, "Expense no longer exists, skipping export", "id", ev.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get expense from storage: %w", err)
	}

	if err := w.exportExpense(ctx, pending, string(ev.Action)); err != nil {
		return fmt.Errorf("export expense: %w", err)
	}

	return nil
}

// ProcessPending exports any expenses that haven't been mirrored yet.
// This is a backup mechanism in case AMQP messages are lost.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending export: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for i := range pending {
		if err := w.exportExpense(ctx, &pending[i], "pending"); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense",
				"id", pending[i].Expense.ID, "error", err)
			continue
		}
	}

	return nil
}

// StartupCheck exports any backlog found at worker startup. This recovers
// from missed AMQP messages or worker downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending export for startup check: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0

	for i := range pending {
		if err := w.exportExpense(ctx, &pending[i], "pending"); err != nil {
			slog.ErrorContext(ctx, "Failed to export expense during startup",
				"id", pending[i].Expense.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup export completed",
		"total", len(pending),
		"exported", successCount,
		"errors", errorCount)

	return nil
}

func (w *ExportWorker) exportExpense(ctx context.Context, p *storage.PendingExport, action string) error {
	row := export.Row{
		OwnerEmail:  p.OwnerEmail,
		Title:       p.Expense.Title,
		Amount:      p.Expense.Amount,
		Date:        p.Expense.Date,
		Description: p.Expense.Description,
		Action:      action,
	}

	ref, err := w.target.AppendExpense(ctx, row)
	if err != nil {
		if markErr := w.storage.MarkExportError(ctx, p.Expense.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export error",
				"id", p.Expense.ID, "error", markErr)
		}
		return fmt.Errorf("append to export target: %w", err)
	}

	if err := w.storage.MarkExported(ctx, p.Expense.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"id", p.Expense.ID, "error", err)
		// Don't return error here - the export actually worked
	}

	slog.InfoContext(ctx, "Successfully exported expense",
		"id", p.Expense.ID,
		"export_ref", ref,
		"title", p.Expense.Title,
		"amount", p.Expense.Amount)

	return nil
}
