package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/site-invoices/internal/application/port"
	"github.com/garyjia/site-invoices/internal/domain/entity"
	"github.com/garyjia/site-invoices/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `
	id, vendor_name, invoice_number, amount, tax_amount, total_amount,
	currency, issue_date, due_date, project_id, project_name, category,
	status, notes, file_uri, thumbnail_uri, created_at, updated_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new invoice row keyed by the record's identity value
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	args := append([]interface{}{invoice.ID.Value()}, invoiceValues(invoice)...)
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create invoice", zap.String("id", invoice.ID.Value()), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by its confirmed identity value
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	inv, err := scanInvoice(sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrInvoiceNotFound
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// List returns every invoice that has not been superseded, newest first
func (r *InvoiceRepository) List(ctx context.Context) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE superseded_by = ''
		ORDER BY created_at DESC, id DESC`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Update overwrites every column except id. Superseded rows are treated as
// absent.
func (r *InvoiceRepository) Update(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		UPDATE invoices SET
			vendor_name = ?, invoice_number = ?, amount = ?, tax_amount = ?,
			total_amount = ?, currency = ?, issue_date = ?, due_date = ?,
			project_id = ?, project_name = ?, category = ?, status = ?,
			notes = ?, file_uri = ?, thumbnail_uri = ?, created_at = ?,
			updated_at = ?
		WHERE id = ? AND superseded_by = ''
	`

	args := append(invoiceValues(invoice), invoice.ID.Value())
	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.String("id", invoice.ID.Value()), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entity.ErrInvoiceNotFound
	}
	return nil
}

// Supersede marks the row id as replaced by replacementID. It returns
// entity.ErrInvoiceNotFound when no current row matches, including a row
// that was already superseded.
func (r *InvoiceRepository) Supersede(ctx context.Context, id, replacementID string) error {
	query := `UPDATE invoices SET superseded_by = ? WHERE id = ? AND superseded_by = ''`

	result, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query, replacementID, id)
	if err != nil {
		r.logger.Error("Failed to supersede invoice",
			zap.String("id", id),
			zap.String("replacement_id", replacementID),
			zap.Error(err))
		return fmt.Errorf("failed to supersede invoice: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return entity.ErrInvoiceNotFound
	}
	return nil
}

// Delete removes an invoice row
func (r *InvoiceRepository) Delete(ctx context.Context, id string) error {
	if _, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete invoice", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

// invoiceValues lists the column values after id, in invoiceColumns order
func invoiceValues(inv *entity.Invoice) []interface{} {
	var total sql.NullString
	if inv.TotalAmount.Valid {
		total = sql.NullString{String: inv.TotalAmount.Decimal.String(), Valid: true}
	}

	var due sql.NullString
	if inv.DueDate != nil {
		due = sql.NullString{String: formatTime(*inv.DueDate), Valid: true}
	}

	return []interface{}{
		inv.VendorName,
		inv.InvoiceNumber,
		inv.Amount.String(),
		inv.TaxAmount.String(),
		total,
		inv.Currency,
		formatTime(inv.IssueDate),
		due,
		inv.ProjectID,
		inv.ProjectName,
		string(inv.Category),
		string(inv.Status),
		inv.Notes,
		inv.FileURI,
		inv.ThumbnailURI,
		formatTime(inv.CreatedAt),
		formatTime(inv.UpdatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv                     entity.Invoice
		id, amount, tax         string
		total, due              sql.NullString
		issue, created, updated string
		category, status        string
	)

	err := row.Scan(
		&id,
		&inv.VendorName,
		&inv.InvoiceNumber,
		&amount,
		&tax,
		&total,
		&inv.Currency,
		&issue,
		&due,
		&inv.ProjectID,
		&inv.ProjectName,
		&category,
		&status,
		&inv.Notes,
		&inv.FileURI,
		&inv.ThumbnailURI,
		&created,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	inv.ID = entity.ConfirmedID(id)
	inv.Category = entity.Category(category)
	inv.Status = entity.Status(status)

	if inv.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invoice %s: amount: %w", id, err)
	}
	if inv.TaxAmount, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("invoice %s: tax_amount: %w", id, err)
	}
	if total.Valid {
		d, err := decimal.NewFromString(total.String)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: total_amount: %w", id, err)
		}
		inv.TotalAmount = decimal.NewNullDecimal(d)
	}

	if inv.IssueDate, err = parseTime(issue); err != nil {
		return nil, fmt.Errorf("invoice %s: issue_date: %w", id, err)
	}
	if due.Valid {
		t, err := parseTime(due.String)
		if err != nil {
			return nil, fmt.Errorf("invoice %s: due_date: %w", id, err)
		}
		inv.DueDate = &t
	}
	if inv.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("invoice %s: created_at: %w", id, err)
	}
	if inv.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("invoice %s: updated_at: %w", id, err)
	}

	return &inv, nil
}

// Fixed-width UTC text keeps lexical order equal to chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
