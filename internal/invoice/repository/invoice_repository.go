package repository

import (
	"context"
	"database/sql"
	"fmt"

	"radagast/internal/domain"
	"radagast/internal/errors"
)

type MySQLInvoiceRepository struct {
	db *sql.DB
}

func NewMySQLInvoiceRepository(db *sql.DB) *MySQLInvoiceRepository {
	return &MySQLInvoiceRepository{db: db}
}

func (r *MySQLInvoiceRepository) Insert(ctx context.Context, tx *sql.Tx, status string) (uint, error) {
	query := `INSERT INTO Invoices (status) VALUES (?)`

	result, err := tx.ExecContext(ctx, query, status)
	if err != nil {
		return 0, fmt.Errorf("inserting invoice: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLInvoiceRepository) InsertLine(ctx context.Context, tx *sql.Tx, line domain.InvoiceLine) (uint, error) {
	query := `INSERT INTO InvoiceLines (invoiceId, productId, quantity, unit) VALUES (?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query, line.InvoiceID, line.ProductID, line.Quantity, line.Unit)
	if err != nil {
		return 0, fmt.Errorf("inserting invoice line: %w", err)
	}

	lastInsertID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting last insert id: %w", err)
	}

	return uint(lastInsertID), nil
}

func (r *MySQLInvoiceRepository) FindByID(ctx context.Context, id uint) (*domain.Invoice, error) {
	query := `SELECT id, status, createdAt, updatedAt FROM Invoices WHERE id = ?`

	var inv domain.Invoice
	err := r.db.QueryRowContext(ctx, query, id).Scan(&inv.ID, &inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("invoice with id %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("querying invoice by id: %w", err)
	}

	linesQuery := `SELECT id, invoiceId, productId, quantity, unit FROM InvoiceLines WHERE invoiceId = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, linesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("querying invoice lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.InvoiceLine
		if err := rows.Scan(&line.ID, &line.InvoiceID, &line.ProductID, &line.Quantity, &line.Unit); err != nil {
			return nil, fmt.Errorf("scanning invoice line row: %w", err)
		}
		inv.Lines = append(inv.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invoice line rows: %w", err)
	}

	return &inv, nil
}

func (r *MySQLInvoiceRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uint, status string) error {
	query := `UPDATE Invoices SET status = ? WHERE id = ?`

	result, err := tx.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("updating invoice status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("invoice with id %d not found", id))
	}

	return nil
}
