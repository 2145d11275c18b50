package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	_ "github.com/go-sql-driver/mysql"
)

// SetupTestDB opens the integration-test database. Tests calling this are
// skipped when no MySQL is reachable, so the unit suites stay runnable
// anywhere.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "root:@tcp(localhost:3306)/radagast_test?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"BatchAllocations", "Reservations", "InvoiceLines", "Invoices", "Batches", "Warehouses"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}

func SetupTestTables(t *testing.T, db *sql.DB) {
	createWarehousesTable := `
	CREATE TABLE IF NOT EXISTS Warehouses (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		code VARCHAR(20) NOT NULL UNIQUE,
		name VARCHAR(100) NOT NULL,
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

	createBatchesTable := `
	CREATE TABLE IF NOT EXISTS Batches (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		batchNumber VARCHAR(50) NOT NULL,
		productId INT UNSIGNED NOT NULL,
		warehouseId INT UNSIGNED NOT NULL,
		channel VARCHAR(10) NOT NULL,
		origin VARCHAR(255) NOT NULL DEFAULT '',
		totalQty INT NOT NULL,
		reservedQty INT NOT NULL DEFAULT 0,
		receivedAt DATETIME NOT NULL,
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_batch (warehouseId, productId, batchNumber),
		INDEX idx_product_available (productId, totalQty, reservedQty)
	)`

	createInvoicesTable := `
	CREATE TABLE IF NOT EXISTS Invoices (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		status VARCHAR(30) NOT NULL DEFAULT 'PENDING_CONFIRMATION',
		createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	)`

	createInvoiceLinesTable := `
	CREATE TABLE IF NOT EXISTS InvoiceLines (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoiceId INT UNSIGNED NOT NULL,
		productId INT UNSIGNED NOT NULL,
		quantity INT NOT NULL,
		unit VARCHAR(20) NOT NULL DEFAULT '',
		INDEX idx_invoice (invoiceId)
	)`

	createReservationsTable := `
	CREATE TABLE IF NOT EXISTS Reservations (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		invoiceId INT UNSIGNED NOT NULL UNIQUE,
		state VARCHAR(30) NOT NULL,
		createdAt DATETIME NOT NULL,
		expiresAt DATETIME NOT NULL,
		sweepAttempts INT NOT NULL DEFAULT 0,
		INDEX idx_expiry (state, expiresAt)
	)`

	createBatchAllocationsTable := `
	CREATE TABLE IF NOT EXISTS BatchAllocations (
		id INT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		reservationId INT UNSIGNED NOT NULL,
		invoiceLineId INT UNSIGNED NOT NULL,
		batchId INT UNSIGNED NOT NULL,
		batchNumber VARCHAR(50) NOT NULL,
		warehouseId INT UNSIGNED NOT NULL,
		channel VARCHAR(10) NOT NULL,
		origin VARCHAR(255) NOT NULL DEFAULT '',
		quantity INT NOT NULL,
		INDEX idx_reservation (reservationId)
	)`

	for _, ddl := range []string{
		createWarehousesTable,
		createBatchesTable,
		createInvoicesTable,
		createInvoiceLinesTable,
		createReservationsTable,
		createBatchAllocationsTable,
	} {
		if _, err := db.Exec(ddl); err != nil {
			t.Fatalf("failed to create test table: %v", err)
		}
	}
}
