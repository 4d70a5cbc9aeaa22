package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator checks that the migrated schema matches what the store expects
// ARCHITECTURAL DISCOVERY: Separate validation component enables deployment
// verification without coupling to the migration tool
type SchemaValidator struct {
	db       *sql.DB
	postgres bool
}

// NewSchemaValidator creates a validator for the given driver
func NewSchemaValidator(db *sql.DB, driver string) *SchemaValidator {
	return &SchemaValidator{db: db, postgres: driver == DriverPostgres}
}

// Validate runs every check
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateIndexes(); err != nil {
		return err
	}
	return v.ValidateConstraints()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"users":            "Pricing profiles",
		"requests":         "Teaching requests",
		"meetings":         "Meeting records",
		"class_slots":      "Class slots and room ids",
		"notifications":    "Notification inbox",
		"goose_db_version": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}
	return nil
}

// ValidateIndexes verifies that lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_requests_to_user":        "Incoming request listing",
		"idx_requests_from_user":      "Sent request listing",
		"idx_notifications_user_time": "Notification inbox ordering",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.indexExists(index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}
	return nil
}

// ValidateConstraints verifies that the closed sets are enforced by the database.
// Probes run inside a transaction that is always rolled back.
func (v *SchemaValidator) ValidateConstraints() error {
	tx, err := v.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	probe := rebind(v.postgres, `
		INSERT INTO requests (id, from_user, to_user, type, classes, proposed_slots, status, payment_status, created_at, updated_at)
		VALUES ('schema-probe', 'a', 'b', 'exchange', 5, '[]', 'pending', 'not_applicable', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`)
	if _, err := tx.Exec(probe); err == nil {
		return fmt.Errorf("check constraint not enforced: requests.classes")
	}
	return nil
}

func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if v.postgres {
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1"
	}
	var count int
	if err := v.db.QueryRow(query, tableName).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) indexExists(indexName string) (bool, error) {
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?"
	if v.postgres {
		query = "SELECT COUNT(*) FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1"
	}
	var count int
	if err := v.db.QueryRow(query, indexName).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
