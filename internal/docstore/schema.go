package docstore

import (
	"context"
	"fmt"
	"strings"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
	   collection TEXT NOT NULL,
	   id TEXT NOT NULL,
	   fields JSONB NOT NULL DEFAULT '{}'::jsonb,
	   "createdAt" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	   "updatedAt" TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	   PRIMARY KEY (collection, id)
	 )`,
	`CREATE INDEX IF NOT EXISTS documents_uid_idx
	   ON documents (collection, (fields ->> 'uid'))`,
	`CREATE INDEX IF NOT EXISTS documents_session_idx
	   ON documents (collection, (fields ->> 'session_id'))`,
	`CREATE INDEX IF NOT EXISTS documents_created_idx
	   ON documents (collection, (fields ->> 'created_at') COLLATE "C")`,
}

// EnsureSchema creates the documents table and its indexes, then validates the result.
func EnsureSchema(ctx context.Context, db dbQuerier) error {
	if db == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return ValidateSchema(ctx, db)
}

func ValidateSchema(ctx context.Context, db dbQuerier) error {
	if db == nil {
		return fmt.Errorf("database pool is nil")
	}
	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "documents", column: "collection"},
		{table: "documents", column: "id"},
		{table: "documents", column: "fields"},
		{table: "documents", column: "updatedAt"},
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, db, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf("required column %s.%s is missing", item.table, item.column)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db dbQuerier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := db.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
