package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

const migrationsTableName = "schema_migrations"

// ensureMigrationTable cria schema_migrations quando necessário
func ensureMigrationTable(ctx context.Context, q Querier) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, migrationsTableName)

	if _, err := q.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}
	return nil
}

// MigrationAppliedAt informa quando a migração foi aplicada.
// Não cria a tabela: as ferramentas de diagnóstico não alteram o esquema.
func MigrationAppliedAt(ctx context.Context, q Querier, name string) (time.Time, bool, error) {
	exists, err := TableExists(ctx, q, migrationsTableName)
	if err != nil || !exists {
		return time.Time{}, false, err
	}

	var appliedAt any
	query := fmt.Sprintf(`SELECT applied_at FROM %s WHERE name = ?`, migrationsTableName)
	err = q.QueryRowContext(ctx, query, name).Scan(&appliedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to check migration %s: %w", name, err)
	}

	return ParseTimestamp(appliedAt), true, nil
}

// MarkMigrationApplied registra a migração como aplicada
func MarkMigrationApplied(ctx context.Context, q Querier, name string) error {
	if err := ensureMigrationTable(ctx, q); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT OR REPLACE INTO %s(name, applied_at) VALUES(?, ?)`, migrationsTableName)
	if _, err := q.ExecContext(ctx, query, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to mark migration %s as applied: %w", name, err)
	}
	return nil
}

// EnsureMigrationApplied executa a migração uma única vez.
// Retorna true quando a migração rodou nesta chamada.
func EnsureMigrationApplied(ctx context.Context, q Querier, name string, migration func(context.Context, Querier) error) (bool, error) {
	_, applied, err := MigrationAppliedAt(ctx, q, name)
	if err != nil {
		return false, err
	}
	if applied {
		log.Printf("[Migrations] Skipping %s - already applied", name)
		return false, nil
	}

	if err := migration(ctx, q); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", name, err)
	}

	if err := MarkMigrationApplied(ctx, q, name); err != nil {
		return false, err
	}

	log.Printf("[Migrations] %s applied successfully", name)
	return true, nil
}
