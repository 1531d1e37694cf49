package database

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// RebuildWithColumnType recria a tabela trocando o tipo declarado de uma
// coluna. SQLite não tem ALTER COLUMN: cria <tabela>_new, copia as linhas,
// remove a original e renomeia. Índices da tabela são recriados.
// Deve rodar dentro da transação do chamador.
func RebuildWithColumnType(ctx context.Context, q Querier, table, column, newType string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}

	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return err
	}
	found := false
	for _, col := range columns {
		if strings.EqualFold(col.Name, column) {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("column %s.%s not found", table, column)
	}

	var tableSQL string
	if err := q.QueryRowContext(ctx,
		`SELECT COALESCE(sql, '') FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&tableSQL); err != nil {
		return fmt.Errorf("failed to read DDL of %s: %w", table, err)
	}
	autoincrement := strings.Contains(strings.ToUpper(tableSQL), "AUTOINCREMENT")

	indexes, err := tableIndexes(ctx, q, table)
	if err != nil {
		return err
	}

	newTable := table + "_new"
	if _, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", newTable)); err != nil {
		return fmt.Errorf("failed to drop stale %s: %w", newTable, err)
	}

	ddl := rebuildDDL(newTable, columns, column, newType, autoincrement)
	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create %s: %w", newTable, err)
	}

	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = quoteIdentifier(col.Name)
	}
	list := strings.Join(names, ", ")
	copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", newTable, list, list, table)
	if _, err := q.ExecContext(ctx, copyStmt); err != nil {
		return fmt.Errorf("failed to copy rows of %s: %w", table, err)
	}

	if _, err := q.ExecContext(ctx, fmt.Sprintf("DROP TABLE %s", table)); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", newTable, table)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", newTable, err)
	}

	for _, stmt := range indexes {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to recreate index on %s: %w", table, err)
		}
	}

	log.Printf("[Schema] Rebuilt %s with %s %s", table, column, newType)
	return nil
}

// tableIndexes DDL dos índices explícitos (os automáticos têm sql NULL)
func tableIndexes(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("failed to scan index of %s: %w", table, err)
		}
		stmts = append(stmts, stmt)
	}
	return stmts, rows.Err()
}

func rebuildDDL(table string, columns []Column, column, newType string, autoincrement bool) string {
	var pk []string
	for _, col := range columns {
		if col.PrimaryKey {
			pk = append(pk, quoteIdentifier(col.Name))
		}
	}

	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		typ := col.Type
		if strings.EqualFold(col.Name, column) {
			typ = newType
		}

		def := quoteIdentifier(col.Name)
		if typ != "" {
			def += " " + typ
		}
		if col.PrimaryKey && len(pk) == 1 {
			def += " PRIMARY KEY"
			if autoincrement && strings.EqualFold(typ, "INTEGER") {
				def += " AUTOINCREMENT"
			}
		}
		if col.NotNull {
			def += " NOT NULL"
		}
		if col.DefaultValue.Valid {
			def += " DEFAULT (" + col.DefaultValue.String + ")"
		}
		defs = append(defs, def)
	}
	if len(pk) > 1 {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", table, strings.Join(defs, ",\n\t"))
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
