package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"patiotools/internal/apperrors"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column coluna retornada por PRAGMA table_info
type Column struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue sql.NullString
	PrimaryKey   bool
}

// TableInfo tabela com suas colunas e total de linhas
type TableInfo struct {
	Name     string
	Columns  []Column
	RowCount int64
}

// ValidateIdentifier recusa nomes de tabela/coluna que precisariam de escape.
// PRAGMA e ALTER TABLE não aceitam parâmetros, então o nome entra no SQL.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid identifier %q", name), nil)
	}
	return nil
}

// TableExists verifica a tabela em sqlite_master
func TableExists(ctx context.Context, q Querier, table string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return count > 0, nil
}

// ListTables lista as tabelas do usuário em ordem alfabética
func ListTables(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TableColumns lê as colunas da tabela via PRAGMA table_info.
// Tabela inexistente devolve lista vazia, como o próprio SQLite.
func TableColumns(ctx context.Context, q Querier, table string) ([]Column, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var col Column
		var notNull, pk int
		if err := rows.Scan(&col.CID, &col.Name, &col.Type, &notNull, &col.DefaultValue, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		col.NotNull = notNull != 0
		col.PrimaryKey = pk != 0
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// HasColumn verifica se a coluna existe (comparação sem diferenciar maiúsculas)
func HasColumn(ctx context.Context, q Querier, table, column string) (bool, error) {
	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return false, err
	}
	for _, col := range columns {
		if strings.EqualFold(col.Name, column) {
			return true, nil
		}
	}
	return false, nil
}

// MissingColumns retorna as colunas exigidas que não existem na tabela
func MissingColumns(ctx context.Context, q Querier, table string, required ...string) ([]string, error) {
	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(columns))
	for _, col := range columns {
		present[strings.ToLower(col.Name)] = true
	}

	var missing []string
	for _, name := range required {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// RequireColumns falha com erro de conflito quando o esquema está desatualizado
func RequireColumns(ctx context.Context, q Querier, table string, required ...string) error {
	exists, err := TableExists(ctx, q, table)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewConflictError(
			fmt.Sprintf("table %s does not exist, run fix_schema first", table), nil).WithContext(table)
	}

	missing, err := MissingColumns(ctx, q, table, required...)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperrors.NewConflictError(
			fmt.Sprintf("table %s is missing columns %s, run fix_schema first", table, strings.Join(missing, ", ")),
			nil).WithContext(table)
	}
	return nil
}

// CountRows conta as linhas da tabela
func CountRows(ctx context.Context, q Querier, table string) (int64, error) {
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}

	var count int64
	if err := q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return count, nil
}

// DescribeSchema monta o retrato completo do banco: tabelas, colunas e contagens
func DescribeSchema(ctx context.Context, q Querier) ([]TableInfo, error) {
	tables, err := ListTables(ctx, q)
	if err != nil {
		return nil, err
	}

	infos := make([]TableInfo, 0, len(tables))
	for _, table := range tables {
		if ValidateIdentifier(table) != nil {
			// Tabelas com nomes exóticos não foram criadas pela aplicação
			continue
		}
		columns, err := TableColumns(ctx, q, table)
		if err != nil {
			return nil, err
		}
		count, err := CountRows(ctx, q, table)
		if err != nil {
			return nil, err
		}
		infos = append(infos, TableInfo{Name: table, Columns: columns, RowCount: count})
	}
	return infos, nil
}

// ColumnType tipo declarado da coluna ("" quando a coluna não existe)
func ColumnType(ctx context.Context, q Querier, table, column string) (string, error) {
	columns, err := TableColumns(ctx, q, table)
	if err != nil {
		return "", err
	}
	for _, col := range columns {
		if strings.EqualFold(col.Name, column) {
			return strings.ToUpper(col.Type), nil
		}
	}
	return "", nil
}
