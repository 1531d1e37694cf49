package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	sq "github.com/Masterminds/squirrel"

	"patiotools/internal/logging"
)

// ActivityEntry registro em log_atividades
type ActivityEntry struct {
	UsuarioID *int64
	Acao      string
	Descricao string
	IPAddress string
}

// toolIPAddress marca as linhas gravadas pelas ferramentas de manutenção
const toolIPAddress = "cli"

// LogActivity grava a alteração em log_atividades, com o run_id do contexto.
// Se a tabela ainda não existe apenas avisa: diagnóstico não cria tabelas.
func LogActivity(ctx context.Context, q Querier, entry ActivityEntry) error {
	exists, err := TableExists(ctx, q, "log_atividades")
	if err != nil {
		return err
	}
	if !exists {
		log.Printf("[Audit] log_atividades missing, skipping entry %q", entry.Acao)
		return nil
	}

	descricao := entry.Descricao
	if runID := logging.GetRunID(ctx); runID != "" {
		descricao = fmt.Sprintf("%s [run %s]", descricao, runID)
	}

	ip := entry.IPAddress
	if ip == "" {
		ip = toolIPAddress
	}

	var usuarioID sql.NullInt64
	if entry.UsuarioID != nil {
		usuarioID = sql.NullInt64{Int64: *entry.UsuarioID, Valid: true}
	}

	// Tabelas antigas não têm todas as colunas; grava só as que existem
	values := []struct {
		column string
		value  any
	}{
		{"usuario_id", usuarioID},
		{"acao", entry.Acao},
		{"descricao", descricao},
		{"ip_address", ip},
		{"timestamp", FormatTimestamp(time.Now().UTC())},
	}
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.column
	}
	missing, err := MissingColumns(ctx, q, "log_atividades", names...)
	if err != nil {
		return err
	}
	absent := make(map[string]bool, len(missing))
	for _, name := range missing {
		absent[name] = true
	}
	if absent["acao"] {
		log.Printf("[Audit] log_atividades has no acao column, skipping entry %q", entry.Acao)
		return nil
	}

	insert := sq.Insert("log_atividades")
	var columns []string
	var args []any
	for _, v := range values {
		if absent[v.column] {
			continue
		}
		columns = append(columns, v.column)
		args = append(args, v.value)
	}
	query, queryArgs, err := insert.Columns(columns...).Values(args...).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build log_atividades insert: %w", err)
	}

	if _, err := q.ExecContext(ctx, query, queryArgs...); err != nil {
		return fmt.Errorf("failed to write log_atividades entry %s: %w", entry.Acao, err)
	}
	return nil
}

// ActivityRecord linha lida de log_atividades
type ActivityRecord struct {
	ID        int64
	UsuarioID sql.NullInt64
	Acao      string
	Descricao string
	IPAddress string
	Timestamp time.Time
}

// RecentActivities lê as últimas entradas de log_atividades
func RecentActivities(ctx context.Context, q Querier, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	columns, err := selectColumns(ctx, q, "log_atividades",
		[]string{"id", "acao"}, []string{"usuario_id", "descricao", "ip_address", "timestamp"})
	if err != nil {
		return nil, err
	}

	rows, err := runSelect(ctx, q, sq.Select(columns...).
		From("log_atividades").
		OrderBy("id DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("failed to read log_atividades: %w", err)
	}
	defer rows.Close()

	var records []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		var descricao, ip sql.NullString
		var ts any
		if err := rows.Scan(&rec.ID, &rec.Acao, &rec.UsuarioID, &descricao, &ip, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan log_atividades: %w", err)
		}
		rec.Descricao = descricao.String
		rec.IPAddress = ip.String
		rec.Timestamp = ParseTimestamp(ts)
		records = append(records, rec)
	}
	return records, rows.Err()
}
