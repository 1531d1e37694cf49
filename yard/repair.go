package yard

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	"patiotools/database"
)

// RepairOptions opções comuns dos reparos
type RepairOptions struct {
	// Apply grava as correções; sem ele o reparo só relata
	Apply bool
}

// NivelFix correção (ou tentativa) de nível de um usuário
type NivelFix struct {
	UsuarioID int64
	Username  string
	From      string
	To        string
}

// NivelReport resultado de FixNiveis
type NivelReport struct {
	Checked    int
	Fixes      []NivelFix
	Unmappable []NivelFix
	// PendingRequests solicitações pendentes com nivel_solicitado corrigível
	PendingRequests []NivelFix
	Applied         bool
}

// FixNiveis encontra níveis fora da lista válida e, com Apply, grava o nível
// normalizado. Valores sem mapeamento são apenas relatados.
func FixNiveis(ctx context.Context, db *database.DB, opts RepairOptions) (*NivelReport, error) {
	usuarios, err := database.ListUsuarios(ctx, db.Conn(), database.UsuarioFilter{})
	if err != nil {
		return nil, err
	}

	report := &NivelReport{Checked: len(usuarios)}
	for _, u := range usuarios {
		if IsValidNivel(u.Nivel) {
			continue
		}
		fix := NivelFix{UsuarioID: u.ID, Username: u.Username, From: u.Nivel}
		if normalized, ok := NormalizeNivel(u.Nivel); ok {
			fix.To = normalized
			report.Fixes = append(report.Fixes, fix)
		} else {
			report.Unmappable = append(report.Unmappable, fix)
		}
	}

	solicitacoes, err := database.ListSolicitacoesRegistro(ctx, db.Conn(), database.StatusPendente)
	if err != nil && !database.IsConflict(err) {
		return nil, err
	}
	for _, s := range solicitacoes {
		if s.NivelSolicitado == "" || IsValidNivel(s.NivelSolicitado) {
			continue
		}
		if normalized, ok := NormalizeNivel(s.NivelSolicitado); ok {
			report.PendingRequests = append(report.PendingRequests,
				NivelFix{UsuarioID: s.ID, Username: s.Username, From: s.NivelSolicitado, To: normalized})
		}
	}

	if !opts.Apply || (len(report.Fixes) == 0 && len(report.PendingRequests) == 0) {
		return report, nil
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, fix := range report.Fixes {
			if _, err := tx.ExecContext(ctx, `UPDATE usuarios SET nivel = ? WHERE id = ?`, fix.To, fix.UsuarioID); err != nil {
				return fmt.Errorf("failed to update nivel of %s: %w", fix.Username, err)
			}
		}
		for _, fix := range report.PendingRequests {
			if _, err := tx.ExecContext(ctx, `UPDATE solicitacoes_registro SET nivel_solicitado = ? WHERE id = ?`, fix.To, fix.UsuarioID); err != nil {
				return fmt.Errorf("failed to update nivel_solicitado of request %d: %w", fix.UsuarioID, err)
			}
		}
		return database.LogActivity(ctx, tx, database.ActivityEntry{
			Acao: "corrigir_niveis",
			Descricao: fmt.Sprintf("%d usuarios e %d solicitacoes com nivel corrigido",
				len(report.Fixes), len(report.PendingRequests)),
		})
	})
	if err != nil {
		return nil, err
	}

	report.Applied = true
	log.Printf("[Yard] Niveis fixed: %d usuarios, %d solicitacoes", len(report.Fixes), len(report.PendingRequests))
	return report, nil
}

// StatusFix grafia de status a normalizar
type StatusFix struct {
	ContainerID int64
	Numero      string
	From        string
	To          string
}

// StatusReport resultado de FixStatuses
type StatusReport struct {
	Checked int
	Fixes   []StatusFix
	Unknown []StatusFix
	Applied bool
}

// FixStatuses padroniza grafias de status conhecidos ("No Pátio" -> "no patio").
// Status desconhecidos não são alterados.
func FixStatuses(ctx context.Context, db *database.DB, opts RepairOptions) (*StatusReport, error) {
	containers, err := database.ListContainers(ctx, db.Conn(), database.ContainerFilter{})
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Checked: len(containers)}
	for _, c := range containers {
		if c.Status == "" {
			continue
		}
		canonical, known := NormalizeStatus(c.Status)
		fix := StatusFix{ContainerID: c.ID, Numero: c.Numero, From: c.Status, To: canonical}
		switch {
		case !known:
			report.Unknown = append(report.Unknown, fix)
		case canonical != c.Status:
			report.Fixes = append(report.Fixes, fix)
		}
	}

	if !opts.Apply || len(report.Fixes) == 0 {
		return report, nil
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, fix := range report.Fixes {
			if _, err := tx.ExecContext(ctx, `UPDATE containers SET status = ? WHERE id = ?`, fix.To, fix.ContainerID); err != nil {
				return fmt.Errorf("failed to update status of %s: %w", fix.Numero, err)
			}
		}
		return database.LogActivity(ctx, tx, database.ActivityEntry{
			Acao:      "padronizar_status",
			Descricao: fmt.Sprintf("%d containers com status padronizado", len(report.Fixes)),
		})
	})
	if err != nil {
		return nil, err
	}

	report.Applied = true
	return report, nil
}

// ContainerIDFix operação com container_id gravado como texto
type ContainerIDFix struct {
	Table       string
	OperacaoID  int64
	Raw         string
	ContainerID int64
	Reason      string // preenchido quando não foi possível resolver
}

// ContainerIDReport resultado de FixOperacaoContainerIDs
type ContainerIDReport struct {
	Fixes      []ContainerIDFix
	Unresolved []ContainerIDFix
	Rebuilt    []string // tabelas recriadas com container_id INTEGER
	Applied    bool
}

// operationTables tabelas com container_id
var operationTables = []string{"operacoes", "operacoes_carregamento"}

// FixOperacaoContainerIDs resolve container_id gravado como texto: primeiro
// pelo número do container, depois como id numérico. Com Apply reescreve
// como inteiro, recriando a tabela quando a coluna foi declarada como texto.
func FixOperacaoContainerIDs(ctx context.Context, db *database.DB, opts RepairOptions) (*ContainerIDReport, error) {
	q := db.Conn()

	if err := database.RequireColumns(ctx, q, "containers", "id", "numero"); err != nil {
		return nil, err
	}

	report := &ContainerIDReport{}
	var tables []string
	for _, table := range operationTables {
		exists, err := database.TableExists(ctx, q, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}
		if err := database.RequireColumns(ctx, q, table, "id", "container_id"); err != nil {
			return nil, err
		}
		tables = append(tables, table)

		fixes, err := findTextContainerIDs(ctx, q, table)
		if err != nil {
			return nil, err
		}
		for _, fix := range fixes {
			if fix.Reason != "" {
				report.Unresolved = append(report.Unresolved, fix)
			} else {
				report.Fixes = append(report.Fixes, fix)
			}
		}
	}

	if !opts.Apply || len(report.Fixes) == 0 {
		return report, nil
	}

	// Com afinidade TEXT o SQLite converteria o inteiro de volta para texto:
	// essas tabelas são recriadas com container_id INTEGER antes do UPDATE
	needsFix := make(map[string]bool)
	for _, fix := range report.Fixes {
		needsFix[fix.Table] = true
	}
	var rebuild []string
	for _, table := range tables {
		if !needsFix[table] {
			continue
		}
		declared, err := database.ColumnType(ctx, q, table, "container_id")
		if err != nil {
			return nil, err
		}
		if hasTextAffinity(declared) {
			rebuild = append(rebuild, table)
		}
	}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range rebuild {
			if err := database.RebuildWithColumnType(ctx, tx, table, "container_id", "INTEGER"); err != nil {
				return err
			}
		}
		for _, fix := range report.Fixes {
			query := fmt.Sprintf(`UPDATE %s SET container_id = ? WHERE id = ?`, fix.Table)
			if _, err := tx.ExecContext(ctx, query, fix.ContainerID, fix.OperacaoID); err != nil {
				return fmt.Errorf("failed to update %s %d: %w", fix.Table, fix.OperacaoID, err)
			}
		}
		return database.LogActivity(ctx, tx, database.ActivityEntry{
			Acao: "corrigir_container_id",
			Descricao: fmt.Sprintf("%d operacoes com container_id convertido para inteiro; tabelas recriadas: %s",
				len(report.Fixes), strings.Join(rebuild, ", ")),
		})
	})
	if err != nil {
		return nil, err
	}

	report.Rebuilt = rebuild
	report.Applied = true
	log.Printf("[Yard] container_id fixed in %d rows, %d unresolved", len(report.Fixes), len(report.Unresolved))
	return report, nil
}

func findTextContainerIDs(ctx context.Context, q database.Querier, table string) ([]ContainerIDFix, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, container_id FROM %s WHERE typeof(container_id) = 'text' ORDER BY id`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s.container_id: %w", table, err)
	}

	var fixes []ContainerIDFix
	for rows.Next() {
		fix := ContainerIDFix{Table: table}
		if err := rows.Scan(&fix.OperacaoID, &fix.Raw); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to read %s row: %w", table, err)
		}
		fixes = append(fixes, fix)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Resolução depois de fechar o cursor: a conexão é única
	for i := range fixes {
		id, reason, err := resolveContainerID(ctx, q, fixes[i].Raw)
		if err != nil {
			return nil, err
		}
		fixes[i].ContainerID = id
		fixes[i].Reason = reason
	}
	return fixes, nil
}

func resolveContainerID(ctx context.Context, q database.Querier, raw string) (int64, string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, "container_id vazio", nil
	}

	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM containers WHERE UPPER(TRIM(numero)) = UPPER(?) ORDER BY id LIMIT 1`, value).Scan(&id)
	if err == nil {
		return id, "", nil
	}
	if err != sql.ErrNoRows {
		return 0, "", fmt.Errorf("failed to look up container %q: %w", value, err)
	}

	if n, convErr := strconv.ParseInt(value, 10, 64); convErr == nil {
		err := q.QueryRowContext(ctx, `SELECT id FROM containers WHERE id = ?`, n).Scan(&id)
		if err == nil {
			return id, "", nil
		}
		if err != sql.ErrNoRows {
			return 0, "", fmt.Errorf("failed to look up container id %d: %w", n, err)
		}
		return 0, fmt.Sprintf("container id %d nao existe", n), nil
	}

	return 0, fmt.Sprintf("container %q nao encontrado", value), nil
}

// hasTextAffinity regra de afinidade do SQLite para o tipo declarado
func hasTextAffinity(declared string) bool {
	upper := strings.ToUpper(declared)
	if strings.Contains(upper, "INT") {
		return false
	}
	return strings.Contains(upper, "CHAR") || strings.Contains(upper, "CLOB") || strings.Contains(upper, "TEXT")
}
