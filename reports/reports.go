// Package reports monta os relatórios de diagnóstico do banco do pátio.
// Cada relatório vira uma Sheet, impressa no terminal ou exportada para xlsx.
package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"patiotools/database"
	"patiotools/passwords"
	"patiotools/position"
	"patiotools/yard"
)

// Sheet relatório tabular
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]any
}

// Filter filtros comuns
type Filter struct {
	Unidade string
	Status  string
	Limit   int
}

// ContainerRow container com a avaliação de disponibilidade
type ContainerRow struct {
	database.Container
	Available  bool
	Reason     string
	PosicaoFmt position.Kind
}

// ContainerAvailability lista os containers e indica quais podem ser movimentados
func ContainerAvailability(ctx context.Context, q database.Querier, f Filter) ([]ContainerRow, error) {
	containers, err := database.ListContainers(ctx, q, database.ContainerFilter{Unidade: f.Unidade, Status: f.Status})
	if err != nil {
		return nil, err
	}

	rows := make([]ContainerRow, 0, len(containers))
	for _, c := range containers {
		rows = append(rows, ContainerRow{
			Container:  c,
			Available:  yard.IsAvailableForMovement(c.Status, c.PosicaoAtual),
			Reason:     yard.UnavailableReason(c.Status, c.PosicaoAtual),
			PosicaoFmt: position.Classify(c.PosicaoAtual),
		})
	}
	return rows, nil
}

// AvailableOnly filtra as linhas disponíveis para movimentação
func AvailableOnly(rows []ContainerRow) []ContainerRow {
	var out []ContainerRow
	for _, r := range rows {
		if r.Available {
			out = append(out, r)
		}
	}
	return out
}

// ContainerSheet converte as linhas em Sheet
func ContainerSheet(name string, rows []ContainerRow) Sheet {
	sheet := Sheet{
		Name:    name,
		Headers: []string{"Numero", "Status", "Posicao", "Formato", "Unidade", "Tamanho", "Armador", "Disponivel", "Motivo"},
	}
	for _, r := range rows {
		posicao := r.PosicaoAtual
		if r.PosicaoNula {
			posicao = "NULL"
		}
		sheet.Rows = append(sheet.Rows, []any{
			r.Numero, r.Status, posicao, r.PosicaoFmt.String(), r.Unidade, r.Tamanho, r.Armador, yesNo(r.Available), r.Reason,
		})
	}
	return sheet
}

// StatusCount total de containers por grafia de status
type StatusCount struct {
	Status    string
	Canonical string
	Known     bool
	Total     int64
}

// StatusSummary agrupa os containers por status, mantendo as grafias
// diferentes separadas para que as variações fiquem visíveis.
func StatusSummary(ctx context.Context, q database.Querier, f Filter) ([]StatusCount, error) {
	if err := database.RequireColumns(ctx, q, "containers", "status"); err != nil {
		return nil, err
	}

	builder := sq.Select("COALESCE(status, '')", "COUNT(*)").
		From("containers").
		GroupBy("COALESCE(status, '')").
		OrderBy("COUNT(*) DESC", "COALESCE(status, '')")
	if f.Unidade != "" {
		builder = builder.Where(sq.Expr("LOWER(TRIM(unidade)) = LOWER(TRIM(?))", f.Unidade))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build status query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count statuses: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Total); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		c.Canonical, c.Known = yard.NormalizeStatus(c.Status)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// StatusSheet converte a contagem em Sheet
func StatusSheet(counts []StatusCount) Sheet {
	sheet := Sheet{Name: "Status", Headers: []string{"Status", "Canonico", "Conhecido", "Total"}}
	for _, c := range counts {
		sheet.Rows = append(sheet.Rows, []any{c.Status, c.Canonical, yesNo(c.Known), c.Total})
	}
	return sheet
}

// UsuarioRow usuário com a validade do nível e o algoritmo do hash
type UsuarioRow struct {
	database.Usuario
	NivelValido   bool
	NivelSugerido string
	HashAlgorithm passwords.Algorithm
}

// Usuarios lista os usuários com as verificações de nível e hash
func Usuarios(ctx context.Context, q database.Querier, f Filter) ([]UsuarioRow, error) {
	usuarios, err := database.ListUsuarios(ctx, q, database.UsuarioFilter{Unidade: f.Unidade})
	if err != nil {
		return nil, err
	}

	rows := make([]UsuarioRow, 0, len(usuarios))
	for _, u := range usuarios {
		row := UsuarioRow{Usuario: u, NivelValido: yard.IsValidNivel(u.Nivel), HashAlgorithm: passwords.Classify(u.PasswordHash)}
		if !row.NivelValido {
			row.NivelSugerido, _ = yard.NormalizeNivel(u.Nivel)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// UsuarioSheet converte os usuários em Sheet
func UsuarioSheet(rows []UsuarioRow) Sheet {
	sheet := Sheet{
		Name:    "Usuarios",
		Headers: []string{"ID", "Username", "Nome", "Nivel", "Nivel valido", "Sugestao", "Unidade", "Ativo", "Hash", "Ultimo login"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []any{
			r.ID, r.Username, r.Nome, r.Nivel, yesNo(r.NivelValido), r.NivelSugerido, r.Unidade,
			yesNo(r.Ativo), string(r.HashAlgorithm), database.FormatTimestamp(r.LastLogin),
		})
	}
	return sheet
}

// PendingRequests solicitações aguardando aprovação
type PendingRequests struct {
	Registro []database.SolicitacaoRegistro
	Senha    []database.SolicitacaoSenha
}

// Pending carrega as solicitações pendentes. Tabelas ausentes contam como vazias.
func Pending(ctx context.Context, q database.Querier) (*PendingRequests, error) {
	registro, err := database.ListSolicitacoesRegistro(ctx, q, database.StatusPendente)
	if err != nil && !database.IsConflict(err) {
		return nil, err
	}
	senha, err := database.ListSolicitacoesSenha(ctx, q, database.StatusPendente)
	if err != nil && !database.IsConflict(err) {
		return nil, err
	}
	return &PendingRequests{Registro: registro, Senha: senha}, nil
}

// Sheets converte as solicitações em duas Sheets
func (p *PendingRequests) Sheets() []Sheet {
	registro := Sheet{Name: "Solicitacoes registro", Headers: []string{"ID", "Nome", "Username", "Email", "Unidade", "Nivel", "Data"}}
	for _, s := range p.Registro {
		registro.Rows = append(registro.Rows, []any{
			s.ID, s.Nome, s.Username, s.Email, s.Unidade, s.NivelSolicitado, database.FormatTimestamp(s.DataSolicitacao),
		})
	}

	senha := Sheet{Name: "Solicitacoes senha", Headers: []string{"ID", "Usuario ID", "Username", "Data"}}
	for _, s := range p.Senha {
		usuarioID := "-"
		if s.UsuarioID.Valid {
			usuarioID = fmt.Sprint(s.UsuarioID.Int64)
		}
		senha.Rows = append(senha.Rows, []any{s.ID, usuarioID, s.Username, database.FormatTimestamp(s.DataSolicitacao)})
	}
	return []Sheet{registro, senha}
}

// VistoriaRow vistoria com o modo de transporte inferido
type VistoriaRow struct {
	database.Vistoria
	Modo string
}

// Vistorias lista as vistorias mais recentes com o modo de transporte
func Vistorias(ctx context.Context, q database.Querier, f Filter, containerNumero string) ([]VistoriaRow, error) {
	vistorias, err := database.ListVistorias(ctx, q, database.VistoriaFilter{
		ContainerNumero: containerNumero,
		Unidade:         f.Unidade,
		Limit:           f.Limit,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]VistoriaRow, 0, len(vistorias))
	for _, v := range vistorias {
		rows = append(rows, VistoriaRow{Vistoria: v, Modo: yard.TransportMode(v.Vagao, v.Placa)})
	}
	return rows, nil
}

// ModeCounts totais por modo de transporte
func ModeCounts(rows []VistoriaRow) map[string]int {
	counts := map[string]int{yard.ModoFerroviario: 0, yard.ModoRodoviario: 0, yard.ModoIndefinido: 0}
	for _, r := range rows {
		counts[r.Modo]++
	}
	return counts
}

// VistoriaSheet converte as vistorias em Sheet
func VistoriaSheet(rows []VistoriaRow) Sheet {
	sheet := Sheet{
		Name:    "Vistorias",
		Headers: []string{"ID", "Container", "Status", "Condicao", "Lacre", "Vagao", "Placa", "Modo", "Unidade", "Data"},
	}
	for _, r := range rows {
		sheet.Rows = append(sheet.Rows, []any{
			r.ID, r.ContainerNumero, r.Status, r.Condicao, r.Lacre, r.Vagao, r.Placa, r.Modo, r.Unidade,
			database.FormatTimestamp(r.DataVistoria),
		})
	}
	return sheet
}

// LoginSummary tentativas de login agrupadas por usuário
type LoginSummary struct {
	Username    string
	Total       int64
	Failures    int64
	LastAttempt time.Time
}

// LoginSummaries agrupa login_attempts por username, com os que mais falharam primeiro
func LoginSummaries(ctx context.Context, q database.Querier, since time.Time, limit int) ([]LoginSummary, error) {
	if err := database.RequireColumns(ctx, q, "login_attempts", "username", "success", "timestamp"); err != nil {
		return nil, err
	}

	builder := sq.Select(
		"COALESCE(username, '')",
		"COUNT(*)",
		"SUM(CASE WHEN COALESCE(success, 0) = 0 THEN 1 ELSE 0 END) AS failures",
		"MAX(COALESCE(datetime(timestamp), timestamp))",
	).
		From("login_attempts").
		GroupBy("COALESCE(username, '')").
		OrderBy("failures DESC", "COALESCE(username, '')")
	if !since.IsZero() {
		// datetime() normaliza "T", frações e fuso gravados pela aplicação
		builder = builder.Where(sq.Expr("datetime(timestamp) >= ?", since.UTC().Format("2006-01-02 15:04:05")))
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build login query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize login attempts: %w", err)
	}
	defer rows.Close()

	var summaries []LoginSummary
	for rows.Next() {
		var s LoginSummary
		var last any
		if err := rows.Scan(&s.Username, &s.Total, &s.Failures, &last); err != nil {
			return nil, fmt.Errorf("failed to scan login summary: %w", err)
		}
		s.LastAttempt = database.ParseTimestamp(last)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// LoginSheet converte o resumo em Sheet
func LoginSheet(summaries []LoginSummary) Sheet {
	sheet := Sheet{Name: "Logins", Headers: []string{"Username", "Tentativas", "Falhas", "Ultima"}}
	for _, s := range summaries {
		sheet.Rows = append(sheet.Rows, []any{s.Username, s.Total, s.Failures, database.FormatTimestamp(s.LastAttempt)})
	}
	return sheet
}

// SchemaSheet tabelas, colunas e contagem de linhas
func SchemaSheet(tables []database.TableInfo) Sheet {
	sheet := Sheet{Name: "Esquema", Headers: []string{"Tabela", "Linhas", "Coluna", "Tipo", "Not null", "Default", "PK"}}
	for _, table := range tables {
		for _, col := range table.Columns {
			def := ""
			if col.DefaultValue.Valid {
				def = col.DefaultValue.String
			}
			sheet.Rows = append(sheet.Rows, []any{
				table.Name, table.RowCount, col.Name, col.Type, yesNo(col.NotNull), def, yesNo(col.PrimaryKey),
			})
		}
	}
	return sheet
}

// MissingSchema colunas do esquema canônico ausentes no banco, por tabela
func MissingSchema(ctx context.Context, q database.Querier) (map[string][]string, error) {
	plan, err := database.PlanSchema(ctx, q, database.CanonicalSchema)
	if err != nil {
		return nil, err
	}

	missing := make(map[string][]string)
	for _, table := range plan.CreatedTables {
		missing[table] = nil
	}
	for _, qualified := range plan.AddedColumns {
		table, column, _ := strings.Cut(qualified, ".")
		missing[table] = append(missing[table], column)
	}
	return missing, nil
}

// SortedKeys chaves do mapa em ordem alfabética
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func yesNo(b bool) string {
	if b {
		return "sim"
	}
	return "nao"
}
