package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"patiotools/internal/apperrors"
)

// Usuario linha de usuarios
type Usuario struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    string
	Nivel           string
	Nome            string
	Unidade         string
	Setor           string
	Ativo           bool
	SenhaTemporaria bool
	PrimeiroLogin   bool
	CreatedAt       time.Time
	LastLogin       time.Time
}

// Container linha de containers
type Container struct {
	ID                int64
	Numero            string
	Status            string
	PosicaoAtual      string
	PosicaoNula       bool // posicao_atual IS NULL
	Unidade           string
	Tamanho           int64
	Armador           string
	DataCriacao       time.Time
	UltimaAtualizacao time.Time
}

// Vistoria linha de vistorias
type Vistoria struct {
	ID              int64
	ContainerNumero string
	Status          string
	Lacre           string
	Condicao        string
	Vagao           string
	Placa           string
	DataVistoria    time.Time
	UsuarioID       sql.NullInt64
	Unidade         string
	Observacoes     string
}

// SolicitacaoRegistro pedido de criação de conta
type SolicitacaoRegistro struct {
	ID              int64
	Nome            string
	Username        string
	Email           string
	Unidade         string
	NivelSolicitado string
	Status          string
	MotivoRejeicao  string
	DataSolicitacao time.Time
}

// SolicitacaoSenha pedido de troca de senha
type SolicitacaoSenha struct {
	ID              int64
	UsuarioID       sql.NullInt64
	Username        string
	Status          string
	MotivoRejeicao  string
	DataSolicitacao time.Time
}

// LoginAttempt tentativa de login registrada pela aplicação
type LoginAttempt struct {
	ID        int64
	Username  string
	IPAddress string
	Success   bool
	Timestamp time.Time
}

// StatusPendente valor de status das solicitações aguardando aprovação
const StatusPendente = "pendente"

// selectColumns monta a lista do SELECT: colunas obrigatórias ausentes geram
// erro de conflito, opcionais ausentes viram NULL (bancos antigos)
func selectColumns(ctx context.Context, q Querier, table string, required, optional []string) ([]string, error) {
	if err := RequireColumns(ctx, q, table, required...); err != nil {
		return nil, err
	}

	missing, err := MissingColumns(ctx, q, table, optional...)
	if err != nil {
		return nil, err
	}
	absent := make(map[string]bool, len(missing))
	for _, name := range missing {
		absent[name] = true
	}

	columns := append([]string(nil), required...)
	for _, name := range optional {
		if absent[name] {
			columns = append(columns, "NULL AS "+name)
		} else {
			columns = append(columns, name)
		}
	}
	return columns, nil
}

func runSelect(ctx context.Context, q Querier, builder sq.SelectBuilder) (*sql.Rows, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run query: %w", err)
	}
	return rows, nil
}

// equalsFold filtro sem diferenciar maiúsculas
func equalsFold(column, value string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("LOWER(TRIM(%s)) = LOWER(TRIM(?))", column), value)
}

// UsuarioFilter filtros de ListUsuarios
type UsuarioFilter struct {
	Username   string
	Unidade    string
	Nivel      string
	OnlyActive bool
}

var (
	usuarioRequired = []string{"id", "username", "password_hash", "nivel"}
	usuarioOptional = []string{"email", "nome", "unidade", "setor", "ativo", "senha_temporaria", "primeiro_login", "created_at", "last_login"}
)

// ListUsuarios lista os usuários ordenados por username
func ListUsuarios(ctx context.Context, q Querier, f UsuarioFilter) ([]Usuario, error) {
	columns, err := selectColumns(ctx, q, "usuarios", usuarioRequired, usuarioOptional)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("usuarios").OrderBy("username")
	if f.Username != "" {
		builder = builder.Where(sq.Eq{"username": f.Username})
	}
	if f.Unidade != "" {
		builder = builder.Where(equalsFold("unidade", f.Unidade))
	}
	if f.Nivel != "" {
		builder = builder.Where(equalsFold("nivel", f.Nivel))
	}
	if f.OnlyActive {
		builder = builder.Where("COALESCE(ativo, 1) = 1")
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var usuarios []Usuario
	for rows.Next() {
		var u Usuario
		var email, nome, unidade, setor, hash, nivel sql.NullString
		var ativo, senhaTemp, primeiro sql.NullInt64
		var createdAt, lastLogin any
		if err := rows.Scan(&u.ID, &u.Username, &hash, &nivel,
			&email, &nome, &unidade, &setor, &ativo, &senhaTemp, &primeiro, &createdAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("failed to scan usuario: %w", err)
		}
		u.PasswordHash = nullString(hash)
		u.Nivel = nullString(nivel)
		u.Email = nullString(email)
		u.Nome = nullString(nome)
		u.Unidade = nullString(unidade)
		u.Setor = nullString(setor)
		u.Ativo = !ativo.Valid || ativo.Int64 != 0
		u.SenhaTemporaria = senhaTemp.Valid && senhaTemp.Int64 != 0
		u.PrimeiroLogin = primeiro.Valid && primeiro.Int64 != 0
		u.CreatedAt = ParseTimestamp(createdAt)
		u.LastLogin = ParseTimestamp(lastLogin)
		usuarios = append(usuarios, u)
	}
	return usuarios, rows.Err()
}

// GetUsuarioByUsername busca um usuário; inexistente vira erro NotFound
func GetUsuarioByUsername(ctx context.Context, q Querier, username string) (*Usuario, error) {
	usuarios, err := ListUsuarios(ctx, q, UsuarioFilter{Username: username})
	if err != nil {
		return nil, err
	}
	if len(usuarios) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("usuario %q not found", username), sql.ErrNoRows)
	}
	return &usuarios[0], nil
}

// ContainerFilter filtros de ListContainers
type ContainerFilter struct {
	Numero  string
	Unidade string
	Status  string
}

var (
	containerRequired = []string{"id", "numero"}
	containerOptional = []string{"status", "posicao_atual", "unidade", "tamanho", "armador", "data_criacao", "ultima_atualizacao"}
)

// ListContainers lista os containers ordenados por número
func ListContainers(ctx context.Context, q Querier, f ContainerFilter) ([]Container, error) {
	columns, err := selectColumns(ctx, q, "containers", containerRequired, containerOptional)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("containers").OrderBy("numero")
	if f.Numero != "" {
		builder = builder.Where(equalsFold("numero", f.Numero))
	}
	if f.Unidade != "" {
		builder = builder.Where(equalsFold("unidade", f.Unidade))
	}
	if f.Status != "" {
		builder = builder.Where(equalsFold("status", f.Status))
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var containers []Container
	for rows.Next() {
		var c Container
		var status, posicao, unidade, armador sql.NullString
		var tamanho sql.NullInt64
		var criacao, atualizacao any
		if err := rows.Scan(&c.ID, &c.Numero, &status, &posicao, &unidade, &tamanho, &armador, &criacao, &atualizacao); err != nil {
			return nil, fmt.Errorf("failed to scan container: %w", err)
		}
		c.Status = nullString(status)
		c.PosicaoAtual = nullString(posicao)
		c.PosicaoNula = !posicao.Valid
		c.Unidade = nullString(unidade)
		c.Tamanho = tamanho.Int64
		c.Armador = nullString(armador)
		c.DataCriacao = ParseTimestamp(criacao)
		c.UltimaAtualizacao = ParseTimestamp(atualizacao)
		containers = append(containers, c)
	}
	return containers, rows.Err()
}

// VistoriaFilter filtros de ListVistorias
type VistoriaFilter struct {
	ContainerNumero string
	Unidade         string
	Limit           int
}

var (
	vistoriaRequired = []string{"id", "container_numero"}
	vistoriaOptional = []string{"status", "lacre", "condicao", "vagao", "placa", "data_vistoria", "usuario_id", "unidade", "observacoes"}
)

// ListVistorias lista as vistorias mais recentes primeiro
func ListVistorias(ctx context.Context, q Querier, f VistoriaFilter) ([]Vistoria, error) {
	columns, err := selectColumns(ctx, q, "vistorias", vistoriaRequired, vistoriaOptional)
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("vistorias").OrderBy("id DESC")
	if f.ContainerNumero != "" {
		builder = builder.Where(equalsFold("container_numero", f.ContainerNumero))
	}
	if f.Unidade != "" {
		builder = builder.Where(equalsFold("unidade", f.Unidade))
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vistorias []Vistoria
	for rows.Next() {
		var v Vistoria
		var status, lacre, condicao, vagao, placa, unidade, obs sql.NullString
		var data any
		if err := rows.Scan(&v.ID, &v.ContainerNumero, &status, &lacre, &condicao, &vagao, &placa,
			&data, &v.UsuarioID, &unidade, &obs); err != nil {
			return nil, fmt.Errorf("failed to scan vistoria: %w", err)
		}
		v.Status = nullString(status)
		v.Lacre = nullString(lacre)
		v.Condicao = nullString(condicao)
		v.Vagao = nullString(vagao)
		v.Placa = nullString(placa)
		v.DataVistoria = ParseTimestamp(data)
		v.Unidade = nullString(unidade)
		v.Observacoes = nullString(obs)
		vistorias = append(vistorias, v)
	}
	return vistorias, rows.Err()
}

// ListSolicitacoesRegistro lista pedidos de conta; status vazio traz todos
func ListSolicitacoesRegistro(ctx context.Context, q Querier, status string) ([]SolicitacaoRegistro, error) {
	columns, err := selectColumns(ctx, q, "solicitacoes_registro",
		[]string{"id", "username"},
		[]string{"nome", "email", "unidade", "nivel_solicitado", "status", "motivo_rejeicao", "data_solicitacao"})
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("solicitacoes_registro").OrderBy("id")
	if status != "" {
		builder = builder.Where(equalsFold("status", status))
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SolicitacaoRegistro
	for rows.Next() {
		var s SolicitacaoRegistro
		var nome, email, unidade, nivel, st, motivo sql.NullString
		var data any
		if err := rows.Scan(&s.ID, &s.Username, &nome, &email, &unidade, &nivel, &st, &motivo, &data); err != nil {
			return nil, fmt.Errorf("failed to scan solicitacao_registro: %w", err)
		}
		s.Nome = nullString(nome)
		s.Email = nullString(email)
		s.Unidade = nullString(unidade)
		s.NivelSolicitado = nullString(nivel)
		s.Status = nullString(st)
		s.MotivoRejeicao = nullString(motivo)
		s.DataSolicitacao = ParseTimestamp(data)
		result = append(result, s)
	}
	return result, rows.Err()
}

// ListSolicitacoesSenha lista pedidos de troca de senha; status vazio traz todos
func ListSolicitacoesSenha(ctx context.Context, q Querier, status string) ([]SolicitacaoSenha, error) {
	columns, err := selectColumns(ctx, q, "solicitacoes_senha",
		[]string{"id", "username"},
		[]string{"usuario_id", "status", "motivo_rejeicao", "data_solicitacao"})
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("solicitacoes_senha").OrderBy("id")
	if status != "" {
		builder = builder.Where(equalsFold("status", status))
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SolicitacaoSenha
	for rows.Next() {
		var s SolicitacaoSenha
		var st, motivo sql.NullString
		var data any
		if err := rows.Scan(&s.ID, &s.Username, &s.UsuarioID, &st, &motivo, &data); err != nil {
			return nil, fmt.Errorf("failed to scan solicitacao_senha: %w", err)
		}
		s.Status = nullString(st)
		s.MotivoRejeicao = nullString(motivo)
		s.DataSolicitacao = ParseTimestamp(data)
		result = append(result, s)
	}
	return result, rows.Err()
}

// LoginAttemptFilter filtros de ListLoginAttempts
type LoginAttemptFilter struct {
	Username   string
	OnlyFailed bool
	Limit      int
}

// ListLoginAttempts lista as tentativas de login mais recentes
func ListLoginAttempts(ctx context.Context, q Querier, f LoginAttemptFilter) ([]LoginAttempt, error) {
	columns, err := selectColumns(ctx, q, "login_attempts",
		[]string{"id"},
		[]string{"username", "ip_address", "success", "timestamp"})
	if err != nil {
		return nil, err
	}

	builder := sq.Select(columns...).From("login_attempts").OrderBy("id DESC")
	if f.Username != "" {
		builder = builder.Where(sq.Eq{"username": f.Username})
	}
	if f.OnlyFailed {
		builder = builder.Where("COALESCE(success, 0) = 0")
	}
	if f.Limit > 0 {
		builder = builder.Limit(uint64(f.Limit))
	}

	rows, err := runSelect(ctx, q, builder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LoginAttempt
	for rows.Next() {
		var a LoginAttempt
		var username, ip sql.NullString
		var success sql.NullInt64
		var ts any
		if err := rows.Scan(&a.ID, &username, &ip, &success, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan login_attempt: %w", err)
		}
		a.Username = nullString(username)
		a.IPAddress = nullString(ip)
		a.Success = success.Valid && success.Int64 != 0
		a.Timestamp = ParseTimestamp(ts)
		result = append(result, a)
	}
	return result, rows.Err()
}

// IsNoSuchTable identifica o erro do SQLite para tabela inexistente
func IsNoSuchTable(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such table")
}

// IsConflict indica esquema desatualizado (ver RequireColumns)
func IsConflict(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Kind == apperrors.KindConflict
}
