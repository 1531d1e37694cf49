package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
)

// ColumnSpec coluna adicionada depois da criação da tabela.
// A definição precisa ser aceita por ALTER TABLE ADD COLUMN: sem UNIQUE,
// sem PRIMARY KEY e sem default não constante.
type ColumnSpec struct {
	Name       string
	Definition string
}

// TableSpec tabela do esquema canônico
type TableSpec struct {
	Name    string
	DDL     string
	Columns []ColumnSpec
}

// CanonicalSchema esquema esperado pela aplicação web.
// Columns lista as colunas que bancos antigos podem não ter.
var CanonicalSchema = []TableSpec{
	{
		Name: "usuarios",
		DDL: `CREATE TABLE IF NOT EXISTS usuarios (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			email TEXT,
			password_hash TEXT NOT NULL,
			nivel TEXT NOT NULL DEFAULT 'operador',
			nome TEXT,
			unidade TEXT,
			setor TEXT,
			ativo INTEGER DEFAULT 1,
			senha_temporaria INTEGER DEFAULT 0,
			primeiro_login INTEGER DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			last_login TIMESTAMP
		)`,
		Columns: []ColumnSpec{
			{"email", "TEXT"},
			{"nome", "TEXT"},
			{"unidade", "TEXT"},
			{"setor", "TEXT"},
			{"ativo", "INTEGER DEFAULT 1"},
			{"senha_temporaria", "INTEGER DEFAULT 0"},
			{"primeiro_login", "INTEGER DEFAULT 1"},
			{"created_at", "TIMESTAMP"},
			{"last_login", "TIMESTAMP"},
		},
	},
	{
		Name: "containers",
		DDL: `CREATE TABLE IF NOT EXISTS containers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			numero TEXT UNIQUE NOT NULL,
			status TEXT,
			posicao_atual TEXT,
			unidade TEXT,
			tamanho INTEGER,
			armador TEXT,
			data_criacao TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ultima_atualizacao TIMESTAMP
		)`,
		Columns: []ColumnSpec{
			{"status", "TEXT"},
			{"posicao_atual", "TEXT"},
			{"unidade", "TEXT"},
			{"tamanho", "INTEGER"},
			{"armador", "TEXT"},
			{"data_criacao", "TIMESTAMP"},
			{"ultima_atualizacao", "TIMESTAMP"},
		},
	},
	{
		Name: "vistorias",
		DDL: `CREATE TABLE IF NOT EXISTS vistorias (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			container_numero TEXT NOT NULL,
			status TEXT,
			lacre TEXT,
			condicao TEXT,
			vagao TEXT,
			placa TEXT,
			data_vistoria TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			usuario_id INTEGER,
			unidade TEXT,
			observacoes TEXT
		)`,
		Columns: []ColumnSpec{
			{"status", "TEXT"},
			{"lacre", "TEXT"},
			{"condicao", "TEXT"},
			{"vagao", "TEXT"},
			{"placa", "TEXT"},
			{"usuario_id", "INTEGER"},
			{"unidade", "TEXT"},
			{"observacoes", "TEXT"},
		},
	},
	{
		Name: "operacoes",
		DDL: `CREATE TABLE IF NOT EXISTS operacoes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tipo TEXT NOT NULL,
			modo TEXT,
			container_id INTEGER,
			posicao TEXT,
			posicao_anterior TEXT,
			usuario_id INTEGER,
			data_operacao TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			observacoes TEXT,
			unidade TEXT
		)`,
		Columns: []ColumnSpec{
			{"modo", "TEXT"},
			{"posicao", "TEXT"},
			{"posicao_anterior", "TEXT"},
			{"observacoes", "TEXT"},
			{"unidade", "TEXT"},
		},
	},
	{
		Name: "operacoes_carregamento",
		DDL: `CREATE TABLE IF NOT EXISTS operacoes_carregamento (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			container_id INTEGER,
			usuario_id INTEGER,
			vagao TEXT,
			placa TEXT,
			data_carregamento TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			unidade TEXT
		)`,
		Columns: []ColumnSpec{
			{"vagao", "TEXT"},
			{"placa", "TEXT"},
			{"unidade", "TEXT"},
		},
	},
	{
		Name: "solicitacoes_registro",
		DDL: `CREATE TABLE IF NOT EXISTS solicitacoes_registro (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			nome TEXT,
			username TEXT NOT NULL,
			email TEXT,
			unidade TEXT,
			nivel_solicitado TEXT DEFAULT 'operador',
			status TEXT DEFAULT 'pendente',
			motivo_rejeicao TEXT,
			data_solicitacao TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			data_aprovacao TIMESTAMP,
			aprovado_por INTEGER
		)`,
		Columns: []ColumnSpec{
			{"unidade", "TEXT"},
			{"nivel_solicitado", "TEXT DEFAULT 'operador'"},
			{"motivo_rejeicao", "TEXT"},
			{"data_aprovacao", "TIMESTAMP"},
			{"aprovado_por", "INTEGER"},
		},
	},
	{
		Name: "solicitacoes_senha",
		DDL: `CREATE TABLE IF NOT EXISTS solicitacoes_senha (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			usuario_id INTEGER,
			username TEXT NOT NULL,
			status TEXT DEFAULT 'pendente',
			motivo_rejeicao TEXT,
			data_solicitacao TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			data_aprovacao TIMESTAMP,
			aprovado_por INTEGER
		)`,
		Columns: []ColumnSpec{
			{"usuario_id", "INTEGER"},
			{"motivo_rejeicao", "TEXT"},
			{"data_aprovacao", "TIMESTAMP"},
			{"aprovado_por", "INTEGER"},
		},
	},
	{
		Name: "login_attempts",
		DDL: `CREATE TABLE IF NOT EXISTS login_attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT,
			ip_address TEXT,
			success INTEGER DEFAULT 0,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// ADD COLUMN não aceita DEFAULT CURRENT_TIMESTAMP
		Columns: []ColumnSpec{
			{"username", "TEXT"},
			{"ip_address", "TEXT"},
			{"success", "INTEGER DEFAULT 0"},
			{"timestamp", "TIMESTAMP"},
		},
	},
	{
		Name: "log_atividades",
		DDL: `CREATE TABLE IF NOT EXISTS log_atividades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			usuario_id INTEGER,
			acao TEXT NOT NULL,
			descricao TEXT,
			ip_address TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		Columns: []ColumnSpec{
			{"usuario_id", "INTEGER"},
			{"descricao", "TEXT"},
			{"ip_address", "TEXT"},
			{"timestamp", "TIMESTAMP"},
		},
	},
}

// indexesMigration índices usados pelas consultas da aplicação e dos relatórios
const indexesMigration = "indices_consultas_v1"

// IndexSpec índice criado pela migração de índices
type IndexSpec struct {
	Name    string
	Table   string
	Columns []string
}

var queryIndexes = []IndexSpec{
	{"idx_containers_status", "containers", []string{"status"}},
	{"idx_vistorias_container_numero", "vistorias", []string{"container_numero"}},
	{"idx_operacoes_container_id", "operacoes", []string{"container_id"}},
	{"idx_login_attempts_username", "login_attempts", []string{"username", "timestamp"}},
}

// ensureIndex cria o índice quando as colunas existem. Retorna false quando
// faltou coluna (tabela fora do esquema canônico).
func ensureIndex(ctx context.Context, q Querier, idx IndexSpec) (bool, error) {
	missing, err := MissingColumns(ctx, q, idx.Table, idx.Columns...)
	if err != nil {
		return false, err
	}
	if len(missing) > 0 {
		log.Printf("[Schema] Skipping index %s: %s lacks %s", idx.Name, idx.Table, strings.Join(missing, ", "))
		return false, nil
	}

	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.Name, idx.Table, strings.Join(idx.Columns, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("failed to create index %s: %w", idx.Name, err)
	}
	return true, nil
}

// PatchReport resultado da aplicação do esquema canônico
type PatchReport struct {
	DryRun            bool
	CreatedTables     []string
	AddedColumns      []string // "tabela.coluna"
	AppliedMigrations []string
}

// Changed indica se algo foi (ou seria, em dry-run) alterado
func (r *PatchReport) Changed() bool {
	return len(r.CreatedTables) > 0 || len(r.AddedColumns) > 0 || len(r.AppliedMigrations) > 0
}

// EnsureTable cria a tabela se ela não existir. Retorna true quando criou.
func EnsureTable(ctx context.Context, q Querier, name, ddl string) (bool, error) {
	if err := ValidateIdentifier(name); err != nil {
		return false, err
	}

	exists, err := TableExists(ctx, q, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if _, err := q.ExecContext(ctx, ddl); err != nil {
		return false, fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return true, nil
}

// EnsureColumn adiciona a coluna se ela não existir. Nunca falha em coluna
// já existente e não toca nas linhas: ADD COLUMN só acrescenta.
func EnsureColumn(ctx context.Context, q Querier, table, column, definition string) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	if err := ValidateIdentifier(column); err != nil {
		return false, err
	}

	exists, err := HasColumn(ctx, q, table, column)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	if err != nil {
		errStr := strings.ToLower(err.Error())
		// Outro processo pode ter adicionado a coluna entre a checagem e o ALTER
		if strings.Contains(errStr, "duplicate column") {
			return false, nil
		}
		return false, fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return true, nil
}

// PlanSchema calcula o que PatchSchema faria, sem alterar nada
func PlanSchema(ctx context.Context, q Querier, specs []TableSpec) (*PatchReport, error) {
	report := &PatchReport{DryRun: true}

	for _, spec := range specs {
		exists, err := TableExists(ctx, q, spec.Name)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.CreatedTables = append(report.CreatedTables, spec.Name)
			continue
		}

		names := make([]string, 0, len(spec.Columns))
		for _, col := range spec.Columns {
			names = append(names, col.Name)
		}
		missing, err := MissingColumns(ctx, q, spec.Name, names...)
		if err != nil {
			return nil, err
		}
		for _, col := range missing {
			report.AddedColumns = append(report.AddedColumns, spec.Name+"."+col)
		}
	}

	if _, applied, err := MigrationAppliedAt(ctx, q, indexesMigration); err != nil {
		return nil, err
	} else if !applied {
		report.AppliedMigrations = append(report.AppliedMigrations, indexesMigration)
	}

	return report, nil
}

// PatchSchema aplica o esquema canônico numa única transação.
// Rodar duas vezes deixa o esquema idêntico ao da primeira execução.
func PatchSchema(ctx context.Context, db *DB, dryRun bool) (*PatchReport, error) {
	if dryRun {
		return PlanSchema(ctx, db.conn, CanonicalSchema)
	}

	report := &PatchReport{}
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return applySchema(ctx, tx, CanonicalSchema, report)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Schema] Patch completed: %d tables created, %d columns added, %d migrations applied",
		len(report.CreatedTables), len(report.AddedColumns), len(report.AppliedMigrations))
	return report, nil
}

func applySchema(ctx context.Context, q Querier, specs []TableSpec, report *PatchReport) error {
	for _, spec := range specs {
		created, err := EnsureTable(ctx, q, spec.Name, spec.DDL)
		if err != nil {
			return err
		}
		if created {
			report.CreatedTables = append(report.CreatedTables, spec.Name)
			// A DDL já traz todas as colunas
			continue
		}

		for _, col := range spec.Columns {
			added, err := EnsureColumn(ctx, q, spec.Name, col.Name, col.Definition)
			if err != nil {
				return err
			}
			if added {
				report.AddedColumns = append(report.AddedColumns, spec.Name+"."+col.Name)
			}
		}
	}

	ran, err := EnsureMigrationApplied(ctx, q, indexesMigration, func(ctx context.Context, q Querier) error {
		for _, idx := range queryIndexes {
			if _, err := ensureIndex(ctx, q, idx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if ran {
		report.AppliedMigrations = append(report.AppliedMigrations, indexesMigration)
	}

	if len(report.CreatedTables) > 0 || len(report.AddedColumns) > 0 {
		return LogActivity(ctx, q, ActivityEntry{
			Acao: "schema_patch",
			Descricao: fmt.Sprintf("tabelas criadas: %s; colunas adicionadas: %s",
				joinOrDash(report.CreatedTables), joinOrDash(report.AddedColumns)),
		})
	}
	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
