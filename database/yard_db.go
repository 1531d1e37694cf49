package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"patiotools/internal/apperrors"

	_ "github.com/mattn/go-sqlite3"
)

// Querier é satisfeito por *sql.DB e *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB conexão com o banco do pátio (database.db da aplicação web)
type DB struct {
	conn *sql.DB
	path string
}

// Open abre um banco existente. Um caminho errado não pode criar um arquivo
// vazio, então a ausência do arquivo é tratada como erro.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, apperrors.NewValidationError("database path is empty", nil)
	}

	if !isInMemory(path) {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, apperrors.NewNotFoundError("database file not found", err).WithContext(path)
			}
			return nil, fmt.Errorf("failed to stat database %s: %w", path, err)
		}
		if info.IsDir() {
			return nil, apperrors.NewValidationError("database path is a directory", nil).WithContext(path)
		}
	}

	return open(path)
}

// Create abre o banco criando o arquivo se necessário (usado pelo seed)
func Create(path string) (*DB, error) {
	if path == "" {
		return nil, apperrors.NewValidationError("database path is empty", nil)
	}
	return open(path)
}

func open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Para SQLite em memória cada conexão nova enxergaria um banco vazio.
	// As ferramentas são de passada única, então uma conexão basta sempre.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperrors.NewUnavailableError("failed to ping database", err).WithContext(path)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// A aplicação web pode estar rodando; espera o lock em vez de falhar na hora
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Printf("[YardDB] Warning: Failed to set busy timeout: %v", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// isInMemory identifica caminhos de SQLite em memória
func isInMemory(path string) bool {
	if path == ":memory:" {
		return true
	}
	return strings.HasPrefix(path, "file:") && strings.Contains(path, "mode=memory")
}

// Close fecha a conexão
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn retorna o *sql.DB para acesso direto
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path caminho do arquivo aberto
func (db *DB) Path() string {
	return db.path
}

// IsInMemory indica se o banco está em memória (sem arquivo para backup)
func (db *DB) IsInMemory() bool {
	return isInMemory(db.path)
}

// WithTx executa fn numa transação: commit no final, rollback em qualquer erro
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return WithTx(ctx, db.conn, fn)
}

// WithTx versão livre de WithTx, útil com conexões de teste (sqlmock)
func WithTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[YardDB] Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
