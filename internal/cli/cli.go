// Package cli concentra o que toda ferramenta faz antes e depois do trabalho:
// flags comuns, configuração, logging, id da execução, abertura do banco,
// backup antes de escrever e código de saída.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"patiotools/backup"
	"patiotools/database"
	"patiotools/internal/apperrors"
	"patiotools/internal/config"
	"patiotools/internal/logging"
	"patiotools/reports"
)

// CommonFlags flags aceitas por todas as ferramentas
type CommonFlags struct {
	DBPath     string
	ConfigPath string
	NoBackup   bool
	Unidade    string
}

// RegisterCommon registra -db, -config, -no-backup e -unidade
func RegisterCommon(fs *flag.FlagSet) *CommonFlags {
	f := &CommonFlags{}
	fs.StringVar(&f.DBPath, "db", "", "caminho do banco SQLite (padrão: PATIO_DB_PATH ou database.db)")
	fs.StringVar(&f.ConfigPath, "config", "", "arquivo YAML de configuração (padrão: PATIO_CONFIG)")
	fs.BoolVar(&f.NoBackup, "no-backup", false, "não criar backup antes de escrever")
	fs.StringVar(&f.Unidade, "unidade", "", "filtrar por unidade")
	return f
}

// Parse interpreta os argumentos; erro de sintaxe vira erro de validação
func Parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return apperrors.NewValidationError("invalid arguments", err)
	}
	return nil
}

// Runtime estado de uma execução
type Runtime struct {
	Name    string
	Config  *config.Config
	RunID   string
	Out     io.Writer
	Printer *reports.Printer
	started time.Time
}

// Setup carrega a configuração, aplica as flags por cima e prepara o logging
func Setup(ctx context.Context, name string, flags *CommonFlags, out io.Writer) (context.Context, *Runtime, error) {
	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		return ctx, nil, apperrors.NewValidationError("failed to load config", err)
	}
	if flags.DBPath != "" {
		cfg.DatabasePath = flags.DBPath
	}
	if flags.NoBackup {
		cfg.SkipBackup = true
	}
	if flags.Unidade != "" {
		cfg.Unidade = flags.Unidade
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logging.LogDebug(ctx, "tool started", "tool", name, "db", cfg.DatabasePath)

	return ctx, &Runtime{
		Name:    name,
		Config:  cfg,
		RunID:   runID,
		Out:     out,
		Printer: reports.NewPrinter(out),
		started: time.Now(),
	}, nil
}

// OpenDB abre o banco configurado; nunca cria o arquivo
func (r *Runtime) OpenDB() (*database.DB, error) {
	return database.Open(r.Config.DatabasePath)
}

// Backup copia o banco para o diretório de backups antes de uma escrita.
// Retorna nil quando o backup foi desligado ou o banco é em memória.
func (r *Runtime) Backup(ctx context.Context, db *database.DB) (*backup.Info, error) {
	if r.Config.SkipBackup || db.IsInMemory() {
		logging.LogWarn(ctx, "backup skipped", "db", db.Path())
		return nil, nil
	}
	info, err := backup.Create(db.Path(), r.Config.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("failed to back up database before writing: %w", err)
	}
	r.Printer.Info("Backup: %s", info.Path)
	return info, nil
}

// Finish registra a duração da execução
func (r *Runtime) Finish(ctx context.Context) {
	logging.LogDuration(ctx, r.Name, time.Since(r.started))
}

// Main executa run com contexto cancelável por Ctrl+C e sai com o código
// correspondente ao erro
func Main(name string, run func(ctx context.Context, args []string) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	os.Exit(Report(ctx, os.Stderr, name, err))
}

// Report imprime o erro para o operador e devolve o código de saída
func Report(ctx context.Context, w io.Writer, name string, err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	logging.LogError(ctx, err, "tool failed", "tool", name)
	reports.NewPrinter(w).Fail("%s: %v", name, err)
	return apperrors.ExitCode(err)
}
