package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"patiotools/backup"
	"patiotools/database"
	"patiotools/internal/cli"
	"patiotools/passwords"
	"patiotools/position"
	"patiotools/reports"
	"patiotools/yard"
)

// app estado compartilhado pelos subcomandos
type app struct {
	out   io.Writer
	flags cli.CommonFlags
	ctx   context.Context
	rt    *cli.Runtime
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "yard-manager",
		Short:         "Manutenção do banco do pátio de containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx, rt, err := cli.Setup(cmd.Context(), cmd.Name(), &a.flags, a.out)
			if err != nil {
				return err
			}
			a.ctx, a.rt = ctx, rt
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.rt != nil {
				a.rt.Finish(a.ctx)
			}
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.DBPath, "db", "", "caminho do banco SQLite (padrão: PATIO_DB_PATH ou database.db)")
	pf.StringVar(&a.flags.ConfigPath, "config", "", "arquivo YAML de configuração (padrão: PATIO_CONFIG)")
	pf.BoolVar(&a.flags.NoBackup, "no-backup", false, "não criar backup antes de escrever")
	pf.StringVar(&a.flags.Unidade, "unidade", "", "filtrar por unidade")

	root.AddCommand(
		a.backupCmd(),
		a.backupsCmd(),
		a.restoreCmd(),
		a.patchCmd(),
		a.auditCmd(),
	)
	return root
}

func (a *app) backupCmd() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Cria um backup zipado do banco",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.rt.Config
			info, err := backup.Create(cfg.DatabasePath, cfg.BackupDir)
			if err != nil {
				return err
			}
			a.rt.Printer.OK("Backup criado: %s (%d bytes)", info.Path, info.Size)

			if keep > 0 {
				removed, err := backup.Prune(cfg.BackupDir, keep)
				if err != nil {
					return err
				}
				for _, path := range removed {
					a.rt.Printer.Info("  removido %s", path)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "manter só os N backups mais recentes (0 = todos)")
	return cmd
}

func (a *app) backupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "Lista os backups existentes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := backup.List(a.rt.Config.BackupDir)
			if err != nil {
				return err
			}
			sheet := reports.Sheet{Headers: []string{"Arquivo", "Tamanho", "Criado em"}}
			for _, b := range list {
				sheet.Rows = append(sheet.Rows, []any{b.Name, b.Size, database.FormatTimestamp(b.CreatedAt)})
			}
			a.rt.Printer.Title("Backups em %s", a.rt.Config.BackupDir)
			a.rt.Printer.Table(sheet)
			return nil
		},
	}
}

func (a *app) restoreCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "restore <arquivo.zip>",
		Short: "Restaura o banco a partir de um backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := a.rt.Config.DatabasePath
			if force && !a.rt.Config.SkipBackup {
				// o banco atual também vira backup antes de ser substituído
				if _, err := os.Stat(target); err == nil {
					if _, err := backup.Create(target, a.rt.Config.BackupDir); err != nil {
						return err
					}
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("failed to stat %s: %w", target, err)
				}
			}
			if err := backup.Restore(args[0], target, force); err != nil {
				return err
			}
			a.rt.Printer.OK("%s restaurado de %s", target, args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "substituir o banco existente")
	return cmd
}

func (a *app) patchCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Cria as tabelas e colunas que faltam",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.rt.OpenDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if !dryRun {
				if _, err := a.rt.Backup(a.ctx, db); err != nil {
					return err
				}
			}
			report, err := database.PatchSchema(a.ctx, db, dryRun)
			if err != nil {
				return err
			}

			p := a.rt.Printer
			if !report.Changed() {
				p.OK("Esquema completo, nada a fazer")
				return nil
			}
			for _, table := range report.CreatedTables {
				p.Info("  tabela %s", table)
			}
			for _, column := range report.AddedColumns {
				p.Info("  coluna %s", column)
			}
			if dryRun {
				p.Warn("%d tabelas e %d colunas faltando", len(report.CreatedTables), len(report.AddedColumns))
			} else {
				p.OK("%d tabelas criadas, %d colunas adicionadas", len(report.CreatedTables), len(report.AddedColumns))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "apenas mostrar o que seria criado")
	return cmd
}

// check resultado de um verificador da auditoria
type check struct {
	name    string
	pending int
	hint    string
	skipped bool
}

func (a *app) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Roda todos os verificadores sem alterar o banco",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.rt.OpenDB()
			if err != nil {
				return err
			}
			defer db.Close()

			checks, err := runAudit(a.ctx, db)
			if err != nil {
				return err
			}

			p := a.rt.Printer
			p.Title("Auditoria de %s", db.Path())
			sheet := reports.Sheet{Headers: []string{"Verificacao", "Pendencias", "Correcao"}}
			total := 0
			for _, c := range checks {
				if c.skipped {
					sheet.Rows = append(sheet.Rows, []any{c.name, "n/d", c.hint})
					continue
				}
				hint := "-"
				if c.pending > 0 {
					hint = c.hint
				}
				sheet.Rows = append(sheet.Rows, []any{c.name, c.pending, hint})
				total += c.pending
			}
			p.Table(sheet)

			if total == 0 {
				p.OK("Nenhuma pendência encontrada")
			} else {
				p.Warn("%d pendências encontradas", total)
			}
			return nil
		},
	}
}

// runAudit executa cada verificador em modo leitura. Um verificador que
// depende de colunas ausentes não derruba os outros.
func runAudit(ctx context.Context, db *database.DB) ([]check, error) {
	missing, err := reports.MissingSchema(ctx, db.Conn())
	if err != nil {
		return nil, err
	}
	schemaPending := 0
	for _, cols := range missing {
		if len(cols) == 0 {
			schemaPending++
		}
		schemaPending += len(cols)
	}
	checks := []check{{name: "esquema", pending: schemaPending, hint: "yard-manager patch"}}

	type runner struct {
		name string
		hint string
		run  func() (int, error)
	}
	runners := []runner{
		{"posicoes", "fix_positions -fix", func() (int, error) {
			r, err := position.Migrate(ctx, db, position.Options{})
			if err != nil {
				return 0, err
			}
			return len(r.Converted), nil
		}},
		{"niveis", "fix_niveis -fix", func() (int, error) {
			r, err := yard.FixNiveis(ctx, db, yard.RepairOptions{})
			if err != nil {
				return 0, err
			}
			return len(r.Fixes) + len(r.PendingRequests) + len(r.Unmappable), nil
		}},
		{"status", "fix_status -fix", func() (int, error) {
			r, err := yard.FixStatuses(ctx, db, yard.RepairOptions{})
			if err != nil {
				return 0, err
			}
			return len(r.Fixes) + len(r.Unknown), nil
		}},
		{"container_id", "fix_operacoes -fix", func() (int, error) {
			r, err := yard.FixOperacaoContainerIDs(ctx, db, yard.RepairOptions{})
			if err != nil {
				return 0, err
			}
			return len(r.Fixes) + len(r.Unresolved), nil
		}},
		{"hashes", "fix_passwords -try ...", func() (int, error) {
			r, err := passwords.Audit(ctx, db, passwords.AuditOptions{})
			if err != nil {
				return 0, err
			}
			legacy := 0
			for _, u := range r.Users {
				if u.Algorithm.Legacy() || u.Algorithm == passwords.AlgEmpty {
					legacy++
				}
			}
			return legacy, nil
		}},
		{"solicitacoes pendentes", "aprovar na aplicação", func() (int, error) {
			r, err := reports.Pending(ctx, db.Conn())
			if err != nil {
				return 0, err
			}
			return len(r.Registro) + len(r.Senha), nil
		}},
	}

	for _, r := range runners {
		pending, err := r.run()
		if err != nil {
			if !database.IsConflict(err) {
				return nil, fmt.Errorf("%s: %w", r.name, err)
			}
			// falta coluna: já aparece na verificação do esquema
			checks = append(checks, check{name: r.name, hint: "yard-manager patch", skipped: true})
			continue
		}
		checks = append(checks, check{name: r.name, pending: pending, hint: r.hint})
	}
	return checks, nil
}
