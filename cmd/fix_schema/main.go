// fix_schema cria as tabelas e colunas que faltam no banco do pátio.
// Nunca apaga nem altera linhas existentes; rodar duas vezes não muda nada.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/database"
	"patiotools/internal/cli"
)

const toolName = "fix_schema"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	dryRun := fs.Bool("dry-run", false, "apenas mostrar o que seria criado")
	if err := cli.Parse(fs, args); err != nil {
		return err
	}

	ctx, rt, err := cli.Setup(ctx, toolName, common, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Finish(ctx)

	db, err := rt.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()

	p := rt.Printer
	p.Title("Esquema de %s", db.Path())

	if !*dryRun {
		plan, err := database.PlanSchema(ctx, db.Conn(), database.CanonicalSchema)
		if err != nil {
			return err
		}
		if plan.Changed() {
			if _, err := rt.Backup(ctx, db); err != nil {
				return err
			}
		}
	}

	report, err := database.PatchSchema(ctx, db, *dryRun)
	if err != nil {
		return err
	}

	if !report.Changed() {
		p.OK("Esquema completo, nada a fazer")
		return nil
	}

	verb := "Criada"
	if report.DryRun {
		verb = "Faltando"
	}
	for _, table := range report.CreatedTables {
		p.Info("  %s tabela %s", verb, table)
	}
	for _, column := range report.AddedColumns {
		p.Info("  %s coluna %s", verb, column)
	}
	for _, migration := range report.AppliedMigrations {
		p.Info("  Migração %s", migration)
	}

	if report.DryRun {
		p.Warn("%d tabelas e %d colunas faltando. Rode sem -dry-run para aplicar.",
			len(report.CreatedTables), len(report.AddedColumns))
		return nil
	}
	p.OK("%d tabelas criadas, %d colunas adicionadas", len(report.CreatedTables), len(report.AddedColumns))
	return nil
}
