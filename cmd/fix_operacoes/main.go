// fix_operacoes troca o container_id gravado como texto (o número do
// container) pelo id inteiro em operacoes e operacoes_carregamento.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/cli"
	"patiotools/reports"
	"patiotools/yard"
)

const toolName = "fix_operacoes"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	fix := fs.Bool("fix", false, "gravar as correções")
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

	if *fix {
		if _, err := rt.Backup(ctx, db); err != nil {
			return err
		}
	}

	report, err := yard.FixOperacaoContainerIDs(ctx, db, yard.RepairOptions{Apply: *fix})
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("container_id em texto")
	if len(report.Fixes) > 0 {
		sheet := reports.Sheet{Headers: []string{"Tabela", "Operacao", "Valor", "Container ID"}}
		for _, f := range report.Fixes {
			sheet.Rows = append(sheet.Rows, []any{f.Table, f.OperacaoID, f.Raw, f.ContainerID})
		}
		p.Table(sheet)
	}
	if len(report.Unresolved) > 0 {
		p.Title("Não resolvidos")
		sheet := reports.Sheet{Headers: []string{"Tabela", "Operacao", "Valor", "Motivo"}}
		for _, f := range report.Unresolved {
			sheet.Rows = append(sheet.Rows, []any{f.Table, f.OperacaoID, f.Raw, f.Reason})
		}
		p.Table(sheet)
	}

	switch {
	case len(report.Fixes) == 0 && len(report.Unresolved) == 0:
		p.OK("Todos os container_id são inteiros")
	case report.Applied:
		for _, table := range report.Rebuilt {
			p.Info("  %s recriada com container_id INTEGER", table)
		}
		p.OK("%d operações corrigidas", len(report.Fixes))
	case len(report.Fixes) > 0:
		p.Warn("%d operações a corrigir. Rode com -fix para gravar.", len(report.Fixes))
	}
	if len(report.Unresolved) > 0 {
		p.Warn("%d operações sem container correspondente", len(report.Unresolved))
	}
	return nil
}
