// fix_positions converte posições no formato antigo (A011) para o
// formato atual (A01-1) em containers e operacoes. Sem -fix só lista.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"patiotools/internal/cli"
	"patiotools/position"
	"patiotools/reports"
)

const toolName = "fix_positions"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	fix := fs.Bool("fix", false, "gravar as conversões no banco")
	maxRows := fs.Int("max", 50, "linhas exibidas por tabela (0 = todas)")
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
	p.SetMaxRows(*maxRows)

	if *fix {
		if _, err := rt.Backup(ctx, db); err != nil {
			return err
		}
	}

	report, err := position.Migrate(ctx, db, position.Options{Apply: *fix})
	if err != nil {
		return err
	}

	p.Title("Posições")
	p.KeyValue("Analisadas", report.Scanned)
	p.KeyValue("Já no formato atual", report.AlreadyCanonical)
	p.KeyValue("Vazias", report.Empty)
	p.KeyValue("Em trânsito", report.InTransit)
	p.KeyValue("Formato antigo", len(report.Converted))
	p.KeyValue("Inválidas", len(report.Unconverted))

	if len(report.Converted) > 0 {
		p.Title("Conversões")
		sheet := reports.Sheet{Headers: []string{"Tabela", "Coluna", "ID", "De", "Para"}}
		for _, c := range report.Converted {
			sheet.Rows = append(sheet.Rows, []any{c.Table, c.Column, c.RowID, c.From, c.To})
		}
		p.Table(sheet)
	}

	if len(report.Unconverted) > 0 {
		p.Title("Não convertidas")
		sheet := reports.Sheet{Headers: []string{"Tabela", "Coluna", "ID", "Valor", "Motivo"}}
		for _, u := range report.Unconverted {
			sheet.Rows = append(sheet.Rows, []any{u.Table, u.Column, u.RowID, u.Value, u.Reason})
		}
		p.Table(sheet)
	}

	for _, c := range report.Collisions {
		p.Warn("Posição %s ocupada por mais de um container: %s", c.Posicao, strings.Join(c.Numeros, ", "))
	}

	switch {
	case len(report.Converted) == 0:
		p.OK("Nenhuma posição no formato antigo")
	case report.Applied:
		p.OK("%d posições convertidas", len(report.Converted))
	default:
		p.Warn("%d posições a converter. Rode com -fix para gravar.", len(report.Converted))
	}
	return nil
}
