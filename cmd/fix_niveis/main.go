// fix_niveis corrige níveis de usuário fora do conjunto aceito pela
// aplicação (inventariante, maiúsculas, erros de digitação).
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/cli"
	"patiotools/reports"
	"patiotools/yard"
)

const toolName = "fix_niveis"

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

	report, err := yard.FixNiveis(ctx, db, yard.RepairOptions{Apply: *fix})
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("Níveis de usuário")
	p.KeyValue("Usuários verificados", report.Checked)

	if len(report.Fixes) > 0 {
		p.Table(fixSheet(report.Fixes))
	}
	if len(report.PendingRequests) > 0 {
		p.Title("Solicitações de registro pendentes")
		p.Table(fixSheet(report.PendingRequests))
	}
	if len(report.Unmappable) > 0 {
		p.Title("Sem correspondência")
		p.Table(fixSheet(report.Unmappable))
		p.Warn("%d níveis sem correspondência; valores aceitos: %v", len(report.Unmappable), yard.ValidNiveis)
	}

	total := len(report.Fixes) + len(report.PendingRequests)
	switch {
	case total == 0:
		p.OK("Todos os níveis são válidos")
	case report.Applied:
		p.OK("%d níveis corrigidos", total)
	default:
		p.Warn("%d níveis a corrigir. Rode com -fix para gravar.", total)
	}
	return nil
}

func fixSheet(fixes []yard.NivelFix) reports.Sheet {
	sheet := reports.Sheet{Headers: []string{"ID", "Username", "Atual", "Novo"}}
	for _, f := range fixes {
		to := f.To
		if to == "" {
			to = "?"
		}
		sheet.Rows = append(sheet.Rows, []any{f.UsuarioID, f.Username, f.From, to})
	}
	return sheet
}
