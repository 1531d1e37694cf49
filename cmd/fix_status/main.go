// fix_status padroniza a grafia do status dos containers ("No Pátio",
// "NO_PATIO" e afins viram "no patio").
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/cli"
	"patiotools/reports"
	"patiotools/yard"
)

const toolName = "fix_status"

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

	report, err := yard.FixStatuses(ctx, db, yard.RepairOptions{Apply: *fix})
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("Status dos containers")
	p.KeyValue("Containers verificados", report.Checked)

	if len(report.Fixes) > 0 {
		p.Table(statusSheet(report.Fixes))
	}
	if len(report.Unknown) > 0 {
		p.Title("Status desconhecidos")
		p.Table(statusSheet(report.Unknown))
	}

	switch {
	case len(report.Fixes) == 0:
		p.OK("Nenhum status a padronizar")
	case report.Applied:
		p.OK("%d status padronizados", len(report.Fixes))
	default:
		p.Warn("%d status a padronizar. Rode com -fix para gravar.", len(report.Fixes))
	}
	return nil
}

func statusSheet(fixes []yard.StatusFix) reports.Sheet {
	sheet := reports.Sheet{Headers: []string{"ID", "Numero", "Atual", "Novo"}}
	for _, f := range fixes {
		sheet.Rows = append(sheet.Rows, []any{f.ContainerID, f.Numero, f.From, f.To})
	}
	return sheet
}
