// check_vistorias lista as vistorias recentes com o modo de transporte
// deduzido de vagão e placa.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/cli"
	"patiotools/reports"
	"patiotools/yard"
)

const toolName = "check_vistorias"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	container := fs.String("container", "", "só as vistorias deste container")
	limit := fs.Int("limit", 100, "quantidade de vistorias (0 = todas)")
	xlsx := fs.String("xlsx", "", "exportar para planilha")
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

	rows, err := reports.Vistorias(ctx, db.Conn(), reports.Filter{Unidade: rt.Config.Unidade, Limit: *limit}, *container)
	if err != nil {
		return err
	}

	p := rt.Printer
	sheet := reports.VistoriaSheet(rows)
	p.Title("Vistorias (%d)", len(rows))
	p.Table(sheet)

	counts := reports.ModeCounts(rows)
	p.Title("Modo de transporte")
	for _, modo := range reports.SortedKeys(counts) {
		p.KeyValue(modo, counts[modo])
	}
	if n := counts[yard.ModoIndefinido]; n > 0 {
		p.Warn("%d vistorias sem vagão nem placa, ou com os dois", n)
	}

	if *xlsx != "" {
		if err := reports.ExportXLSX(*xlsx, sheet); err != nil {
			return err
		}
		p.OK("Planilha gravada em %s", *xlsx)
	}
	return nil
}
