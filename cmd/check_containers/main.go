// check_containers lista os containers disponíveis para movimentação e a
// contagem por status. Só lê o banco.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/cli"
	"patiotools/position"
	"patiotools/reports"
)

const toolName = "check_containers"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	status := fs.String("status", "", "filtrar por status")
	all := fs.Bool("all", false, "listar também os indisponíveis")
	xlsx := fs.String("xlsx", "", "exportar para planilha")
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

	filter := reports.Filter{Unidade: rt.Config.Unidade, Status: *status}
	rows, err := reports.ContainerAvailability(ctx, db.Conn(), filter)
	if err != nil {
		return err
	}
	counts, err := reports.StatusSummary(ctx, db.Conn(), filter)
	if err != nil {
		return err
	}

	available := reports.AvailableOnly(rows)
	legacy := 0
	for _, r := range rows {
		if r.PosicaoFmt == position.KindLegacy {
			legacy++
		}
	}

	p := rt.Printer
	p.SetMaxRows(*maxRows)

	p.Title("Containers")
	if filter.Unidade != "" {
		p.KeyValue("Unidade", filter.Unidade)
	}
	p.KeyValue("Total", len(rows))
	p.KeyValue("Disponíveis", len(available))
	p.KeyValue("Posição no formato antigo", legacy)

	p.Title("Por status")
	statusSheet := reports.StatusSheet(counts)
	p.Table(statusSheet)
	for _, c := range counts {
		if !c.Known {
			p.Warn("Status desconhecido: %q (%d containers)", c.Status, c.Total)
		}
	}

	listed := reports.ContainerSheet("Disponiveis", available)
	if *all {
		listed = reports.ContainerSheet("Containers", rows)
	}
	p.Title("%s", listed.Name)
	p.Table(listed)

	if legacy > 0 {
		p.Warn("%d containers com posição no formato antigo (rode fix_positions)", legacy)
	}

	if *xlsx != "" {
		if err := reports.ExportXLSX(*xlsx, listed, statusSheet); err != nil {
			return err
		}
		p.OK("Planilha gravada em %s", *xlsx)
	}
	return nil
}
