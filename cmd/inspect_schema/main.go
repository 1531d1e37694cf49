// inspect_schema imprime tabelas, colunas e contagem de linhas, e aponta
// o que falta em relação ao esquema esperado pela aplicação.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"patiotools/database"
	"patiotools/internal/cli"
	"patiotools/reports"
)

const toolName = "inspect_schema"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	table := fs.String("table", "", "mostrar só esta tabela")
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

	tables, err := database.DescribeSchema(ctx, db.Conn())
	if err != nil {
		return err
	}
	if *table != "" {
		var filtered []database.TableInfo
		for _, t := range tables {
			if strings.EqualFold(t.Name, *table) {
				filtered = append(filtered, t)
			}
		}
		tables = filtered
	}

	p := rt.Printer
	p.Title("Tabelas de %s", db.Path())
	for _, t := range tables {
		p.KeyValue(t.Name, t.RowCount)
	}

	sheet := reports.SchemaSheet(tables)
	p.Title("Colunas")
	p.Table(sheet)

	missing, err := reports.MissingSchema(ctx, db.Conn())
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		p.OK("Esquema completo")
	} else {
		for _, name := range reports.SortedKeys(missing) {
			if cols := missing[name]; len(cols) > 0 {
				p.Warn("%s: faltam as colunas %s", name, strings.Join(cols, ", "))
			} else {
				p.Warn("Tabela %s não existe", name)
			}
		}
		p.Info("Rode fix_schema para criar o que falta.")
	}

	if *xlsx != "" {
		if err := reports.ExportXLSX(*xlsx, sheet); err != nil {
			return err
		}
		p.OK("Planilha gravada em %s", *xlsx)
	}
	return nil
}
