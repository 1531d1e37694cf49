// check_usuarios mostra os usuários com nível e hash, as solicitações
// pendentes e o resumo das tentativas de login.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"patiotools/internal/cli"
	"patiotools/passwords"
	"patiotools/reports"
)

const toolName = "check_usuarios"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	since := fs.Duration("since", 7*24*time.Hour, "janela das tentativas de login (0 = todas)")
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

	p := rt.Printer
	p.SetMaxRows(*maxRows)
	filter := reports.Filter{Unidade: rt.Config.Unidade}

	usuarios, err := reports.Usuarios(ctx, db.Conn(), filter)
	if err != nil {
		return err
	}
	invalid, legacy, empty := 0, 0, 0
	for _, u := range usuarios {
		if !u.NivelValido {
			invalid++
		}
		switch {
		case u.HashAlgorithm == passwords.AlgEmpty:
			empty++
		case u.HashAlgorithm.Legacy():
			legacy++
		}
	}

	sheets := []reports.Sheet{reports.UsuarioSheet(usuarios)}
	p.Title("Usuários (%d)", len(usuarios))
	p.Table(sheets[0])
	if invalid > 0 {
		p.Warn("%d usuários com nível inválido (rode fix_niveis)", invalid)
	}
	if legacy > 0 {
		p.Warn("%d usuários com hash legado (rode fix_passwords)", legacy)
	}
	if empty > 0 {
		p.Warn("%d usuários sem senha (rode reset_password)", empty)
	}

	pending, err := reports.Pending(ctx, db.Conn())
	if err != nil {
		return err
	}
	for _, sheet := range pending.Sheets() {
		p.Title("%s pendentes", sheet.Name)
		p.Table(sheet)
		sheets = append(sheets, sheet)
	}

	var from time.Time
	if *since > 0 {
		from = time.Now().Add(-*since)
	}
	logins, err := reports.LoginSummaries(ctx, db.Conn(), from, 0)
	if err != nil {
		rt.Printer.Warn("Tentativas de login indisponíveis: %v", err)
	} else {
		loginSheet := reports.LoginSheet(logins)
		p.Title("Tentativas de login")
		p.Table(loginSheet)
		sheets = append(sheets, loginSheet)
	}

	if *xlsx != "" {
		if err := reports.ExportXLSX(*xlsx, sheets...); err != nil {
			return err
		}
		p.OK("Planilha gravada em %s", *xlsx)
	}

	if invalid == 0 && legacy == 0 && empty == 0 {
		p.OK("Níveis e hashes em ordem")
	}
	return nil
}
