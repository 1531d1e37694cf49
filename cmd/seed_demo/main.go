// seed_demo cria um banco de demonstração com dados gerados, incluindo as
// inconsistências que as ferramentas de reparo corrigem.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/database"
	"patiotools/internal/apperrors"
	"patiotools/internal/cli"
	"patiotools/passwords"
)

const toolName = "seed_demo"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	seed := fs.Int64("seed", 1, "semente do gerador")
	usuarios := fs.Int("usuarios", 8, "quantidade de usuários")
	containers := fs.Int("containers", 30, "quantidade de containers")
	password := fs.String("password", "", "senha dos usuários gerados (obrigatória)")
	legacy := fs.Bool("legacy", true, "gerar parte dos usuários com hash SHA-1 antigo")
	if err := cli.Parse(fs, args); err != nil {
		return err
	}
	if *password == "" {
		return apperrors.NewValidationError("-password is required", nil)
	}

	ctx, rt, err := cli.Setup(ctx, toolName, common, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Finish(ctx)

	db, err := database.Create(rt.Config.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	opts := database.SeedOptions{
		Seed:         *seed,
		Usuarios:     *usuarios,
		Containers:   *containers,
		Password:     *password,
		HashPassword: passwords.Generate,
	}
	if *legacy {
		opts.LegacyHash = passwords.LegacySHA1
	}

	report, err := database.SeedDemo(ctx, db, opts)
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("Banco de demonstração em %s", db.Path())
	p.KeyValue("Usuários", report.Usuarios)
	p.KeyValue("Containers", report.Containers)
	p.KeyValue("Vistorias", report.Vistorias)
	p.KeyValue("Operações", report.Operacoes)
	p.KeyValue("Solicitações", report.Solicitacoes)
	p.OK("Banco criado; o usuário admin usa a senha informada")
	return nil
}
