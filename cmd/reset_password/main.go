// reset_password define uma senha nova para um usuário. Por padrão a senha
// é temporária e o usuário troca no próximo login.
package main

import (
	"context"
	"flag"
	"os"

	"patiotools/internal/apperrors"
	"patiotools/internal/cli"
	"patiotools/passwords"
)

const toolName = "reset_password"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	user := fs.String("user", "", "username (obrigatório)")
	password := fs.String("password", "", "senha nova (obrigatória)")
	permanent := fs.Bool("permanent", false, "não marcar a senha como temporária")
	if err := cli.Parse(fs, args); err != nil {
		return err
	}
	if *user == "" || *password == "" {
		fs.Usage()
		return apperrors.NewValidationError("-user and -password are required", nil)
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

	if _, err := rt.Backup(ctx, db); err != nil {
		return err
	}

	result, err := passwords.ResetPassword(ctx, db, *user, *password, passwords.ResetOptions{Temporary: !*permanent})
	if err != nil {
		return err
	}

	p := rt.Printer
	p.OK("Senha de %s (id %d) redefinida", result.Username, result.UsuarioID)
	if result.Temporary {
		p.Info("  A senha é temporária: o usuário deve trocá-la no próximo login")
	}
	if result.ResolvedRequests > 0 {
		p.Info("  %d solicitações de senha marcadas como aprovadas", result.ResolvedRequests)
	}
	return nil
}
