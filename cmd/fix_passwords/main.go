// fix_passwords audita os hashes de senha dos usuários. Hashes legados
// (sha1, sha256) cuja senha é conhecida são regenerados no formato atual
// com -fix.
package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"patiotools/internal/apperrors"
	"patiotools/internal/cli"
	"patiotools/passwords"
	"patiotools/reports"
)

const toolName = "fix_passwords"

func main() {
	cli.Main(toolName, run)
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet(toolName, flag.ContinueOnError)
	common := cli.RegisterCommon(fs)
	try := fs.String("try", "", "senhas candidatas separadas por vírgula (padrão: PATIO_CANDIDATE_PASSWORDS)")
	user := fs.String("user", "", "auditar só este usuário")
	password := fs.String("password", "", "senha esperada para -user; se não conferir o hash é redefinido")
	fix := fs.Bool("fix", false, "gravar os hashes novos")
	if err := cli.Parse(fs, args); err != nil {
		return err
	}
	if *password != "" && *user == "" {
		return apperrors.NewValidationError("-password requires -user", nil)
	}

	ctx, rt, err := cli.Setup(ctx, toolName, common, os.Stdout)
	if err != nil {
		return err
	}
	defer rt.Finish(ctx)

	opts := passwords.AuditOptions{
		Candidates: rt.Config.CandidatePasswords,
		Username:   *user,
		Apply:      *fix,
	}
	if *try != "" {
		opts.Candidates = splitList(*try)
	}
	if *password != "" {
		opts.UserPasswords = map[string]string{*user: *password}
	}

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

	report, err := passwords.Audit(ctx, db, opts)
	if err != nil {
		return err
	}

	p := rt.Printer
	p.Title("Hashes de senha")
	for _, alg := range report.Algorithms() {
		p.KeyValue(string(alg), report.ByAlgorithm[alg])
	}

	sheet := reports.Sheet{Headers: []string{"ID", "Username", "Nivel", "Algoritmo", "Candidata", "Acao", "Obs"}}
	for _, u := range report.Users {
		sheet.Rows = append(sheet.Rows, []any{
			u.UsuarioID, u.Username, u.Nivel, string(u.Algorithm), candidateLabel(u.MatchedCandidate), string(u.Action), u.Note,
		})
	}
	p.Title("Usuários")
	p.Table(sheet)

	pending := report.Count(passwords.ActionUpgrade) + report.Count(passwords.ActionReset)
	if review := report.Count(passwords.ActionReview); review > 0 {
		p.Warn("%d usuários precisam de revisão manual (use reset_password)", review)
	}
	switch {
	case report.Applied:
		p.OK("%d hashes regravados", report.Updated)
	case pending > 0:
		p.Warn("%d hashes a regravar. Rode com -fix para gravar.", pending)
	default:
		p.OK("Nenhum hash a regravar")
	}
	return nil
}

func candidateLabel(matched bool) string {
	if matched {
		return "confere"
	}
	return "-"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
