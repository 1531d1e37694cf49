package passwords

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"

	"patiotools/database"
	"patiotools/internal/apperrors"
)

// Action decisão do auditor para um usuário
type Action string

const (
	ActionOK      Action = "ok"
	ActionUpgrade Action = "regenerar" // hash legado com senha conhecida
	ActionReset   Action = "redefinir" // senha atribuída não confere
	ActionReview  Action = "revisar"   // legado sem senha conhecida, ou hash vazio/malformado
)

// AuditOptions opções de Audit
type AuditOptions struct {
	// Candidates senhas testadas contra todos os usuários
	Candidates []string
	// UserPasswords senha esperada por usuário; quando não confere o hash é redefinido
	UserPasswords map[string]string
	// Username restringe a auditoria a um usuário
	Username string
	Apply    bool
	Hasher   Hasher
}

// UserAudit resultado por usuário. A senha nunca é guardada no relatório.
type UserAudit struct {
	UsuarioID        int64
	Username         string
	Nivel            string
	Algorithm        Algorithm
	MatchedCandidate bool
	Action           Action
	Note             string

	password string
}

// AuditReport resultado de Audit
type AuditReport struct {
	Users       []UserAudit
	ByAlgorithm map[Algorithm]int
	Applied     bool
	Updated     int
}

// Count usuários com a ação informada
func (r *AuditReport) Count(action Action) int {
	n := 0
	for _, u := range r.Users {
		if u.Action == action {
			n++
		}
	}
	return n
}

// Algorithms algoritmos encontrados, em ordem alfabética
func (r *AuditReport) Algorithms() []Algorithm {
	algs := make([]Algorithm, 0, len(r.ByAlgorithm))
	for alg := range r.ByAlgorithm {
		algs = append(algs, alg)
	}
	sort.Slice(algs, func(i, j int) bool { return algs[i] < algs[j] })
	return algs
}

// Audit classifica o hash de cada usuário e testa as senhas candidatas.
// Com Apply regenera, numa transação, os hashes marcados para regenerar ou
// redefinir, conferindo cada hash novo contra a senha antes de gravar.
func Audit(ctx context.Context, db *database.DB, opts AuditOptions) (*AuditReport, error) {
	usuarios, err := database.ListUsuarios(ctx, db.Conn(), database.UsuarioFilter{Username: opts.Username})
	if err != nil {
		return nil, err
	}
	if opts.Username != "" && len(usuarios) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("usuario %q not found", opts.Username), nil)
	}

	report := &AuditReport{ByAlgorithm: make(map[Algorithm]int)}
	for _, u := range usuarios {
		result := auditUser(u, opts)
		report.ByAlgorithm[result.Algorithm]++
		report.Users = append(report.Users, result)
	}

	if !opts.Apply {
		return report, nil
	}

	pending := 0
	for _, u := range report.Users {
		if u.Action == ActionUpgrade || u.Action == ActionReset {
			pending++
		}
	}
	if pending == 0 {
		return report, nil
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range report.Users {
			u := &report.Users[i]
			if u.Action != ActionUpgrade && u.Action != ActionReset {
				continue
			}
			newHash, err := generateVerified(opts.Hasher, u.password)
			if err != nil {
				return fmt.Errorf("failed to regenerate hash of %s: %w", u.Username, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE usuarios SET password_hash = ? WHERE id = ?`, newHash, u.UsuarioID); err != nil {
				return fmt.Errorf("failed to update hash of %s: %w", u.Username, err)
			}
			id := u.UsuarioID
			if err := database.LogActivity(ctx, tx, database.ActivityEntry{
				UsuarioID: &id,
				Acao:      "corrigir_hash_senha",
				Descricao: fmt.Sprintf("hash de %s (%s) regenerado: %s", u.Username, u.Algorithm, u.Action),
			}); err != nil {
				return err
			}
			report.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Applied = true
	log.Printf("[Passwords] Regenerated %d hashes", report.Updated)
	return report, nil
}

func auditUser(u database.Usuario, opts AuditOptions) UserAudit {
	result := UserAudit{
		UsuarioID: u.ID,
		Username:  u.Username,
		Nivel:     u.Nivel,
		Algorithm: Classify(u.PasswordHash),
		Action:    ActionOK,
	}

	if result.Algorithm == AlgEmpty {
		result.Action = ActionReview
		result.Note = "hash vazio"
		if expected, ok := opts.UserPasswords[u.Username]; ok {
			result.Action = ActionReset
			result.password = expected
		}
		return result
	}

	if expected, ok := opts.UserPasswords[u.Username]; ok {
		match, err := Verify(u.PasswordHash, expected)
		result.password = expected
		switch {
		case err != nil:
			result.Action = ActionReset
			result.Note = "hash malformado: " + err.Error()
		case !match:
			result.Action = ActionReset
			result.Note = "senha atribuida nao confere"
		case result.Algorithm.Legacy():
			result.MatchedCandidate = true
			result.Action = ActionUpgrade
		default:
			result.MatchedCandidate = true
		}
		return result
	}

	for _, candidate := range opts.Candidates {
		match, err := Verify(u.PasswordHash, candidate)
		if err != nil {
			result.Action = ActionReview
			result.Note = "hash malformado: " + err.Error()
			return result
		}
		if !match {
			continue
		}
		result.MatchedCandidate = true
		result.password = candidate
		if result.Algorithm.Legacy() {
			result.Action = ActionUpgrade
		} else {
			result.Note = "senha candidata confere"
		}
		return result
	}

	if result.Algorithm.Legacy() {
		result.Action = ActionReview
		result.Note = "hash legado sem senha conhecida"
	}
	return result
}

// generateVerified gera o hash e confere a senha contra ele antes de devolver
func generateVerified(h Hasher, password string) (string, error) {
	newHash, err := h.Generate(password)
	if err != nil {
		return "", err
	}
	ok, err := Verify(newHash, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("generated hash does not verify")
	}
	return newHash, nil
}

// ResetOptions opções de ResetPassword
type ResetOptions struct {
	// Temporary força a troca no próximo login
	Temporary bool
	Hasher    Hasher
}

// ResetResult resultado de ResetPassword
type ResetResult struct {
	UsuarioID        int64
	Username         string
	Temporary        bool
	ResolvedRequests int64
}

// ResetPassword grava um novo hash para o usuário e atende as solicitações
// de troca de senha pendentes dele.
func ResetPassword(ctx context.Context, db *database.DB, username, newPassword string, opts ResetOptions) (*ResetResult, error) {
	if len(newPassword) < MinPasswordLength {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("password must have at least %d characters", MinPasswordLength), nil)
	}

	usuario, err := database.GetUsuarioByUsername(ctx, db.Conn(), username)
	if err != nil {
		return nil, err
	}
	if err := database.RequireColumns(ctx, db.Conn(), "usuarios", "senha_temporaria", "primeiro_login"); err != nil {
		return nil, err
	}

	newHash, err := generateVerified(opts.Hasher, newPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to generate hash: %w", err)
	}

	result := &ResetResult{UsuarioID: usuario.ID, Username: usuario.Username, Temporary: opts.Temporary}
	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		flag := 0
		if opts.Temporary {
			flag = 1
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE usuarios SET password_hash = ?, senha_temporaria = ?, primeiro_login = ? WHERE id = ?`,
			newHash, flag, flag, usuario.ID); err != nil {
			return fmt.Errorf("failed to update password of %s: %w", usuario.Username, err)
		}

		resolved, err := resolvePasswordRequests(ctx, tx, usuario)
		if err != nil {
			return err
		}
		result.ResolvedRequests = resolved

		id := usuario.ID
		return database.LogActivity(ctx, tx, database.ActivityEntry{
			UsuarioID: &id,
			Acao:      "reset_senha",
			Descricao: fmt.Sprintf("senha de %s redefinida (temporaria: %t)", usuario.Username, opts.Temporary),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Passwords] Password reset for %s", usuario.Username)
	return result, nil
}

func resolvePasswordRequests(ctx context.Context, tx *sql.Tx, usuario *database.Usuario) (int64, error) {
	exists, err := database.TableExists(ctx, tx, "solicitacoes_senha")
	if err != nil || !exists {
		return 0, err
	}
	missing, err := database.MissingColumns(ctx, tx, "solicitacoes_senha", "status", "usuario_id", "username", "data_aprovacao")
	if err != nil {
		return 0, err
	}
	absent := make(map[string]bool, len(missing))
	for _, name := range missing {
		absent[name] = true
	}

	// Tabelas antigas identificam o usuário por uma só das colunas
	var match sq.Or
	if !absent["usuario_id"] {
		match = append(match, sq.Eq{"usuario_id": usuario.ID})
	}
	if !absent["username"] {
		match = append(match, sq.Eq{"username": usuario.Username})
	}
	if absent["status"] || len(match) == 0 {
		log.Printf("[Passwords] solicitacoes_senha cannot be matched to users, skipping")
		return 0, nil
	}

	update := sq.Update("solicitacoes_senha").
		Set("status", "aprovada").
		Where(sq.Eq{"status": database.StatusPendente}).
		Where(match)
	if !absent["data_aprovacao"] {
		update = update.Set("data_aprovacao", database.FormatTimestamp(time.Now().UTC()))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build password request update: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve password requests of %s: %w", usuario.Username, err)
	}
	return res.RowsAffected()
}
