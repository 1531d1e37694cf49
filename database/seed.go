package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"patiotools/internal/apperrors"
)

// SeedOptions parâmetros do banco de demonstração
type SeedOptions struct {
	Seed       int64
	Usuarios   int
	Containers int
	// Password senha de todos os usuários gerados (o admin inclusive)
	Password string
	// HashPassword gera o hash no formato atual da aplicação
	HashPassword func(password string) (string, error)
	// LegacyHash gera o hash antigo (SHA-1 hex); nil desativa usuários legados
	LegacyHash func(password string) string
}

// SeedReport quantidades inseridas
type SeedReport struct {
	Usuarios     int
	Containers   int
	Vistorias    int
	Operacoes    int
	Solicitacoes int
}

// Valores usados pelo seed: incluem de propósito as variações que as
// ferramentas de reparo precisam encontrar.
var (
	seedUnidades  = []string{"Floriano", "Suzano", "Rio Grande"}
	seedNiveis    = []string{"operador", "vistoriador", "admin", "admin_administrativo", "inventariante", "Administrador", " Vistoria "}
	seedStatuses  = []string{"no patio", "No Pátio", "carregado", "CARREGADO", "vistoriado", "em transito"}
	seedArmadores = []string{"MSC", "Maersk", "CMA CGM", "Hapag-Lloyd", "Evergreen"}
	seedCondicoes = []string{"ok", "avariado", "amassado", "furado"}
	seedTiposOp   = []string{"descarga", "movimentacao", "carregamento"}
	seedBays      = []string{"A", "B", "C", "D", "E"}
	seedPrefixes  = []string{"MSCU", "MAEU", "CMAU", "HLXU", "EGHU", "TGHU"}
)

// SeedDemo cria o esquema e popula um banco de demonstração numa transação.
// A mesma semente gera sempre os mesmos dados.
func SeedDemo(ctx context.Context, db *DB, opts SeedOptions) (*SeedReport, error) {
	if opts.HashPassword == nil {
		return nil, apperrors.NewValidationError("seed requires a password hasher", nil)
	}
	if opts.Password == "" {
		return nil, apperrors.NewValidationError("seed password is empty", nil)
	}
	if opts.Usuarios <= 0 {
		opts.Usuarios = 8
	}
	if opts.Containers <= 0 {
		opts.Containers = 30
	}

	faker := gofakeit.New(opts.Seed)
	report := &SeedReport{}

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if err := applySchema(ctx, tx, CanonicalSchema, &PatchReport{}); err != nil {
			return err
		}

		var count int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM usuarios`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count usuarios: %w", err)
		}
		if count > 0 {
			return apperrors.NewConflictError("database already has usuarios, refusing to seed", nil).WithContext(db.Path())
		}

		usuarioIDs, err := seedUsuarios(ctx, tx, faker, opts, report)
		if err != nil {
			return err
		}
		containers, err := seedContainers(ctx, tx, faker, opts.Containers, report)
		if err != nil {
			return err
		}
		if err := seedVistoriasEOperacoes(ctx, tx, faker, containers, usuarioIDs, report); err != nil {
			return err
		}
		if err := seedSolicitacoes(ctx, tx, faker, report); err != nil {
			return err
		}

		return LogActivity(ctx, tx, ActivityEntry{
			Acao:      "seed_demo",
			Descricao: fmt.Sprintf("%d usuarios, %d containers", report.Usuarios, report.Containers),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Seed] Demo data created: %d usuarios, %d containers, %d vistorias, %d operacoes",
		report.Usuarios, report.Containers, report.Vistorias, report.Operacoes)
	return report, nil
}

func seedUsuarios(ctx context.Context, tx *sql.Tx, faker *gofakeit.Faker, opts SeedOptions, report *SeedReport) ([]int64, error) {
	modern, err := opts.HashPassword(opts.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	insert := func(username, hash, nivel, unidade string) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO usuarios (username, email, password_hash, nivel, nome, unidade, setor, ativo, senha_temporaria, primeiro_login, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 1, 0, 0, ?)`,
			username,
			strings.ToLower(username)+"@patio.local",
			hash,
			nivel,
			faker.Name(),
			unidade,
			faker.RandomString([]string{"operacao", "vistoria", "administrativo"}),
			faker.DateRange(time.Now().AddDate(-2, 0, 0), time.Now()).UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert usuario %q: %w", username, err)
		}
		return res.LastInsertId()
	}

	var ids []int64
	adminID, err := insert("admin", modern, "admin", seedUnidades[0])
	if err != nil {
		return nil, err
	}
	ids = append(ids, adminID)

	for i := 1; i < opts.Usuarios; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(faker.FirstName()), i)
		hash := modern
		if opts.LegacyHash != nil && i%3 == 0 {
			hash = opts.LegacyHash(opts.Password)
		}
		id, err := insert(username, hash, seedNiveis[i%len(seedNiveis)], faker.RandomString(seedUnidades))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	report.Usuarios = len(ids)
	return ids, nil
}

type seededContainer struct {
	id     int64
	numero string
}

func seedContainers(ctx context.Context, tx *sql.Tx, faker *gofakeit.Faker, total int, report *SeedReport) ([]seededContainer, error) {
	var containers []seededContainer
	for i := 0; i < total; i++ {
		numero := fmt.Sprintf("%s%07d", faker.RandomString(seedPrefixes), faker.Number(0, 9999999))
		status := seedStatuses[i%len(seedStatuses)]

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO containers (numero, status, posicao_atual, unidade, tamanho, armador, data_criacao, ultima_atualizacao)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			numero,
			status,
			seedPosition(faker, i, status),
			faker.RandomString(seedUnidades),
			faker.RandomInt([]int{20, 40}),
			faker.RandomString(seedArmadores),
			faker.DateRange(time.Now().AddDate(0, -6, 0), time.Now()).UTC(),
			time.Now().UTC(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert container %s: %w", numero, err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			// número repetido pelo gerador
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get container id for %s: %w", numero, err)
		}
		containers = append(containers, seededContainer{id: id, numero: numero})
	}

	report.Containers = len(containers)
	return containers, nil
}

// seedPosition alterna entre o formato canônico, o legado e os casos especiais
func seedPosition(faker *gofakeit.Faker, i int, status string) any {
	if strings.EqualFold(status, "em transito") {
		return "EM TRANSITO"
	}

	bay := faker.RandomString(seedBays)
	column := faker.Number(1, 20)
	height := faker.Number(1, 5)

	switch i % 7 {
	case 0, 1, 2:
		return fmt.Sprintf("%s%02d-%d", bay, column, height)
	case 3, 4:
		return fmt.Sprintf("%s%02d%d", bay, column, height)
	case 5:
		return nil
	default:
		return ""
	}
}

func seedVistoriasEOperacoes(ctx context.Context, tx *sql.Tx, faker *gofakeit.Faker, containers []seededContainer, usuarioIDs []int64, report *SeedReport) error {
	for i, c := range containers {
		usuarioID := usuarioIDs[i%len(usuarioIDs)]

		var vagao, placa any
		switch i % 3 {
		case 0:
			vagao = fmt.Sprintf("%s%06d", faker.RandomString([]string{"HFE", "GDE", "FHD"}), faker.Number(0, 999999))
		case 1:
			placa = strings.ToUpper(faker.Lexify("???")) + faker.Numerify("#") + strings.ToUpper(faker.Lexify("?")) + faker.Numerify("##")
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO vistorias (container_numero, status, lacre, condicao, vagao, placa, data_vistoria, usuario_id, unidade, observacoes)
			VALUES (?, 'concluida', ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.numero,
			faker.Numerify("LC######"),
			faker.RandomString(seedCondicoes),
			vagao,
			placa,
			faker.DateRange(time.Now().AddDate(0, -3, 0), time.Now()).UTC(),
			usuarioID,
			faker.RandomString(seedUnidades),
			faker.Sentence(6),
		); err != nil {
			return fmt.Errorf("failed to insert vistoria for %s: %w", c.numero, err)
		}
		report.Vistorias++

		// Parte das operações guarda o número do container em container_id,
		// como as versões antigas da aplicação faziam
		var containerRef any = c.id
		if i%5 == 0 {
			containerRef = c.numero
		}

		bay := faker.RandomString(seedBays)
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO operacoes (tipo, modo, container_id, posicao, posicao_anterior, usuario_id, data_operacao, unidade)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			seedTiposOp[i%len(seedTiposOp)],
			faker.RandomString([]string{"ferroviaria", "rodoviaria"}),
			containerRef,
			fmt.Sprintf("%s%02d%d", bay, faker.Number(1, 20), faker.Number(1, 5)),
			fmt.Sprintf("%s%02d-%d", bay, faker.Number(1, 20), faker.Number(1, 5)),
			usuarioID,
			faker.DateRange(time.Now().AddDate(0, -3, 0), time.Now()).UTC(),
			faker.RandomString(seedUnidades),
		); err != nil {
			return fmt.Errorf("failed to insert operacao for %s: %w", c.numero, err)
		}
		report.Operacoes++
	}
	return nil
}

func seedSolicitacoes(ctx context.Context, tx *sql.Tx, faker *gofakeit.Faker, report *SeedReport) error {
	for i := 0; i < 3; i++ {
		nome := faker.Name()
		username := strings.ToLower(strings.ReplaceAll(nome, " ", "."))
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO solicitacoes_registro (nome, username, email, unidade, nivel_solicitado, status, data_solicitacao)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			nome, username, username+"@patio.local",
			faker.RandomString(seedUnidades),
			faker.RandomString([]string{"operador", "vistoriador"}),
			StatusPendente,
			time.Now().UTC(),
		); err != nil {
			return fmt.Errorf("failed to insert solicitacao_registro: %w", err)
		}
		report.Solicitacoes++
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO solicitacoes_senha (usuario_id, username, status, data_solicitacao)
		SELECT id, username, ?, ? FROM usuarios WHERE username <> 'admin' ORDER BY id LIMIT 1`,
		StatusPendente, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert solicitacao_senha: %w", err)
	}
	report.Solicitacoes++
	return nil
}
