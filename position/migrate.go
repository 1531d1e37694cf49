package position

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"

	"patiotools/database"
)

// canonicalMigration marca em schema_migrations a última conversão aplicada
const canonicalMigration = "posicao_formato_canonico"

// Options opções de Migrate
type Options struct {
	Apply bool
}

// Change conversão de um valor
type Change struct {
	Table  string
	Column string
	RowID  int64
	From   string
	To     string
}

// Unconverted valor que ficou como estava
type Unconverted struct {
	Table  string
	Column string
	RowID  int64
	Value  string
	Reason string
}

// Collision posição ocupada por mais de um container depois da conversão
type Collision struct {
	Posicao string
	Numeros []string
}

// MigrationReport resultado de Migrate
type MigrationReport struct {
	Scanned          int
	AlreadyCanonical int
	Empty            int
	InTransit        int
	Converted        []Change
	Unconverted      []Unconverted
	Collisions       []Collision
	Applied          bool
}

type column struct {
	table  string
	column string
}

var migrationColumns = []column{
	{"containers", "posicao_atual"},
	{"operacoes", "posicao"},
	{"operacoes", "posicao_anterior"},
}

// Migrate percorre as colunas de posição convertendo a notação legada.
// Sem Apply apenas relata; com Apply grava tudo numa transação.
func Migrate(ctx context.Context, db *database.DB, opts Options) (*MigrationReport, error) {
	q := db.Conn()

	if err := database.RequireColumns(ctx, q, "containers", "id", "numero", "posicao_atual"); err != nil {
		return nil, err
	}

	report := &MigrationReport{}
	for _, col := range migrationColumns {
		present, err := database.HasColumn(ctx, q, col.table, col.column)
		if err != nil {
			return nil, err
		}
		if !present {
			log.Printf("[Position] %s.%s not found, skipping", col.table, col.column)
			continue
		}
		if err := scanColumn(ctx, q, col, report); err != nil {
			return nil, err
		}
	}

	collisions, err := findCollisions(ctx, q, report.Converted)
	if err != nil {
		return nil, err
	}
	report.Collisions = collisions

	if !opts.Apply || len(report.Converted) == 0 {
		return report, nil
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, change := range report.Converted {
			// a condição no valor antigo evita sobrescrever edição concorrente da aplicação
			query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ? AND %s = ?`, change.Table, change.Column, change.Column)
			if _, err := tx.ExecContext(ctx, query, change.To, change.RowID, change.From); err != nil {
				return fmt.Errorf("failed to update %s.%s of row %d: %w", change.Table, change.Column, change.RowID, err)
			}
		}
		if err := database.MarkMigrationApplied(ctx, tx, canonicalMigration); err != nil {
			return err
		}
		return database.LogActivity(ctx, tx, database.ActivityEntry{
			Acao:      "migrar_posicoes",
			Descricao: fmt.Sprintf("%d posicoes convertidas para o formato canonico", len(report.Converted)),
		})
	})
	if err != nil {
		return nil, err
	}

	report.Applied = true
	log.Printf("[Position] Converted %d values, %d left unconverted", len(report.Converted), len(report.Unconverted))
	return report, nil
}

func scanColumn(ctx context.Context, q database.Querier, col column, report *MigrationReport) error {
	query := fmt.Sprintf(`SELECT id, %s FROM %s ORDER BY id`, col.column, col.table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to read %s.%s: %w", col.table, col.column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var raw sql.NullString
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("failed to scan %s.%s: %w", col.table, col.column, err)
		}
		report.Scanned++

		value := raw.String
		switch Classify(value) {
		case KindCanonical:
			report.AlreadyCanonical++
		case KindEmpty:
			report.Empty++
		case KindInTransit:
			report.InTransit++
		case KindLegacy:
			converted, _ := Normalize(value)
			report.Converted = append(report.Converted, Change{
				Table: col.table, Column: col.column, RowID: id, From: value, To: converted,
			})
		default:
			report.Unconverted = append(report.Unconverted, Unconverted{
				Table: col.table, Column: col.column, RowID: id, Value: value, Reason: Reason(value),
			})
		}
	}
	return rows.Err()
}

// findCollisions procura containers que passariam a dividir a mesma posição
func findCollisions(ctx context.Context, q database.Querier, changes []Change) ([]Collision, error) {
	converted := make(map[int64]string)
	for _, change := range changes {
		if change.Table == "containers" {
			converted[change.RowID] = change.To
		}
	}

	rows, err := q.QueryContext(ctx, `SELECT id, numero, posicao_atual FROM containers ORDER BY numero`)
	if err != nil {
		return nil, fmt.Errorf("failed to read container positions: %w", err)
	}
	defer rows.Close()

	occupants := make(map[string][]string)
	for rows.Next() {
		var id int64
		var numero string
		var posicao sql.NullString
		if err := rows.Scan(&id, &numero, &posicao); err != nil {
			return nil, fmt.Errorf("failed to scan container position: %w", err)
		}
		final := posicao.String
		if to, ok := converted[id]; ok {
			final = to
		}
		if Classify(final) != KindCanonical {
			continue
		}
		occupants[final] = append(occupants[final], numero)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var collisions []Collision
	for posicao, numeros := range occupants {
		if len(numeros) > 1 {
			collisions = append(collisions, Collision{Posicao: posicao, Numeros: numeros})
		}
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].Posicao < collisions[j].Posicao })
	return collisions, nil
}
