package position

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patiotools/database"
)

var canonicalShape = regexp.MustCompile(`^[A-E][0-2]\d-[1-5]$`)

// Todas as strings legadas possíveis: A000 até E999
func TestNormalize_AllLegacyStrings(t *testing.T) {
	for _, bay := range "ABCDE" {
		for n := 0; n <= 999; n++ {
			legacy := fmt.Sprintf("%c%03d", bay, n)
			column, height := n/10, n%10

			got, ok := Normalize(legacy)
			inRange := column <= 29 && height >= 1 && height <= 5

			if !inRange {
				assert.False(t, ok, legacy)
				assert.Equal(t, legacy, got, "out of range values stay unchanged")
				assert.Equal(t, KindInvalid, Classify(legacy), legacy)
				assert.NotEmpty(t, Reason(legacy))
				continue
			}

			require.True(t, ok, legacy)
			require.Regexp(t, canonicalShape, got)
			p, err := Parse(got)
			require.NoError(t, err)
			assert.Equal(t, string(bay), p.Bay)
			assert.Equal(t, column, p.Column)
			assert.Equal(t, height, p.Height)
			assert.Equal(t, KindCanonical, Classify(got))

			// converter de novo não altera
			again, ok := Normalize(got)
			assert.False(t, ok)
			assert.Equal(t, got, again)
		}
	}
}

func TestNormalize_Examples(t *testing.T) {
	tests := []struct {
		legacy string
		want   string
	}{
		{"A011", "A01-1"},
		{"E205", "E20-5"},
		{"A211", "A21-1"},
		{"B295", "B29-5"},
		{"A001", "A00-1"},
		{"E005", "E00-5"},
	}

	for _, tt := range tests {
		t.Run(tt.legacy, func(t *testing.T) {
			got, ok := Normalize(tt.legacy)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	// altura 0 e coluna 30 ficam fora da notação
	for _, legacy := range []string{"A010", "A301", "C996"} {
		got, ok := Normalize(legacy)
		assert.False(t, ok, legacy)
		assert.Equal(t, legacy, got)
	}
}

func TestNormalize_NonLegacyIsNoop(t *testing.T) {
	inputs := []string{
		"", " ", "A01-1", "a011", " A011", "A011 ", "F011", "A01", "A0111",
		"EM TRANSITO", "A-011", "11A0", "Á011", "A01-9", "patio",
	}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			got, ok := Normalize(in)
			assert.False(t, ok)
			assert.Equal(t, in, got)
			assert.NotEqual(t, KindLegacy, Classify(in))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"A01-1", KindCanonical},
		{"E20-5", KindCanonical},
		{"A21-1", KindCanonical},
		{"A00-1", KindCanonical},
		{"E29-5", KindCanonical},
		{"A30-1", KindInvalid},
		{"A01-0", KindInvalid},
		{"A301", KindInvalid},
		{"B033", KindLegacy},
		{"", KindEmpty},
		{"   ", KindEmpty},
		{"EM TRANSITO", KindInTransit},
		{"em trânsito", KindInTransit},
		{"Z99", KindInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	p, err := Parse("C123")
	require.NoError(t, err)
	assert.Equal(t, Position{Bay: "C", Column: 12, Height: 3}, p)
	assert.Equal(t, "C12-3", p.String())

	_, err = Parse("C12-7")
	assert.Error(t, err)
	_, err = Parse("rua 3")
	assert.Error(t, err)
}

func newMigrationDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.PatchSchema(context.Background(), db, false)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`
		INSERT INTO containers (id, numero, status, posicao_atual) VALUES
			(1, 'MSCU0000001', 'no patio', 'A011'),
			(2, 'MSCU0000002', 'no patio', 'A01-1'),
			(3, 'MSCU0000003', 'no patio', NULL),
			(4, 'MSCU0000004', 'carregado', 'EM TRANSITO'),
			(5, 'MSCU0000005', 'no patio', 'Z999'),
			(6, 'MSCU0000006', 'no patio', 'B052');
		INSERT INTO operacoes (id, tipo, container_id, posicao, posicao_anterior) VALUES
			(1, 'movimentacao', 6, 'B052', 'C123'),
			(2, 'descarga', 1, 'A011', NULL);
	`)
	require.NoError(t, err)
	return db
}

func TestMigrate_DryRun(t *testing.T) {
	ctx := context.Background()
	db := newMigrationDB(t)

	report, err := Migrate(ctx, db, Options{})
	require.NoError(t, err)
	assert.False(t, report.Applied)
	assert.Equal(t, 10, report.Scanned)
	assert.Len(t, report.Converted, 5)
	assert.Equal(t, 1, report.AlreadyCanonical)
	assert.Equal(t, 2, report.Empty)
	assert.Equal(t, 1, report.InTransit)
	require.Len(t, report.Unconverted, 1)
	assert.Equal(t, "Z999", report.Unconverted[0].Value)

	// A011 vira A01-1, que já está ocupada
	require.Len(t, report.Collisions, 1)
	assert.Equal(t, "A01-1", report.Collisions[0].Posicao)
	assert.Equal(t, []string{"MSCU0000001", "MSCU0000002"}, report.Collisions[0].Numeros)

	var posicao string
	require.NoError(t, db.Conn().QueryRow(`SELECT posicao_atual FROM containers WHERE id = 1`).Scan(&posicao))
	assert.Equal(t, "A011", posicao)
}

func TestMigrate_ApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newMigrationDB(t)

	report, err := Migrate(ctx, db, Options{Apply: true})
	require.NoError(t, err)
	assert.True(t, report.Applied)

	var posicao, anterior string
	require.NoError(t, db.Conn().QueryRow(`SELECT posicao_atual FROM containers WHERE id = 6`).Scan(&posicao))
	assert.Equal(t, "B05-2", posicao)
	require.NoError(t, db.Conn().QueryRow(`SELECT posicao, posicao_anterior FROM operacoes WHERE id = 1`).Scan(&posicao, &anterior))
	assert.Equal(t, "B05-2", posicao)
	assert.Equal(t, "C12-3", anterior)
	require.NoError(t, db.Conn().QueryRow(`SELECT posicao_atual FROM containers WHERE id = 5`).Scan(&posicao))
	assert.Equal(t, "Z999", posicao)

	_, applied, err := database.MigrationAppliedAt(ctx, db.Conn(), canonicalMigration)
	require.NoError(t, err)
	assert.True(t, applied)

	second, err := Migrate(ctx, db, Options{Apply: true})
	require.NoError(t, err)
	assert.Empty(t, second.Converted)
	assert.False(t, second.Applied)
	assert.Len(t, second.Unconverted, 1)
}

func TestMigrate_RequiresPositionColumn(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`CREATE TABLE containers (id INTEGER PRIMARY KEY, numero TEXT)`)
	require.NoError(t, err)

	_, err = Migrate(context.Background(), db, Options{})
	require.Error(t, err)
	assert.True(t, database.IsConflict(err))
}
