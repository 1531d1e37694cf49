package yard

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patiotools/database"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "no patio", Fold("  No   Pátio "))
	assert.Equal(t, "em transito", Fold("EM TRÂNSITO"))
	assert.Equal(t, "", Fold("   "))
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		known bool
	}{
		{"no patio", StatusNoPatio, true},
		{"No Pátio", StatusNoPatio, true},
		{"NO_PATIO", StatusNoPatio, true},
		{"CARREGADO", StatusCarregado, true},
		{"Vistoriado ", StatusVistoriado, true},
		{"perdido", "perdido", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, known := NormalizeStatus(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}

func TestIsAvailableForMovement(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		posicao string
		want    bool
	}{
		{"no patio with position", "no patio", "A01-1", true},
		{"accented status", "No Pátio", "B03-2", true},
		{"carregado", "carregado", "C10-5", true},
		{"legacy position still counts", "no patio", "A011", true},
		{"empty position", "no patio", "", false},
		{"blank position", "carregado", "   ", false},
		{"in transit sentinel", "no patio", "EM TRANSITO", false},
		{"in transit accented", "carregado", "em trânsito", false},
		{"vistoriado", "vistoriado", "A01-1", false},
		{"empty status", "", "A01-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAvailableForMovement(tt.status, tt.posicao))
			assert.Equal(t, tt.want, UnavailableReason(tt.status, tt.posicao) == "")
		})
	}
}

func TestTransportMode(t *testing.T) {
	assert.Equal(t, ModoFerroviario, TransportMode("HFE123456", ""))
	assert.Equal(t, ModoRodoviario, TransportMode("", "ABC1D23"))
	assert.Equal(t, ModoRodoviario, TransportMode("  ", "ABC1D23"))
	assert.Equal(t, ModoIndefinido, TransportMode("HFE123456", "ABC1D23"))
	assert.Equal(t, ModoIndefinido, TransportMode("", ""))
}

func TestNormalizeNivel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"operador", NivelOperador, true},
		{"Admin", NivelAdmin, true},
		{" Vistoria ", NivelVistoriador, true},
		{"inventariante", NivelOperador, true},
		{"Administrador", NivelAdmin, true},
		{"admin administrativo", NivelAdminAdministrativo, true},
		{"Admin-Administrativo", NivelAdminAdministrativo, true},
		{"gerente", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeNivel(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			if ok {
				assert.True(t, IsValidNivel(got))
			}
		})
	}

	assert.False(t, IsValidNivel("Admin"), "IsValidNivel does not normalize")
}

func newRepairDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.PatchSchema(ctx, db, false)
	require.NoError(t, err)
	return db
}

func TestFixNiveis(t *testing.T) {
	ctx := context.Background()
	db := newRepairDB(t)

	_, err := db.Conn().Exec(`
		INSERT INTO usuarios (username, password_hash, nivel) VALUES
			('ana', 'x', 'operador'),
			('bia', 'x', 'inventariante'),
			('caio', 'x', 'Administrador'),
			('duda', 'x', 'gerente');
		INSERT INTO solicitacoes_registro (username, nivel_solicitado, status) VALUES
			('eva', 'Vistoria', 'pendente'),
			('fabio', 'Vistoria', 'aprovada');
	`)
	require.NoError(t, err)

	dry, err := FixNiveis(ctx, db, RepairOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, dry.Checked)
	assert.Len(t, dry.Fixes, 2)
	require.Len(t, dry.Unmappable, 1)
	assert.Equal(t, "duda", dry.Unmappable[0].Username)
	require.Len(t, dry.PendingRequests, 1)
	assert.False(t, dry.Applied)

	var nivel string
	require.NoError(t, db.Conn().QueryRow(`SELECT nivel FROM usuarios WHERE username = 'bia'`).Scan(&nivel))
	assert.Equal(t, "inventariante", nivel, "dry run must not write")

	applied, err := FixNiveis(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	assert.True(t, applied.Applied)

	require.NoError(t, db.Conn().QueryRow(`SELECT nivel FROM usuarios WHERE username = 'bia'`).Scan(&nivel))
	assert.Equal(t, NivelOperador, nivel)
	require.NoError(t, db.Conn().QueryRow(`SELECT nivel FROM usuarios WHERE username = 'caio'`).Scan(&nivel))
	assert.Equal(t, NivelAdmin, nivel)
	require.NoError(t, db.Conn().QueryRow(`SELECT nivel FROM usuarios WHERE username = 'duda'`).Scan(&nivel))
	assert.Equal(t, "gerente", nivel)
	require.NoError(t, db.Conn().QueryRow(`SELECT nivel_solicitado FROM solicitacoes_registro WHERE username = 'fabio'`).Scan(&nivel))
	assert.Equal(t, "Vistoria", nivel, "only pending requests are touched")

	again, err := FixNiveis(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	assert.Empty(t, again.Fixes)
	assert.False(t, again.Applied)
}

func TestFixStatuses(t *testing.T) {
	ctx := context.Background()
	db := newRepairDB(t)

	_, err := db.Conn().Exec(`
		INSERT INTO containers (numero, status) VALUES
			('MSCU0000001', 'No Pátio'),
			('MSCU0000002', 'carregado'),
			('MSCU0000003', 'sumiu')
	`)
	require.NoError(t, err)

	report, err := FixStatuses(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	require.Len(t, report.Fixes, 1)
	assert.Equal(t, "MSCU0000001", report.Fixes[0].Numero)
	require.Len(t, report.Unknown, 1)

	var status string
	require.NoError(t, db.Conn().QueryRow(`SELECT status FROM containers WHERE numero = 'MSCU0000001'`).Scan(&status))
	assert.Equal(t, StatusNoPatio, status)
}

func TestFixOperacaoContainerIDs(t *testing.T) {
	ctx := context.Background()
	db := newRepairDB(t)

	_, err := db.Conn().Exec(`
		INSERT INTO containers (id, numero, status) VALUES (10, 'MSCU0000010', 'no patio'), (11, 'MSCU0000011', 'carregado');
		INSERT INTO operacoes (id, tipo, container_id) VALUES
			(1, 'descarga', 10),
			(2, 'movimentacao', 'MSCU0000011'),
			(3, 'movimentacao', ' mscu0000010 '),
			(4, 'carregamento', 'XXXX9999999');
		INSERT INTO operacoes_carregamento (id, container_id, vagao) VALUES (1, 'MSCU0000011', 'HFE000001');
	`)
	require.NoError(t, err)

	report, err := FixOperacaoContainerIDs(ctx, db, RepairOptions{})
	require.NoError(t, err)
	assert.Len(t, report.Fixes, 3)
	require.Len(t, report.Unresolved, 1)
	assert.Equal(t, int64(4), report.Unresolved[0].OperacaoID)
	assert.NotEmpty(t, report.Unresolved[0].Reason)

	report, err = FixOperacaoContainerIDs(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	assert.True(t, report.Applied)

	var typ string
	var id int64
	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id), container_id FROM operacoes WHERE id = 2`).Scan(&typ, &id))
	assert.Equal(t, "integer", typ)
	assert.Equal(t, int64(11), id)

	require.NoError(t, db.Conn().QueryRow(
		`SELECT container_id FROM operacoes WHERE id = 3`).Scan(&id))
	assert.Equal(t, int64(10), id)

	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id) FROM operacoes WHERE id = 4`).Scan(&typ))
	assert.Equal(t, "text", typ, "unresolved rows stay as they are")

	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id) FROM operacoes_carregamento WHERE id = 1`).Scan(&typ))
	assert.Equal(t, "integer", typ)
}

func TestFixOperacaoContainerIDs_RebuildsTextColumn(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`
		CREATE TABLE containers (id INTEGER PRIMARY KEY, numero TEXT);
		CREATE TABLE operacoes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tipo TEXT NOT NULL,
			container_id TEXT,
			data_operacao TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_operacoes_container_id ON operacoes(container_id);
		INSERT INTO containers (id, numero) VALUES (1, 'MSCU0000001'), (2, 'MSCU0000002');
		INSERT INTO operacoes (id, tipo, container_id) VALUES
			(1, 'descarga', 'MSCU0000001'),
			(2, 'movimentacao', '2'),
			(3, 'carregamento', 'XXXX9999999');
	`)
	require.NoError(t, err)

	dry, err := FixOperacaoContainerIDs(ctx, db, RepairOptions{})
	require.NoError(t, err)
	assert.False(t, dry.Applied)
	assert.Len(t, dry.Fixes, 2)
	assert.Empty(t, dry.Rebuilt)

	declared, err := database.ColumnType(ctx, db.Conn(), "operacoes", "container_id")
	require.NoError(t, err)
	assert.Equal(t, "TEXT", declared, "dry run keeps the table")

	report, err := FixOperacaoContainerIDs(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	assert.True(t, report.Applied)
	assert.Equal(t, []string{"operacoes"}, report.Rebuilt)

	declared, err = database.ColumnType(ctx, db.Conn(), "operacoes", "container_id")
	require.NoError(t, err)
	assert.Equal(t, "INTEGER", declared)

	var typ string
	var id int64
	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id), container_id FROM operacoes WHERE id = 1`).Scan(&typ, &id))
	assert.Equal(t, "integer", typ)
	assert.Equal(t, int64(1), id)

	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id), container_id FROM operacoes WHERE id = 2`).Scan(&typ, &id))
	assert.Equal(t, "integer", typ)
	assert.Equal(t, int64(2), id)

	var raw string
	require.NoError(t, db.Conn().QueryRow(
		`SELECT typeof(container_id), container_id FROM operacoes WHERE id = 3`).Scan(&typ, &raw))
	assert.Equal(t, "text", typ, "unresolved rows stay as they are")
	assert.Equal(t, "XXXX9999999", raw)

	var count int
	require.NoError(t, db.Conn().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_operacoes_container_id'`).Scan(&count))
	assert.Equal(t, 1, count)

	// autoincrement e default sobrevivem à recriação
	_, err = db.Conn().Exec(`INSERT INTO operacoes (tipo, container_id) VALUES ('descarga', 1)`)
	require.NoError(t, err)
	var dataOperacao sql.NullString
	require.NoError(t, db.Conn().QueryRow(
		`SELECT id, data_operacao FROM operacoes ORDER BY id DESC LIMIT 1`).Scan(&id, &dataOperacao))
	assert.Equal(t, int64(4), id)
	assert.True(t, dataOperacao.Valid)

	second, err := FixOperacaoContainerIDs(ctx, db, RepairOptions{Apply: true})
	require.NoError(t, err)
	assert.Empty(t, second.Fixes)
	assert.Empty(t, second.Rebuilt)
}
