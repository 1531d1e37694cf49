package reports

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"patiotools/database"
	"patiotools/passwords"
	"patiotools/position"
	"patiotools/yard"
)

func newReportDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = database.PatchSchema(ctx, db, false)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`
		INSERT INTO containers (numero, status, posicao_atual, unidade, tamanho) VALUES
			('MSCU0000001', 'no patio', 'A01-1', 'Suzano', 20),
			('MSCU0000002', 'No Pátio', 'A011', 'Suzano', 40),
			('MSCU0000003', 'carregado', 'EM TRANSITO', 'Suzano', 20),
			('MSCU0000004', 'carregado', NULL, 'Floriano', 20),
			('MSCU0000005', 'vistoriado', 'B02-2', 'Floriano', 40),
			('MSCU0000006', 'perdido', 'C03-3', 'Floriano', 20);
		INSERT INTO usuarios (username, password_hash, nivel, unidade) VALUES
			('admin', 'pbkdf2:sha256:1000$abc$00', 'admin', 'Suzano'),
			('joao', '5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8', 'inventariante', 'Suzano'),
			('duda', 'scrypt:32768:8:1$abc$00', 'gerente', 'Floriano');
		INSERT INTO vistorias (container_numero, vagao, placa, unidade) VALUES
			('MSCU0000001', 'HFE000001', NULL, 'Suzano'),
			('MSCU0000002', NULL, 'ABC1D23', 'Suzano'),
			('MSCU0000003', '', '', 'Suzano');
		INSERT INTO solicitacoes_registro (nome, username, status) VALUES ('Eva', 'eva', 'pendente'), ('Fabio', 'fabio', 'rejeitada');
		INSERT INTO solicitacoes_senha (usuario_id, username, status) VALUES (2, 'joao', 'pendente');
		INSERT INTO login_attempts (username, ip_address, success, timestamp) VALUES
			('admin', '10.0.0.1', 1, '2024-03-01 10:00:00'),
			('joao', '10.0.0.2', 0, '2024-03-01 10:01:00'),
			('joao', '10.0.0.2', 0, '2024-03-01 10:02:00'),
			('joao', '10.0.0.2', 1, '2024-03-01 10:03:00');
	`)
	require.NoError(t, err)
	return db
}

func TestContainerAvailability(t *testing.T) {
	db := newReportDB(t)

	rows, err := ContainerAvailability(context.Background(), db.Conn(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 6)

	available := AvailableOnly(rows)
	require.Len(t, available, 2)
	assert.Equal(t, "MSCU0000001", available[0].Numero)
	assert.Equal(t, "MSCU0000002", available[1].Numero)
	assert.Equal(t, position.KindLegacy, available[1].PosicaoFmt)

	byNumero := make(map[string]ContainerRow)
	for _, r := range rows {
		byNumero[r.Numero] = r
	}
	assert.Equal(t, "em transito", byNumero["MSCU0000003"].Reason)
	assert.Equal(t, "sem posicao", byNumero["MSCU0000004"].Reason)

	sheet := ContainerSheet("Disponiveis", available)
	assert.Len(t, sheet.Rows, 2)
	assert.Len(t, sheet.Rows[0], len(sheet.Headers))

	suzano, err := ContainerAvailability(context.Background(), db.Conn(), Filter{Unidade: "suzano"})
	require.NoError(t, err)
	assert.Len(t, suzano, 3)
}

func TestStatusSummary(t *testing.T) {
	db := newReportDB(t)

	counts, err := StatusSummary(context.Background(), db.Conn(), Filter{})
	require.NoError(t, err)

	byStatus := make(map[string]StatusCount)
	for _, c := range counts {
		byStatus[c.Status] = c
	}
	assert.Equal(t, int64(2), byStatus["carregado"].Total)
	assert.Equal(t, yard.StatusNoPatio, byStatus["No Pátio"].Canonical)
	assert.True(t, byStatus["No Pátio"].Known)
	assert.False(t, byStatus["perdido"].Known)
	assert.Equal(t, "carregado", counts[0].Status, "largest group first")
}

func TestUsuarios(t *testing.T) {
	db := newReportDB(t)

	rows, err := Usuarios(context.Background(), db.Conn(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byName := make(map[string]UsuarioRow)
	for _, r := range rows {
		byName[r.Username] = r
	}
	assert.True(t, byName["admin"].NivelValido)
	assert.Equal(t, passwords.AlgPBKDF2, byName["admin"].HashAlgorithm)
	assert.False(t, byName["joao"].NivelValido)
	assert.Equal(t, yard.NivelOperador, byName["joao"].NivelSugerido)
	assert.Equal(t, passwords.AlgSHA1, byName["joao"].HashAlgorithm)
	assert.Empty(t, byName["duda"].NivelSugerido)
	assert.Equal(t, passwords.AlgScrypt, byName["duda"].HashAlgorithm)
}

func TestPending(t *testing.T) {
	db := newReportDB(t)

	pending, err := Pending(context.Background(), db.Conn())
	require.NoError(t, err)
	require.Len(t, pending.Registro, 1)
	assert.Equal(t, "eva", pending.Registro[0].Username)
	require.Len(t, pending.Senha, 1)

	sheets := pending.Sheets()
	require.Len(t, sheets, 2)
	assert.Equal(t, "2", sheets[1].Rows[0][1])
}

func TestPending_MissingTables(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	pending, err := Pending(context.Background(), db.Conn())
	require.NoError(t, err)
	assert.Empty(t, pending.Registro)
	assert.Empty(t, pending.Senha)
}

func TestVistorias(t *testing.T) {
	db := newReportDB(t)

	rows, err := Vistorias(context.Background(), db.Conn(), Filter{Limit: 10}, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	counts := ModeCounts(rows)
	assert.Equal(t, 1, counts[yard.ModoFerroviario])
	assert.Equal(t, 1, counts[yard.ModoRodoviario])
	assert.Equal(t, 1, counts[yard.ModoIndefinido])

	one, err := Vistorias(context.Background(), db.Conn(), Filter{}, "mscu0000002")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, yard.ModoRodoviario, one[0].Modo)
}

func TestLoginSummaries(t *testing.T) {
	db := newReportDB(t)

	summaries, err := LoginSummaries(context.Background(), db.Conn(), time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "joao", summaries[0].Username)
	assert.Equal(t, int64(3), summaries[0].Total)
	assert.Equal(t, int64(2), summaries[0].Failures)
	assert.True(t, time.Date(2024, 3, 1, 10, 3, 0, 0, time.UTC).Equal(summaries[0].LastAttempt))
}

func TestLoginSummaries_SinceMixedFormats(t *testing.T) {
	db := newReportDB(t)
	ctx := context.Background()

	// datetime.now().isoformat() do Python grava com "T" e microssegundos
	_, err := db.Conn().Exec(`
		INSERT INTO login_attempts (username, ip_address, success, timestamp) VALUES
			('maria', '10.0.0.3', 0, '2024-03-01T10:01:30.123456'),
			('maria', '10.0.0.3', 0, '2024-03-01T10:05:00'),
			('pedro', '10.0.0.4', 0, '2024-03-01T09:59:59')
	`)
	require.NoError(t, err)

	since := time.Date(2024, 3, 1, 10, 1, 0, 0, time.UTC)
	summaries, err := LoginSummaries(ctx, db.Conn(), since, 0)
	require.NoError(t, err)

	byUser := make(map[string]LoginSummary)
	for _, s := range summaries {
		byUser[s.Username] = s
	}
	require.Len(t, byUser, 2)
	assert.NotContains(t, byUser, "admin")
	assert.NotContains(t, byUser, "pedro")
	assert.Equal(t, int64(3), byUser["joao"].Total)
	assert.Equal(t, int64(2), byUser["maria"].Total)
	assert.True(t, time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC).Equal(byUser["maria"].LastAttempt))
}

func TestMissingSchema(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Conn().Exec(`CREATE TABLE usuarios (id INTEGER PRIMARY KEY, username TEXT, password_hash TEXT, nivel TEXT)`)
	require.NoError(t, err)

	missing, err := MissingSchema(context.Background(), db.Conn())
	require.NoError(t, err)
	assert.Contains(t, missing["usuarios"], "unidade")
	assert.Contains(t, missing, "containers")
	assert.Equal(t, "containers", SortedKeys(missing)[0])
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.SetMaxRows(1)

	p.Title("Containers")
	p.Table(Sheet{
		Headers: []string{"Numero", "Posicao"},
		Rows:    [][]any{{"MSCU0000001", "A01-1"}, {"MSCU0000002", nil}},
	})
	p.Warn("%d containers sem posicao", 1)
	p.Table(Sheet{Headers: []string{"X"}})

	out := buf.String()
	assert.Contains(t, out, "Containers")
	assert.Contains(t, out, "Numero")
	assert.Contains(t, out, "MSCU0000001")
	assert.NotContains(t, out, "MSCU0000002")
	assert.Contains(t, out, "mais 1 linhas")
	assert.Contains(t, out, "2 registros")
	assert.Contains(t, out, "[AVISO] 1 containers sem posicao")
	assert.Contains(t, out, "(nenhum registro)")
}

func TestExportXLSX(t *testing.T) {
	db := newReportDB(t)
	ctx := context.Background()

	rows, err := ContainerAvailability(ctx, db.Conn(), Filter{})
	require.NoError(t, err)
	usuarios, err := Usuarios(ctx, db.Conn(), Filter{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "relatorio.xlsx")
	err = ExportXLSX(path,
		ContainerSheet("Containers", rows),
		UsuarioSheet(usuarios),
		ContainerSheet("Containers", AvailableOnly(rows)),
	)
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Containers", "Usuarios", "Containers 2"}, f.GetSheetList())

	header, err := f.GetCellValue("Containers", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Numero", header)

	first, err := f.GetCellValue("Containers", "A2")
	require.NoError(t, err)
	assert.Equal(t, "MSCU0000001", first)

	sheetRows, err := f.GetRows("Usuarios")
	require.NoError(t, err)
	assert.Len(t, sheetRows, 4)
}

func TestExportXLSX_NoSheets(t *testing.T) {
	err := ExportXLSX(filepath.Join(t.TempDir(), "vazio.xlsx"))
	assert.Error(t, err)
}

func TestSheetName(t *testing.T) {
	used := make(map[string]bool)
	long := "Um nome de aba muito comprido para o Excel aceitar"

	first := sheetName(long, 0, used)
	assert.Len(t, []rune(first), maxSheetName)
	second := sheetName(long, 1, used)
	assert.Len(t, []rune(second), maxSheetName)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "Relatorio 3", sheetName("", 2, used))
}
