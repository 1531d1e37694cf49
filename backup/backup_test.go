package backup

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patiotools/internal/apperrors"
)

// createTestDBFile cria um arquivo com o cabeçalho do SQLite
func createTestDBFile(t *testing.T, dir, name string) string {
	t.Helper()
	content := append([]byte("SQLite format 3\x00"), []byte("conteudo de teste")...)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestCreate(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestDBFile(t, dir, "database.db")
	require.NoError(t, os.WriteFile(dbPath+"-wal", []byte("wal"), 0644))

	info, err := Create(dbPath, filepath.Join(dir, "backups"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(info.Name, "database_"))
	assert.True(t, strings.HasSuffix(info.Name, ".zip"))
	assert.Equal(t, []string{"database.db", "database.db-wal"}, info.Entries)
	assert.Positive(t, info.Size)

	reader, err := zip.OpenReader(info.Path)
	require.NoError(t, err)
	defer reader.Close()
	require.Len(t, reader.File, 2)
	assert.Equal(t, "database.db", reader.File[0].Name)
}

func TestCreate_UniqueNames(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestDBFile(t, dir, "database.db")

	a, err := Create(dbPath, dir)
	require.NoError(t, err)
	b, err := Create(dbPath, dir)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
}

func TestCreate_MissingDatabase(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "nao_existe.db"), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 3, apperrors.ExitCode(err))
}

func TestList(t *testing.T) {
	dir := t.TempDir()

	backups, err := List(filepath.Join(dir, "ausente"))
	require.NoError(t, err)
	assert.Empty(t, backups)

	for _, name := range []string{
		"database_20240101_080000_aaaaaaaa.zip",
		"database_20240301_080000_bbbbbbbb.zip",
		"database_20240201_080000_cccccccc.zip",
		"notas.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	backups, err = List(dir)
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, "database_20240301_080000_bbbbbbbb.zip", backups[0].Name)
	assert.Equal(t, "database_20240101_080000_aaaaaaaa.zip", backups[2].Name)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local), backups[0].CreatedAt)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"database_20240101_080000_aaaaaaaa.zip",
		"database_20240201_080000_bbbbbbbb.zip",
		"database_20240301_080000_cccccccc.zip",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	removed, err := Prune(dir, 2)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "database_20240101_080000_aaaaaaaa.zip", filepath.Base(removed[0]))

	backups, err := List(dir)
	require.NoError(t, err)
	assert.Len(t, backups, 2)

	_, err = Prune(dir, 0)
	assert.Equal(t, 2, apperrors.ExitCode(err))
}

func TestRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := createTestDBFile(t, dir, "database.db")
	original, err := os.ReadFile(dbPath)
	require.NoError(t, err)

	info, err := Create(dbPath, filepath.Join(dir, "backups"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(dbPath, []byte("corrompido"), 0644))

	err = Restore(info.Path, dbPath, false)
	require.Error(t, err)
	assert.Equal(t, 4, apperrors.ExitCode(err))

	require.NoError(t, Restore(info.Path, dbPath, true))
	restored, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	assert.Equal(t, original, restored)

	err = Restore(filepath.Join(dir, "ausente.zip"), filepath.Join(dir, "novo.db"), false)
	assert.Equal(t, 3, apperrors.ExitCode(err))
}
