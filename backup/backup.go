// Package backup guarda cópias zipadas do banco antes de qualquer reparo.
package backup

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"patiotools/internal/apperrors"
)

const (
	archiveExt      = ".zip"
	timestampLayout = "20060102_150405"
)

// arquivos auxiliares do SQLite copiados junto com o banco quando existem
var sidecarSuffixes = []string{"-wal", "-journal"}

// Info um arquivo de backup
type Info struct {
	Path      string
	Name      string
	Size      int64
	CreatedAt time.Time
	Entries   []string
}

// Create zipa o banco em dir com nome <banco>_<timestamp>_<id>.zip
func Create(dbPath, dir string) (*Info, error) {
	source, err := os.Stat(dbPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("database file %s does not exist", dbPath), err)
		}
		return nil, fmt.Errorf("failed to stat database: %w", err)
	}
	if source.IsDir() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("%s is a directory", dbPath), nil)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := time.Now()
	base := strings.TrimSuffix(filepath.Base(dbPath), filepath.Ext(dbPath))
	name := fmt.Sprintf("%s_%s_%s%s", base, now.Format(timestampLayout), uuid.NewString()[:8], archiveExt)
	archivePath := filepath.Join(dir, name)

	files := []string{dbPath}
	for _, suffix := range sidecarSuffixes {
		if _, err := os.Stat(dbPath + suffix); err == nil {
			files = append(files, dbPath+suffix)
		}
	}

	if err := writeArchive(archivePath, files); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	entries := make([]string, len(files))
	for i, f := range files {
		entries[i] = filepath.Base(f)
	}

	log.Printf("[Backup] %s -> %s (%d bytes)", dbPath, archivePath, info.Size())
	return &Info{Path: archivePath, Name: name, Size: info.Size(), CreatedAt: now, Entries: entries}, nil
}

func writeArchive(archivePath string, files []string) error {
	zipFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)
	for _, path := range files {
		if err := addFile(zipWriter, path); err != nil {
			zipWriter.Close()
			return err
		}
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish backup archive: %w", err)
	}
	return zipFile.Close()
}

func addFile(zw *zip.Writer, path string) error {
	source, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer source.Close()

	stat, err := source.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return fmt.Errorf("failed to build archive header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create archive entry for %s: %w", path, err)
	}
	if _, err := io.Copy(entry, source); err != nil {
		return fmt.Errorf("failed to copy %s to archive: %w", path, err)
	}
	return nil
}

// List backups em dir, do mais novo para o mais antigo. Diretório ausente = lista vazia.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), archiveExt) {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			log.Printf("[Backup] skipping %s: %v", entry.Name(), err)
			continue
		}
		backups = append(backups, Info{
			Path:      filepath.Join(dir, entry.Name()),
			Name:      entry.Name(),
			Size:      stat.Size(),
			CreatedAt: createdAt(entry.Name(), stat.ModTime()),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Name > backups[j].Name
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
	return backups, nil
}

// createdAt lê o timestamp do nome; cai para o mtime em nomes fora do padrão
func createdAt(name string, fallback time.Time) time.Time {
	parts := strings.Split(strings.TrimSuffix(name, filepath.Ext(name)), "_")
	if len(parts) >= 4 {
		stamp := parts[len(parts)-3] + "_" + parts[len(parts)-2]
		if ts, err := time.ParseInLocation(timestampLayout, stamp, time.Local); err == nil {
			return ts
		}
	}
	return fallback
}

// Restore extrai o banco do backup para target. Recusa sobrescrever sem overwrite.
func Restore(archivePath, target string, overwrite bool) error {
	if _, err := os.Stat(target); err == nil && !overwrite {
		return apperrors.NewConflictError(fmt.Sprintf("%s already exists", target), nil)
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewNotFoundError(fmt.Sprintf("backup %s does not exist", archivePath), err)
		}
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer reader.Close()

	var dbEntry *zip.File
	for _, f := range reader.File {
		if isSidecar(f.Name) {
			continue
		}
		dbEntry = f
		break
	}
	if dbEntry == nil {
		return apperrors.NewValidationError(fmt.Sprintf("backup %s has no database entry", archivePath), nil)
	}

	tmp := target + ".restore"
	if err := extract(dbEntry, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	// um -wal antigo seria reaplicado sobre o banco restaurado
	for _, suffix := range sidecarSuffixes {
		os.Remove(target + suffix)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move restored database: %w", err)
	}

	log.Printf("[Backup] restored %s from %s", target, archivePath)
	return nil
}

func isSidecar(name string) bool {
	for _, suffix := range sidecarSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

func extract(f *zip.File, dest string) error {
	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s from backup: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// Prune mantém os keep backups mais recentes e remove o resto
func Prune(dir string, keep int) ([]string, error) {
	if keep < 1 {
		return nil, apperrors.NewValidationError("keep must be at least 1", nil)
	}

	backups, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []string
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", b.Path, err)
		}
		removed = append(removed, b.Path)
	}
	log.Printf("[Backup] pruned %d backups in %s", len(removed), dir)
	return removed, nil
}
