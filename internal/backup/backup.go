// Package backup snapshots the SQLite cache database so analyses survive a
// cache clear or a broken data directory.
package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSourceMissing is returned when the database to snapshot does not exist.
var ErrSourceMissing = errors.New("backup: source database does not exist")

const timeLayout = "20060102T150405Z"

// Info describes one snapshot file.
type Info struct {
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Verified  bool      `json:"verified"`
}

// FileName returns the snapshot name for a snapshot taken at t.
func FileName(t time.Time) string {
	return "devtools-" + t.UTC().Format(timeLayout) + ".db"
}

// Snapshot writes a consistent copy of the database at dbPath into dir and
// verifies it. VACUUM INTO copes with WAL mode, so the source may be open
// in another connection.
func Snapshot(dbPath, dir string, now time.Time) (Info, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrSourceMissing, dbPath)
		}
		return Info{}, fmt.Errorf("backup: failed to stat %s: %w", dbPath, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return Info{}, fmt.Errorf("backup: failed to create %s: %w", dir, err)
	}

	dest := filepath.Join(dir, FileName(now))
	src, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return Info{}, fmt.Errorf("backup: failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	if _, err := src.Exec("VACUUM INTO '" + strings.ReplaceAll(dest, "'", "''") + "'"); err != nil {
		return Info{}, fmt.Errorf("backup: snapshot failed: %w", err)
	}
	if err := Verify(dest); err != nil {
		_ = os.Remove(dest)
		return Info{}, err
	}

	st, err := os.Stat(dest)
	if err != nil {
		return Info{}, fmt.Errorf("backup: failed to stat snapshot: %w", err)
	}
	return Info{Path: dest, Timestamp: now.UTC().Truncate(time.Second), Size: st.Size(), Verified: true}, nil
}

// Verify runs SQLite's integrity check against the file at path.
func Verify(path string) error {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("backup: failed to open %s: %w", path, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("backup: integrity check on %s failed: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("backup: %s is corrupt: %s", path, result)
	}
	return nil
}

// Restore replaces the database at dbPath with the snapshot at path. The
// target must not be open. Stale WAL files of the target are removed.
func Restore(path, dbPath string) error {
	if err := Verify(path); err != nil {
		return err
	}

	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: failed to open snapshot: %w", err)
	}
	defer func() { _ = src.Close() }()

	tmp := dbPath + ".restore"
	dst, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("backup: failed to create %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("backup: failed to copy snapshot: %w", err)
	}
	if err := dst.Sync(); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("backup: failed to sync %s: %w", tmp, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("backup: failed to close %s: %w", tmp, err)
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dbPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("backup: failed to remove %s: %w", dbPath+suffix, err)
		}
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("backup: failed to replace %s: %w", dbPath, err)
	}
	return Verify(dbPath)
}
