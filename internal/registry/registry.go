// Package registry implements the persistent relational store of installed
// packages, their files (with checksums), and their directories (with
// reference counts) — spec §4.2. It is backed by SQLite via
// github.com/mattn/go-sqlite3, matching the schema/init pattern a package
// manager written against database/sql typically uses.
package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jwdevantier/leport/internal/types"
)

// Store opens a single connection per invocation, autocommit off; callers
// bracket multi-statement mutations in an explicit Tx.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening registry at %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // spec §5: multi-process safety is not a goal; one writer at a time
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS pkgs (
			pkg TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			release INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			fpath TEXT PRIMARY KEY,
			pkg TEXT NOT NULL,
			sha256 TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS dirs (
			dir TEXT NOT NULL,
			pkg TEXT NOT NULL,
			PRIMARY KEY (dir, pkg)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_pkg ON files(pkg)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initializing registry schema: %w", err)
		}
	}
	return nil
}

// Tx brackets a single registry transaction with an explicit
// BEGIN/COMMIT/ROLLBACK, matching spec §4.2's "Autocommit is off; explicit
// BEGIN/COMMIT/ROLLBACK brackets every multi-statement mutation."
type Tx struct {
	tx *sql.Tx
}

// Begin starts a new transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (t *Tx) Commit() error   { return t.tx.Commit() }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// HasPkg reports whether name is already recorded in pkgs.
func (s *Store) HasPkg(name string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM pkgs WHERE pkg = ?`, name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordPkg inserts info into pkgs within tx. Fails (constraint violation)
// if name is already present, enforcing R4 at the package-name level.
func (t *Tx) RecordPkg(info *types.PkgInfo) error {
	_, err := t.tx.Exec(`INSERT INTO pkgs (pkg, version, release) VALUES (?, ?, ?)`,
		info.Name, info.Version, info.Release)
	if err != nil {
		return &types.RegistryConflict{Pkg: info.Name}
	}
	return nil
}

// RecordFiles bulk-inserts manifest.FileChecksums rows owned by pkg.
func (t *Tx) RecordFiles(pkg string, checksums map[string]string) error {
	stmt, err := t.tx.Prepare(`INSERT INTO files (fpath, pkg, sha256) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for fpath, sum := range checksums {
		if _, err := stmt.Exec(fpath, pkg, sum); err != nil {
			return fmt.Errorf("recording file %s: %w", fpath, err)
		}
	}
	return nil
}

// RecordDirs bulk-inserts dirs rows associating pkg with each directory.
func (t *Tx) RecordDirs(pkg string, dirs []string) error {
	stmt, err := t.tx.Prepare(`INSERT INTO dirs (dir, pkg) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range dirs {
		if _, err := stmt.Exec(d, pkg); err != nil {
			return fmt.Errorf("recording dir %s: %w", d, err)
		}
	}
	return nil
}

// WhichPkgOwnsFile returns the owning package name, or "" if none owns
// path.
func (s *Store) WhichPkgOwnsFile(path string) (string, error) {
	var pkg string
	err := s.db.QueryRow(`SELECT pkg FROM files WHERE fpath = ?`, path).Scan(&pkg)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return pkg, nil
}

// FileEntry is one row of pkg_files_installed.
type FileEntry struct {
	Path   string
	SHA256 string
}

// PkgFilesInstalled returns every file row owned by pkg.
func (s *Store) PkgFilesInstalled(pkg string) ([]FileEntry, error) {
	rows, err := s.db.Query(`SELECT fpath, sha256 FROM files WHERE pkg = ?`, pkg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileEntry
	for rows.Next() {
		var e FileEntry
		if err := rows.Scan(&e.Path, &e.SHA256); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DirEntry is one row of PkgDirs: a directory this package recorded,
// together with the directory's global reference count (row count across
// all packages in dirs).
type DirEntry struct {
	Dir      string
	RefCount int
}

// PkgDirs returns every directory pkg recorded, with each one's global
// refcount.
func (s *Store) PkgDirs(pkg string) ([]DirEntry, error) {
	rows, err := s.db.Query(`
		SELECT d.dir, (SELECT COUNT(1) FROM dirs d2 WHERE d2.dir = d.dir) AS refcount
		FROM dirs d WHERE d.pkg = ?`, pkg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DirEntry
	for rows.Next() {
		var e DirEntry
		if err := rows.Scan(&e.Dir, &e.RefCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RmPkg deletes pkg's files and dirs rows, then the pkgs row, within tx
// (R2: atomic package removal).
func (t *Tx) RmPkg(pkg string) error {
	if _, err := t.tx.Exec(`DELETE FROM files WHERE pkg = ?`, pkg); err != nil {
		return err
	}
	if _, err := t.tx.Exec(`DELETE FROM dirs WHERE pkg = ?`, pkg); err != nil {
		return err
	}
	if _, err := t.tx.Exec(`DELETE FROM pkgs WHERE pkg = ?`, pkg); err != nil {
		return err
	}
	return nil
}

// Pkg is one row of ListPkgs.
type Pkg struct {
	Name    string
	Version string
	Release int
}

// ListPkgs returns every installed package, ordered by name.
func (s *Store) ListPkgs() ([]Pkg, error) {
	rows, err := s.db.Query(`SELECT pkg, version, release FROM pkgs ORDER BY pkg`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Pkg
	for rows.Next() {
		var p Pkg
		if err := rows.Scan(&p.Name, &p.Version, &p.Release); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
