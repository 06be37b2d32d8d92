// Package backup writes and restores zip archives of the database.
//
// ARCHIVE LAYOUT:
//
//	snipshare-20261019T120000Z-<xid>.zip
//	├── manifest.json        format version, creation time, row counts
//	├── users.csv            header row + one record per row
//	├── snippets.csv
//	├── snippet_categories.csv
//	├── votes.csv
//	└── comments.csv
//
// The CSV files use encoding/csv (RFC 4180), so commas, quotes and newlines
// inside snippet code survive the round trip. Restore reads and checks every
// file before the database is touched, then hands all rows to the store,
// which replaces the tables inside a single transaction.
package backup

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/repository/sqlite"
)

// FormatVersion is bumped whenever the archive layout changes.
const FormatVersion = 1

const (
	manifestName = "manifest.json"
	namePrefix   = "snipshare-"
	nameSuffix   = ".zip"
	stampLayout  = "20060102T150405Z"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*\.zip$`)

// Store is the slice of the database the backup manager needs.
// *sqlite.DB implements it.
type Store interface {
	DumpTables(ctx context.Context, fn func(d sqlite.TableDumper) error) error
	RestoreTables(ctx context.Context, data map[string][][]string) (map[string]int, error)
}

// Manifest is written into every archive as manifest.json.
type Manifest struct {
	FormatVersion int            `json:"format_version"`
	CreatedAt     time.Time      `json:"created_at"`
	Tables        map[string]int `json:"tables"`
}

// Info describes an archive on disk.
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Manager owns a directory of backup archives.
type Manager struct {
	dir    string
	store  Store
	tables []sqlite.Table
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates the backup directory if needed.
func NewManager(dir string, store Store, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: creating %s: %w", dir, err)
	}
	return &Manager{
		dir:    dir,
		store:  store,
		tables: sqlite.Tables(),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Dir returns the directory archives are written to.
func (m *Manager) Dir() string {
	return m.dir
}

// Create dumps every table into a new archive. All tables are read from one
// snapshot, so the archive never holds a row whose parent was written after
// its table was dumped.
//
// The archive is written to a temp file in the same directory and renamed
// into place once complete, so a crash never leaves a truncated .zip that
// List would offer for restore.
func (m *Manager) Create(ctx context.Context) (*Info, error) {
	created := m.now()
	name := namePrefix + created.Format(stampLayout) + "-" + xid.New().String() + nameSuffix

	tmp, err := os.CreateTemp(m.dir, ".snipshare-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("backup: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	manifest := Manifest{
		FormatVersion: FormatVersion,
		CreatedAt:     created,
		Tables:        make(map[string]int, len(m.tables)),
	}

	zw := zip.NewWriter(tmp)
	err = m.store.DumpTables(ctx, func(d sqlite.TableDumper) error {
		for _, table := range m.tables {
			n, err := writeTable(ctx, zw, d, table)
			if err != nil {
				return err
			}
			manifest.Tables[table.Name] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	mw, err := zw.Create(manifestName)
	if err != nil {
		return nil, fmt.Errorf("backup: adding manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return nil, fmt.Errorf("backup: encoding manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("backup: finishing zip: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("backup: syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("backup: closing archive: %w", err)
	}

	final := filepath.Join(m.dir, name)
	if err := os.Rename(tmpName, final); err != nil {
		return nil, fmt.Errorf("backup: renaming archive: %w", err)
	}
	committed = true

	st, err := os.Stat(final)
	if err != nil {
		return nil, fmt.Errorf("backup: stat %s: %w", name, err)
	}

	m.logger.Info("backup created",
		slog.String("name", name),
		slog.Int64("size", st.Size()),
		slog.Any("tables", manifest.Tables),
	)
	return &Info{Name: name, Size: st.Size(), CreatedAt: created}, nil
}

func writeTable(ctx context.Context, zw *zip.Writer, d sqlite.TableDumper, table sqlite.Table) (int, error) {
	w, err := zw.Create(table.Name + ".csv")
	if err != nil {
		return 0, fmt.Errorf("backup: adding %s.csv: %w", table.Name, err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(table.ColumnNames()); err != nil {
		return 0, fmt.Errorf("backup: writing %s header: %w", table.Name, err)
	}

	rows := 0
	err = d.DumpTable(ctx, table.Name, func(record []string) error {
		rows++
		return cw.Write(record)
	})
	if err != nil {
		return 0, fmt.Errorf("backup: dumping %s: %w", table.Name, err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("backup: flushing %s.csv: %w", table.Name, err)
	}
	return rows, nil
}

// List returns the archives in the directory, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("backup: reading %s: %w", m.dir, err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || !validName.MatchString(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		infos = append(infos, Info{
			Name:      e.Name(),
			Size:      fi.Size(),
			CreatedAt: createdAt(e.Name(), fi.ModTime()),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].Name > infos[j].Name
	})
	return infos, nil
}

// createdAt reads the timestamp out of a generated archive name and falls
// back to the file's mtime for archives copied in by hand.
func createdAt(name string, modTime time.Time) time.Time {
	rest, ok := strings.CutPrefix(name, namePrefix)
	if ok && len(rest) >= len(stampLayout) {
		if t, err := time.Parse(stampLayout, rest[:len(stampLayout)]); err == nil {
			return t.UTC()
		}
	}
	return modTime.UTC()
}

// Open returns the archive for reading. The caller closes it.
func (m *Manager) Open(name string) (*os.File, *Info, error) {
	path, err := m.path(name)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, apperror.NotFound("backup", name)
		}
		return nil, nil, fmt.Errorf("backup: opening %s: %w", name, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("backup: stat %s: %w", name, err)
	}
	return f, &Info{Name: name, Size: fi.Size(), CreatedAt: createdAt(name, fi.ModTime())}, nil
}

// Delete removes an archive.
func (m *Manager) Delete(name string) error {
	path, err := m.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return apperror.NotFound("backup", name)
		}
		return fmt.Errorf("backup: deleting %s: %w", name, err)
	}
	m.logger.Info("backup deleted", slog.String("name", name))
	return nil
}

// Restore replaces the database contents with the named archive.
// Nothing is written unless every table file parses cleanly.
func (m *Manager) Restore(ctx context.Context, name string) (map[string]int, error) {
	path, err := m.path(name)
	if err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.NotFound("backup", name)
		}
		return nil, apperror.ValidationFailed("archive", fmt.Sprintf("%s is not a readable zip archive", name))
	}
	defer zr.Close()

	data, err := m.readArchive(&zr.Reader)
	if err != nil {
		return nil, err
	}

	counts, err := m.store.RestoreTables(ctx, data)
	if err != nil {
		m.logger.Error("backup restore failed",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	m.logger.Info("backup restored",
		slog.String("name", name),
		slog.Any("tables", counts),
	)
	return counts, nil
}

func (m *Manager) readArchive(zr *zip.Reader) (map[string][][]string, error) {
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	if mf, ok := files[manifestName]; ok {
		if err := checkManifest(mf); err != nil {
			return nil, err
		}
	}

	data := make(map[string][][]string, len(m.tables))
	for _, table := range m.tables {
		f, ok := files[table.Name+".csv"]
		if !ok {
			return nil, apperror.ValidationFailed("archive", fmt.Sprintf("%s.csv is missing", table.Name))
		}
		records, err := readTable(f, table)
		if err != nil {
			return nil, err
		}
		data[table.Name] = records
	}
	return data, nil
}

func checkManifest(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("backup: opening manifest: %w", err)
	}
	defer rc.Close()

	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return apperror.ValidationFailed("archive", "manifest.json is not valid JSON")
	}
	if manifest.FormatVersion > FormatVersion {
		return apperror.ValidationFailed("archive",
			fmt.Sprintf("archive format %d is newer than supported format %d", manifest.FormatVersion, FormatVersion))
	}
	return nil
}

// readTable parses one CSV file, checking the header against the table's
// declared columns.
func readTable(f *zip.File, table sqlite.Table) ([][]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("backup: opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	r.FieldsPerRecord = len(table.Columns)

	header, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, apperror.ValidationFailed("archive", fmt.Sprintf("%s is empty", f.Name))
		}
		return nil, apperror.ValidationFailed("archive", fmt.Sprintf("%s header: %v", f.Name, err))
	}
	want := table.ColumnNames()
	for i := range want {
		if header[i] != want[i] {
			return nil, apperror.ValidationFailed("archive",
				fmt.Sprintf("%s column %d is %q, want %q", f.Name, i+1, header[i], want[i]))
		}
	}

	records := [][]string{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperror.ValidationFailed("archive", fmt.Sprintf("%s: %v", f.Name, err))
		}
		records = append(records, rec)
	}
	return records, nil
}

// path resolves an archive name inside the backup directory. Only bare file
// names are accepted.
func (m *Manager) path(name string) (string, error) {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return "", apperror.ValidationFailed("name", fmt.Sprintf("invalid backup name %q", name))
	}
	return filepath.Join(m.dir, name), nil
}
