package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// TempPrefix marks in-flight uploads. Entries carrying it are never listed.
const TempPrefix = ".upload-"

// DefaultAllowedExtensions is the upload allowlist used when Config leaves it empty.
var DefaultAllowedExtensions = []string{
	"txt", "pdf", "docx", "xlsx", "pptx",
	"png", "jpg", "jpeg",
	"mp4", "avi", "mov", "mkv",
	"log", "zip", "tar", "gz", "rar", "7z",
}

// Config controls the Store.
type Config struct {
	AllowedExtensions []string
	DirPerm           fs.FileMode
	FilePerm          fs.FileMode
	// MaxFileBytes limits a single upload. Zero disables the limit.
	MaxFileBytes int64
}

// Entry describes one stored file.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Object is an open file ready to be streamed to a client. Callers must close Content.
type Object struct {
	Entry
	Content io.ReadSeekCloser
}

// Store is safe for concurrent use; it holds no mutable state.
type Store struct {
	allowed  map[string]struct{}
	dirPerm  fs.FileMode
	filePerm fs.FileMode
	maxBytes int64
}

// New builds a Store from cfg, filling defaults for zero values.
func New(cfg Config) (*Store, error) {
	exts := cfg.AllowedExtensions
	if len(exts) == 0 {
		exts = DefaultAllowedExtensions
	}
	if cfg.MaxFileBytes < 0 {
		return nil, errors.New("storage: MaxFileBytes must be >= 0")
	}

	s := &Store{
		allowed:  make(map[string]struct{}, len(exts)),
		dirPerm:  cfg.DirPerm,
		filePerm: cfg.FilePerm,
		maxBytes: cfg.MaxFileBytes,
	}
	if s.dirPerm == 0 {
		s.dirPerm = 0o755
	}
	if s.filePerm == 0 {
		s.filePerm = 0o644
	}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))
		if e == "" || strings.ContainsAny(e, "./\\") {
			return nil, fmt.Errorf("storage: invalid extension %q", e)
		}
		s.allowed[e] = struct{}{}
	}
	return s, nil
}

// Allowed reports whether name carries an allowed extension. Comparison is case-insensitive
// and uses the text after the last dot; names without a dot are never allowed.
func (s *Store) Allowed(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return false
	}
	_, ok := s.allowed[strings.ToLower(name[i+1:])]
	return ok
}

// List returns the regular files directly inside dir, sorted by name.
func (s *Store) List(dir string) ([]Entry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		if missing(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(dir))
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), TempPrefix) {
			continue
		}
		info, err := d.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			if missing(err) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		out = append(out, entryOf(info))
	}

	// ReadDir already sorts by name; keep the order explicit.
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// EnsureDir creates dir and any missing ancestors. An existing directory is left untouched.
func (s *Store) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Save writes r to dir/name, replacing any existing file of that name.
func (s *Store) Save(dir, name string, r io.Reader) (Entry, error) {
	if !s.Allowed(name) {
		return Entry{}, fmt.Errorf("%w: %s", ErrDisallowedFileType, name)
	}
	if strings.HasPrefix(name, TempPrefix) {
		return Entry{}, fmt.Errorf("%w: reserved name %s", ErrStorage, name)
	}
	if err := s.EnsureDir(dir); err != nil {
		return Entry{}, err
	}

	final := filepath.Join(dir, name)
	tmp := filepath.Join(dir, TempPrefix+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: create temp file: %v", ErrStorage, err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		f.Close()
		return Entry{}, fmt.Errorf("%w: write %s: %v", ErrStorage, name, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		f.Close()
		return Entry{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, name, s.maxBytes)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return Entry{}, fmt.Errorf("%w: sync %s: %v", ErrStorage, name, err)
	}
	if err := f.Close(); err != nil {
		return Entry{}, fmt.Errorf("%w: close %s: %v", ErrStorage, name, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return Entry{}, fmt.Errorf("%w: rename %s: %v", ErrStorage, name, err)
	}
	committed = true

	info, err := os.Stat(final)
	if err != nil {
		return Entry{Name: name, Size: n}, nil
	}
	return entryOf(info), nil
}

// Delete removes dir/name. Missing files and non-regular entries report ErrNotFound.
func (s *Store) Delete(dir, name string) error {
	p := filepath.Join(dir, name)
	info, err := os.Lstat(p)
	if err != nil {
		if missing(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !info.Mode().IsRegular() || strings.HasPrefix(name, TempPrefix) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err := os.Remove(p); err != nil {
		if missing(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Open returns dir/name for reading.
func (s *Store) Open(dir, name string) (*Object, error) {
	if strings.HasPrefix(name, TempPrefix) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	p := filepath.Join(dir, name)
	info, err := os.Lstat(p)
	if err != nil {
		if missing(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	f, err := os.Open(p)
	if err != nil {
		if missing(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &Object{Entry: entryOf(info), Content: f}, nil
}

func entryOf(info fs.FileInfo) Entry {
	return Entry{Name: info.Name(), Size: info.Size(), ModTime: info.ModTime()}
}

// missing treats a path whose parent is a regular file like a path that does not exist.
func missing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
