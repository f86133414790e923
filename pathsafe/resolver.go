package pathsafe

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrInvalidPath is returned for any segment or filename that could escape its parent
// directory or that names an unknown department.
var ErrInvalidPath = errors.New("invalid path")

const maxSegmentBytes = 255

// Resolver derives validated filesystem locations under a single storage root.
type Resolver struct {
	root        string
	departments []string
	known       map[string]struct{}
}

// NewResolver builds a Resolver for root and the closed department set. The root is made
// absolute once, here; later calls never consult the working directory.
func NewResolver(root string, departments []string) (*Resolver, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if len(departments) == 0 {
		return nil, errors.New("at least one department is required")
	}

	r := &Resolver{
		root:        filepath.Clean(abs),
		departments: make([]string, 0, len(departments)),
		known:       make(map[string]struct{}, len(departments)),
	}
	for _, d := range departments {
		if err := ValidateSegment(d); err != nil {
			return nil, fmt.Errorf("department %q: %w", d, err)
		}
		if _, dup := r.known[d]; dup {
			return nil, fmt.Errorf("duplicate department %q", d)
		}
		r.known[d] = struct{}{}
		r.departments = append(r.departments, d)
	}

	return r, nil
}

// Root returns the absolute storage root.
func (r *Resolver) Root() string {
	return r.root
}

// Departments returns the configured departments in declared order.
func (r *Resolver) Departments() []string {
	out := make([]string, len(r.departments))
	copy(out, r.departments)
	return out
}

// Known reports whether dept is one of the configured departments.
func (r *Resolver) Known(dept string) bool {
	_, ok := r.known[dept]
	return ok
}

// Department returns the directory of dept.
func (r *Resolver) Department(dept string) (string, error) {
	if err := ValidateSegment(dept); err != nil {
		return "", err
	}
	if !r.Known(dept) {
		return "", fmt.Errorf("%w: unknown department %q", ErrInvalidPath, dept)
	}
	return r.join(dept)
}

// Category returns the directory of category inside dept.
func (r *Resolver) Category(dept, category string) (string, error) {
	if _, err := r.Department(dept); err != nil {
		return "", err
	}
	if err := ValidateSegment(category); err != nil {
		return "", err
	}
	return r.join(dept, category)
}

// File returns the path of an existing file name inside dept/category. New upload names must
// be passed through SanitizeFilename first.
func (r *Resolver) File(dept, category, name string) (string, error) {
	if _, err := r.Category(dept, category); err != nil {
		return "", err
	}
	if err := ValidateSegment(name); err != nil {
		return "", err
	}
	return r.join(dept, category, name)
}

// Contains reports whether p lies strictly beneath the storage root.
func (r *Resolver) Contains(p string) bool {
	if !filepath.IsAbs(p) {
		return false
	}
	rel, err := filepath.Rel(r.root, filepath.Clean(p))
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func (r *Resolver) join(parts ...string) (string, error) {
	p := filepath.Join(append([]string{r.root}, parts...)...)
	if !r.Contains(p) {
		return "", fmt.Errorf("%w: %q escapes storage root", ErrInvalidPath, strings.Join(parts, "/"))
	}
	return p, nil
}

// ValidateSegment checks that s can be used as exactly one path element.
func ValidateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidPath)
	}
	if len(s) > maxSegmentBytes {
		return fmt.Errorf("%w: segment longer than %d bytes", ErrInvalidPath, maxSegmentBytes)
	}
	if s == "." || s == ".." {
		return fmt.Errorf("%w: parent or self reference", ErrInvalidPath)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: segment is not valid UTF-8", ErrInvalidPath)
	}
	for _, c := range s {
		if c == '/' || c == '\\' || c == 0 || unicode.IsControl(c) {
			return fmt.Errorf("%w: segment %q contains a separator or control character", ErrInvalidPath, s)
		}
	}
	if filepath.Clean(s) != s || filepath.Base(s) != s || filepath.IsAbs(s) {
		return fmt.Errorf("%w: segment %q is not canonical", ErrInvalidPath, s)
	}
	return nil
}
