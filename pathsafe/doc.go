// Package pathsafe maps (department, category, filename) triples onto absolute paths beneath a
// fixed storage root.
//
// # Rules
//
// Department, category and existing file names are single path segments: non-empty, not "." or
// "..", free of separators, NUL and control characters, and unchanged by filepath.Clean.
// Departments must additionally belong to the closed set given to [NewResolver].
//
// Names for new uploads go through [SanitizeFilename], which strips unsafe characters but
// rejects anything that looks like a traversal attempt instead of silently rewriting it.
//
// # Architecture boundaries
//
// The package is pure: it never touches the filesystem. Callers own every read and write.
//
// # What this package must NOT do
//
//   - Stat, open, create or remove files.
//   - Follow symlinks or consult the current working directory after construction.
//   - Import any other spartanfiles package.
package pathsafe
