// Package storage performs file operations inside one already resolved category directory.
//
// # Write model
//
// Uploads are streamed into a hidden temporary file next to the destination, synced, and then
// renamed over the final name. A concurrent [Store.List] therefore sees either the previous
// content or the complete new content, never a truncated file. An existing file of the same
// name is replaced silently; the last writer wins.
//
// # Architecture boundaries
//
// Callers pass directories produced by the pathsafe package. This package does not validate
// department or category names and does not know about sessions.
//
// # What this package must NOT do
//
//   - Derive paths from raw user input.
//   - Create anything before the extension allowlist has been checked.
//   - Retry failed filesystem operations.
package storage
