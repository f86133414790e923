// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters than the
// configured ones, so operators can be told to regenerate the configured hash.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Which account a hash belongs to is
// decided by the credential verifier in the root package.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other spartanfiles package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
