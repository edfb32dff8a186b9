// Package password implements password hashing and verification for the
// password credential provider.
//
// # Output format
//
// Hashes are PHC strings. Argon2id is the default:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// scrypt hashes use the passlib layout and are accepted for verification so
// identities imported from other issuers keep working:
//
//	$scrypt$ln=<log2 N>,r=<block size>,p=<parallelism>$<salt>$<hash>
//
// [Multi] dispatches verification by algorithm prefix and hashes new
// passwords with its primary [Hasher]. NeedsUpgrade reports hashes produced by
// a different algorithm or weaker parameters so callers can rehash after a
// successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy beyond the byte-length bounds.
//   - Import any other goIssuer package.
//   - Log plaintext passwords.
package password
