package port

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
// Verify never fails on malformed input; it reports false instead.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) bool
	NeedsRehash(encoded string) bool
}
