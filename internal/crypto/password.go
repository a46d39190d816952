package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Argon2id parameters for newly created hashes. Existing hashes carry their
// own parameters and verify with those.
const (
	Argon2Time    = 1
	Argon2Memory  = 64 * 1024
	Argon2Threads = 4
	Argon2KeyLen  = 32
	Argon2SaltLen = 16
)

const argon2idPrefix = "$argon2id$"

// PasswordHasher hashes new passwords with the configured scheme and verifies
// stored hashes of any supported scheme.
type PasswordHasher struct {
	scheme     string
	bcryptCost int
}

// NewPasswordHasher returns a hasher for scheme "bcrypt" or "argon2id".
func NewPasswordHasher(scheme string, bcryptCost int) (*PasswordHasher, error) {
	switch scheme {
	case "bcrypt":
		if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case "argon2id":
	default:
		return nil, fmt.Errorf("unsupported password hashing scheme %q", scheme)
	}
	return &PasswordHasher{scheme: scheme, bcryptCost: bcryptCost}, nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == "argon2id" {
		return hashArgon2id(password)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches storedHash. A mismatch is (false, nil);
// only an unparseable hash is an error.
func (h *PasswordHasher) Verify(storedHash, password string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, argon2idPrefix):
		return verifyArgon2id(storedHash, password)
	case strings.HasPrefix(storedHash, "$2"):
		err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	default:
		return false, ErrMalformedHash
	}
}

func hashArgon2id(password string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version, Argon2Memory, Argon2Time, Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// verifyArgon2id parses $argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>.
func verifyArgon2id(storedHash, password string) (bool, error) {
	parts := strings.Split(storedHash, "$")
	if len(parts) != 6 {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrMalformedHash
	}
	if memory == 0 || time == 0 || threads == 0 {
		return false, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false, ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
