package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for newly hashed keys. Parsed hashes carry their own.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var b64 = base64.RawStdEncoding

// KeyHash is a parsed Argon2id hash of the shared viewer API key.
type KeyHash struct {
	time, memory uint32
	threads      uint8
	salt, sum    []byte
}

// HashAPIKey hashes key into the PHC string form
// ("$argon2id$v=19$m=65536,t=1,p=4$<salt>$<sum>") that KANSOKU_API_KEY_HASH
// holds.
func HashAPIKey(key string) (string, error) {
	if key == "" {
		return "", errors.New("auth: empty API key")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}
	sum := argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		b64.EncodeToString(salt), b64.EncodeToString(sum)), nil
}

// ParseKeyHash decodes a hash produced by HashAPIKey.
func ParseKeyHash(encoded string) (*KeyHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errors.New("auth: key hash is not in argon2id PHC form")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("auth: key hash version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("auth: unsupported argon2 version %d", version)
	}

	h := &KeyHash{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return nil, fmt.Errorf("auth: key hash parameters: %w", err)
	}
	if h.time == 0 || h.memory == 0 || h.threads == 0 {
		return nil, errors.New("auth: key hash parameters must be positive")
	}

	var err error
	if h.salt, err = b64.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("auth: decode salt: %w", err)
	}
	if h.sum, err = b64.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("auth: decode hash: %w", err)
	}
	if len(h.sum) == 0 {
		return nil, errors.New("auth: empty key hash")
	}
	return h, nil
}

// Verify reports whether key matches, in constant time.
func (h *KeyHash) Verify(key string) bool {
	sum := argon2.IDKey([]byte(key), h.salt, h.time, h.memory, h.threads, uint32(len(h.sum)))
	return subtle.ConstantTimeCompare(h.sum, sum) == 1
}

// DummyVerify burns the same work as a real verification. Call it on
// failure paths that skipped the hash so timing does not reveal which
// check failed.
func DummyVerify() {
	argon2.IDKey([]byte("dummy"), make([]byte, saltLen), argonTime, argonMemory, argonThreads, argonKeyLen)
}
