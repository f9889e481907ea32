package masteraccess

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	saltLen    = 16
	hashLen    = 32
	argonTime  = 1
	argonMem   = 64 * 1024
	argonLanes = 4
)

// HashSample derives a salted argon2id digest of a biometric sample, encoded
// as hex(salt)$hex(digest). Raw samples are never stored.
func HashSample(sample []byte) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	digest := argon2.IDKey(sample, salt, argonTime, argonMem, argonLanes, hashLen)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(digest), nil
}

// VerifySample recomputes the digest for sample under the stored salt and
// compares in constant time.
func VerifySample(sample []byte, stored string) bool {
	saltHex, digestHex, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) != saltLen {
		return false
	}
	want, err := hex.DecodeString(digestHex)
	if err != nil {
		return false
	}
	got := argon2.IDKey(sample, salt, argonTime, argonMem, argonLanes, hashLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
