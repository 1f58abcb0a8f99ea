package auth

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Accounts created by the previous Flask backend carry werkzeug hashes:
//
//	scrypt:<N>:<r>:<p>$<salt>$<hex key>
//	pbkdf2:<digest>:<iterations>$<salt>$<hex key>
//
// The salt is used as-is (its UTF-8 bytes), not decoded.

const (
	maxScryptN          = 1 << 20
	maxPBKDF2Iterations = 10_000_000
)

func isWerkzeugHash(encoded string) bool {
	return strings.HasPrefix(encoded, "scrypt:") || strings.HasPrefix(encoded, "pbkdf2:")
}

func verifyWerkzeug(password, encoded string) (bool, error) {
	method, salt, hexKey, ok := splitWerkzeug(encoded)
	if !ok {
		return false, ErrInvalidHash
	}
	want, err := hex.DecodeString(hexKey)
	if err != nil || len(want) == 0 {
		return false, ErrInvalidHash
	}

	args := strings.Split(method, ":")
	var got []byte
	switch args[0] {
	case "scrypt":
		if len(args) != 4 {
			return false, ErrInvalidHash
		}
		n, err1 := strconv.Atoi(args[1])
		r, err2 := strconv.Atoi(args[2])
		p, err3 := strconv.Atoi(args[3])
		if err1 != nil || err2 != nil || err3 != nil || n <= 1 || n > maxScryptN || r <= 0 || p <= 0 {
			return false, ErrInvalidHash
		}
		got, err = scrypt.Key([]byte(password), []byte(salt), n, r, p, len(want))
		if err != nil {
			return false, ErrInvalidHash
		}
	case "pbkdf2":
		if len(args) != 3 {
			return false, ErrInvalidHash
		}
		newHash := digestFor(args[1])
		iter, err := strconv.Atoi(args[2])
		if newHash == nil || err != nil || iter <= 0 || iter > maxPBKDF2Iterations {
			return false, ErrInvalidHash
		}
		got = pbkdf2.Key([]byte(password), []byte(salt), iter, len(want), newHash)
	default:
		return false, ErrInvalidHash
	}

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func splitWerkzeug(encoded string) (method, salt, key string, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func digestFor(name string) func() hash.Hash {
	switch name {
	case "sha1":
		return sha1.New
	case "sha224":
		return sha256.New224
	case "sha256":
		return sha256.New
	case "sha384":
		return sha512.New384
	case "sha512":
		return sha512.New
	default:
		return nil
	}
}
