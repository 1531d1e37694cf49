// Package passwords reconhece e gera os hashes de senha usados pela
// aplicação web (formato Werkzeug) e pelas versões antigas (SHA-1/SHA-256 hex).
package passwords

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"

	"patiotools/internal/apperrors"
)

// Algorithm algoritmo detectado pelo prefixo do hash
type Algorithm string

const (
	AlgScrypt  Algorithm = "scrypt"
	AlgPBKDF2  Algorithm = "pbkdf2"
	AlgBcrypt  Algorithm = "bcrypt"
	AlgSHA1    Algorithm = "sha1"
	AlgSHA256  Algorithm = "sha256"
	AlgHMAC    Algorithm = "hmac" // Werkzeug antigo: método$salt$hmac
	AlgUnknown Algorithm = "unknown"
	AlgEmpty   Algorithm = "empty"
)

// Legacy algoritmos que devem ser regenerados quando a senha é conhecida
func (a Algorithm) Legacy() bool {
	switch a {
	case AlgSHA1, AlgSHA256, AlgHMAC, AlgUnknown:
		return true
	}
	return false
}

const (
	// DefaultIterations padrão atual do Werkzeug para pbkdf2
	DefaultIterations = 600000
	// DefaultSaltLength tamanho do salt do Werkzeug
	DefaultSaltLength = 16
	// MinPasswordLength mínimo aceito por ResetPassword e pela aplicação
	MinPasswordLength = 6

	saltChars     = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	scryptKeyLen  = 64
	scryptMaxN    = 1 << 20
	legacyHMACSep = "$"
)

var (
	sha1HexPattern   = regexp.MustCompile(`^[0-9a-fA-F]{40}$`)
	sha256HexPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// Classify identifica o algoritmo sem validar o conteúdo
func Classify(stored string) Algorithm {
	s := strings.TrimSpace(stored)
	switch {
	case s == "":
		return AlgEmpty
	case strings.HasPrefix(s, "scrypt:"):
		return AlgScrypt
	case strings.HasPrefix(s, "pbkdf2:"):
		return AlgPBKDF2
	case strings.HasPrefix(s, "$2a$"), strings.HasPrefix(s, "$2b$"), strings.HasPrefix(s, "$2y$"):
		return AlgBcrypt
	case sha1HexPattern.MatchString(s):
		return AlgSHA1
	case sha256HexPattern.MatchString(s):
		return AlgSHA256
	case strings.Count(s, legacyHMACSep) == 2 && hashFuncFor(strings.SplitN(s, legacyHMACSep, 2)[0]) != nil:
		return AlgHMAC
	}
	return AlgUnknown
}

// Verify confere a senha contra o hash gravado. Erro indica hash malformado.
// Hash desconhecido é tratado como senha em texto puro.
func Verify(stored, password string) (bool, error) {
	s := strings.TrimSpace(stored)

	switch Classify(s) {
	case AlgEmpty:
		return false, nil
	case AlgScrypt:
		return verifyScrypt(s, password)
	case AlgPBKDF2:
		return verifyPBKDF2(s, password)
	case AlgBcrypt:
		err := bcrypt.CompareHashAndPassword([]byte(s), []byte(password))
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to verify bcrypt hash: %w", err)
		}
		return true, nil
	case AlgSHA1:
		sum := sha1.Sum([]byte(password))
		return hexEqual(s, sum[:]), nil
	case AlgSHA256:
		sum := sha256.Sum256([]byte(password))
		return hexEqual(s, sum[:]), nil
	case AlgHMAC:
		parts := strings.SplitN(s, legacyHMACSep, 3)
		mac := hmac.New(hashFuncFor(parts[0]), []byte(parts[1]))
		mac.Write([]byte(password))
		return hexEqual(parts[2], mac.Sum(nil)), nil
	default:
		return subtle.ConstantTimeCompare([]byte(s), []byte(password)) == 1, nil
	}
}

// LegacySHA1 hash das versões antigas: SHA-1 hex sem salt
func LegacySHA1(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Hasher gera hashes pbkdf2 no formato Werkzeug
type Hasher struct {
	Iterations int
	SaltLength int
}

// DefaultHasher configuração gravada em produção
var DefaultHasher = Hasher{Iterations: DefaultIterations, SaltLength: DefaultSaltLength}

// Generate gera pbkdf2:sha256:<iterações>$<salt>$<hex>
func (h Hasher) Generate(password string) (string, error) {
	if h.Iterations <= 0 {
		h.Iterations = DefaultIterations
	}
	if h.SaltLength <= 0 {
		h.SaltLength = DefaultSaltLength
	}

	salt, err := genSalt(h.SaltLength)
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), h.Iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", h.Iterations, salt, hex.EncodeToString(key)), nil
}

// Generate gera o hash com DefaultHasher
func Generate(password string) (string, error) {
	return DefaultHasher.Generate(password)
}

func genSalt(length int) (string, error) {
	limit := big.NewInt(int64(len(saltChars)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate salt: %w", err)
		}
		b.WriteByte(saltChars[n.Int64()])
	}
	return b.String(), nil
}

// splitWerkzeug separa "método$salt$hash"
func splitWerkzeug(stored string) (method, salt, digest string, err error) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 || parts[2] == "" {
		return "", "", "", apperrors.NewValidationError("malformed password hash", nil)
	}
	return parts[0], parts[1], parts[2], nil
}

// verifyPBKDF2 aceita pbkdf2:<hash>[:<iterações>]
func verifyPBKDF2(stored, password string) (bool, error) {
	method, salt, digest, err := splitWerkzeug(stored)
	if err != nil {
		return false, err
	}

	fields := strings.Split(method, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return false, apperrors.NewValidationError(fmt.Sprintf("malformed pbkdf2 method %q", method), nil)
	}
	hashFunc := hashFuncFor(fields[1])
	if hashFunc == nil {
		return false, apperrors.NewValidationError(fmt.Sprintf("unsupported pbkdf2 hash %q", fields[1]), nil)
	}
	iterations := DefaultIterations
	if len(fields) == 3 {
		iterations, err = strconv.Atoi(fields[2])
		if err != nil || iterations <= 0 {
			return false, apperrors.NewValidationError(fmt.Sprintf("invalid pbkdf2 iterations %q", fields[2]), err)
		}
	}

	expected, err := hex.DecodeString(digest)
	if err != nil {
		return false, apperrors.NewValidationError("pbkdf2 digest is not hex", err)
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, len(expected), hashFunc)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// verifyScrypt aceita scrypt:N:r:p
func verifyScrypt(stored, password string) (bool, error) {
	method, salt, digest, err := splitWerkzeug(stored)
	if err != nil {
		return false, err
	}

	n, r, p := 1<<15, 8, 1
	fields := strings.Split(method, ":")
	if len(fields) == 4 {
		values := make([]int, 3)
		for i, raw := range fields[1:] {
			values[i], err = strconv.Atoi(raw)
			if err != nil || values[i] <= 0 {
				return false, apperrors.NewValidationError(fmt.Sprintf("invalid scrypt parameter %q", raw), err)
			}
		}
		n, r, p = values[0], values[1], values[2]
	} else if len(fields) != 1 {
		return false, apperrors.NewValidationError(fmt.Sprintf("malformed scrypt method %q", method), nil)
	}
	if n > scryptMaxN {
		return false, apperrors.NewValidationError(fmt.Sprintf("scrypt N=%d too large", n), nil)
	}

	expected, err := hex.DecodeString(digest)
	if err != nil {
		return false, apperrors.NewValidationError("scrypt digest is not hex", err)
	}
	keyLen := len(expected)
	if keyLen == 0 {
		keyLen = scryptKeyLen
	}
	key, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, keyLen)
	if err != nil {
		return false, apperrors.NewValidationError("invalid scrypt parameters", err)
	}
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func hashFuncFor(name string) func() hash.Hash {
	switch strings.ToLower(name) {
	case "sha1":
		return sha1.New
	case "sha256":
		return sha256.New
	case "sha512":
		return sha512.New
	}
	return nil
}

func hexEqual(storedHex string, sum []byte) bool {
	expected, err := hex.DecodeString(strings.ToLower(storedHex))
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(expected, sum) == 1
}
