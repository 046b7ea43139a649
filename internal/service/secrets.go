package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// secretBytes da 256 bits de entropía a cada secreto opaco.
const secretBytes = 32

// GenerateSecret devuelve un secreto aleatorio codificado en base64url sin padding.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashSecret calcula el SHA-256 hex que se guarda en lugar del secreto.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// HashesEqual compara dos hashes en tiempo constante.
func HashesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// CodeChallengeFromVerifier aplica el método S256 de RFC 7636.
func CodeChallengeFromVerifier(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidatePKCE exige igualdad exacta; ambos valores ya son públicos al canjear.
func ValidatePKCE(verifier, challenge string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	return CodeChallengeFromVerifier(verifier) == challenge
}

// isCodeChallenge acepta solo challenges S256: 43 caracteres base64url.
func isCodeChallenge(challenge string) bool {
	if len(challenge) != 43 {
		return false
	}
	for _, r := range challenge {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

func systemClock() time.Time {
	return time.Now().UTC()
}
