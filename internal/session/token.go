// Package session authenticates portal requests. A session token maps to a
// portal user and the set of provider credentials their dashboard may use.
// Tokens are stored hashed; raw tokens and provider credential tokens never
// appear in logs.
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/af-corp/pulseboard/internal/types"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateToken creates a new session token with the format:
// pboard-{env}-{32 random alphanumeric chars}
func GenerateToken(env string) (string, error) {
	random, err := randomString(32)
	if err != nil {
		return "", fmt.Errorf("generate random: %w", err)
	}
	return fmt.Sprintf("pboard-%s-%s", env, random), nil
}

// HashToken returns the SHA-256 hex digest of a session token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h)
}

// TokenPrefix extracts a display-safe prefix: pboard-{env}-{first 8 chars}
func TokenPrefix(token string) string {
	if len(token) < 16 {
		return token
	}
	dashes := 0
	for i, c := range token {
		if c == '-' {
			dashes++
			if dashes == 2 {
				end := i + 9
				if end > len(token) {
					end = len(token)
				}
				return token[:end]
			}
		}
	}
	return token[:16]
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[idx.Int64()]
	}
	return string(b), nil
}

// Metadata is the resolved state of a session: who it belongs to and which
// provider credentials it may fetch with. Credentials carry live provider
// tokens, so Metadata is never serialized as a whole.
type Metadata struct {
	ID          string
	User        string
	ExpiresAt   time.Time
	Credentials []types.Credential
}

// CredentialFor returns the session's credential for a provider, if any.
func (m *Metadata) CredentialFor(provider types.ProviderID) (types.Credential, bool) {
	for _, c := range m.Credentials {
		if c.Provider == provider {
			return c, true
		}
	}
	return types.Credential{}, false
}

// Providers lists the providers this session holds credentials for.
func (m *Metadata) Providers() []types.ProviderID {
	ids := make([]types.ProviderID, 0, len(m.Credentials))
	for _, c := range m.Credentials {
		ids = append(ids, c.Provider)
	}
	return ids
}

// ParseDuration parses a duration string like "365d", "30d", "24h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) == 0 {
		return 0, fmt.Errorf("empty duration")
	}
	last := s[len(s)-1]
	if last == 'd' {
		var days int
		_, err := fmt.Sscanf(s, "%dd", &days)
		if err != nil {
			return 0, fmt.Errorf("parse days: %w", err)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
