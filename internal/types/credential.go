package types

import "time"

// Credential is what the credential subsystem hands the core for one
// provider: the quota-scoping identity plus the opaque bearer token for
// the live call. The core never logs or serializes the token and never
// mutates a credential.
type Credential struct {
	Provider  ProviderID
	Identity  CredentialIdentity
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the provider token has lapsed.
func (c Credential) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
