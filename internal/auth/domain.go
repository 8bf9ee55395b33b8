package auth

import "time"

// Token is an issued API credential. Clients present "<id>.<secret>";
// only the bcrypt hash of the secret half is stored.
type Token struct {
	ID         int64
	ActorID    int64
	Role       string
	SecretHash string
	Active     bool
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Expired reports whether the token has passed its expiry.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
