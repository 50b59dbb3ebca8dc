package pairing

import "time"

// Token is one short-lived pairing code binding a device to a scope.
type Token struct {
	Code     string    `json:"code"`
	Scope    string    `json:"scope"`
	IssuedAt time.Time `json:"issuedAt"`
}

// ExpiresAt returns the instant the token stops being redeemable.
func (t Token) ExpiresAt(ttl time.Duration) time.Time {
	return t.IssuedAt.Add(ttl)
}
