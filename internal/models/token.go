package models

import "time"

// SessionToken is a server-issued credential binding a wallet to a room
type SessionToken struct {
	Token     string    `json:"token"`
	RoomID    string    `json:"roomId"`
	Wallet    string    `json:"wallet"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the token is past its expiry at now
func (t SessionToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
